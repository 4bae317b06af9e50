// Package quote fetches the current price of a list of tickers.
package quote

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"StockFetch/internal/collector"
	"StockFetch/internal/model"
)

// ParseTickers splits a comma-separated ticker argument. Blank entries are kept
// so that every element of the argument yields exactly one record.
func ParseTickers(arg string) []string {
	parts := strings.Split(arg, ",")
	tickers := make([]string, len(parts))
	for i, p := range parts {
		tickers[i] = strings.TrimSpace(p)
	}
	return tickers
}

// FetchCurrentPrices returns one record per ticker, in input order. A failing
// ticker gets an error record and never aborts the batch.
func FetchCurrentPrices(ctx context.Context, f collector.Fetcher, tickers []string, log *zap.Logger) []model.PriceRecord {
	if log == nil {
		log = zap.NewNop()
	}
	records := make([]model.PriceRecord, 0, len(tickers))
	for _, ticker := range tickers {
		if ticker == "" {
			records = append(records, model.NewPriceError(ticker, collector.ErrEmptyTicker))
			continue
		}
		price, err := f.FetchLatestClose(ctx, ticker)
		if err != nil {
			log.Warn("current price fetch failed", zap.String("ticker", ticker), zap.Error(err))
			records = append(records, model.NewPriceError(ticker, err))
			continue
		}
		records = append(records, model.NewPriceRecord(ticker, price))
	}
	log.Debug("current prices fetched", zap.Int("tickers", len(tickers)), zap.String("source", f.Name()))
	return records
}
