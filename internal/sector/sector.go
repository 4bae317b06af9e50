// Package sector looks up the sector and industry of the tracked large caps and
// renders them as SQL updates for the stock table.
package sector

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"StockFetch/internal/collector"
	"StockFetch/internal/model"
)

// IndexSymbol is tracked with the stocks but has no sector or industry.
const IndexSymbol = "^SP100"

// NotAvailable replaces a sector or industry the provider does not report.
const NotAvailable = "N/A"

var trackedSymbols = []string{
	"AAPL", "ABBV", "ABT", "ACN", "ADBE", "AIG", "AMD", "AMGN", "AMT", "AMZN",
	"AVGO", "AXP", "BA", "BAC", "BK", "BKNG", "BLK", "BMY", "BRK-B", "C", "CAT",
	"CL", "CMCSA", "COF", "COP", "COST", "CRM", "CSCO", "CVS", "CVX", "DE", "DHR",
	"DIS", "DUK", "EMR", "FDX", "GD", "GE", "GILD", "GM", "GOOG", "GOOGL", "GS",
	"HD", "HON", "IBM", "INTC", "INTU", "ISRG", "JNJ", "JPM", "KO", "LIN", "LLY",
	"LMT", "LOW", "MA", "MCD", "MDLZ", "MDT", "MET", "META", "MMM", "MO", "MRK",
	"MS", "MSFT", "NEE", "NFLX", "NKE", "NOW", "NVDA", "ORCL", "PEP", "PFE", "PG",
	"PLTR", "PM", "PYPL", "QCOM", "RTX", "SBUX", "SCHW", "SO", "SPG", "T", "TGT",
	"TMO", "TMUS", "TSLA", "TXN", "UBER", "UNH", "UNP", "UPS", "USB", "V", "VZ",
	"WFC", "WMT", "XOM", IndexSymbol,
}

// DefaultTickers returns a fresh copy of the tracked stocks, without the index.
func DefaultTickers() []string {
	return withoutIndex(trackedSymbols)
}

func withoutIndex(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s == IndexSymbol {
			continue
		}
		out = append(out, s)
	}
	return out
}

// FetchProfiles looks up every ticker in order. A failed lookup yields an error
// record for that ticker only.
func FetchProfiles(ctx context.Context, f collector.Fetcher, tickers []string, log *zap.Logger) []model.SectorRecord {
	if log == nil {
		log = zap.NewNop()
	}
	records := make([]model.SectorRecord, 0, len(tickers))
	for _, ticker := range tickers {
		p, err := f.FetchProfile(ctx, ticker)
		if err != nil {
			log.Warn("profile fetch failed", zap.String("ticker", ticker), zap.Error(err))
			records = append(records, model.SectorRecord{Ticker: ticker, Error: model.ErrorText(err)})
			continue
		}
		records = append(records, model.SectorRecord{
			Ticker:   ticker,
			Sector:   orNotAvailable(p.Sector),
			Industry: orNotAvailable(p.Industry),
		})
	}
	return records
}

func orNotAvailable(s string) string {
	if strings.TrimSpace(s) == "" {
		return NotAvailable
	}
	return s
}

// Statement returns the UPDATE for a successful record.
func Statement(r model.SectorRecord) string {
	return fmt.Sprintf("UPDATE public.stock SET sector='%s', industry='%s' WHERE shortname='%s';\n",
		quoteLiteral(r.Sector), quoteLiteral(r.Industry), quoteLiteral(r.Ticker))
}

// RenderSQL concatenates one line per record. Failed lookups become SQL
// comments carrying the error as JSON so the script stays runnable.
func RenderSQL(records []model.SectorRecord) string {
	var b strings.Builder
	for _, r := range records {
		if r.Failed() {
			b.WriteString(errorComment(r))
			continue
		}
		b.WriteString(Statement(r))
	}
	return b.String()
}

func errorComment(r model.SectorRecord) string {
	payload, _ := json.Marshal(struct {
		Ticker string `json:"ticker"`
		Error  string `json:"error"`
	}{r.Ticker, r.Error})
	return "-- " + string(payload) + "\n"
}

// quoteLiteral escapes s for use inside a single-quoted SQL literal.
func quoteLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
