package collector

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/quote"
	"github.com/shopspring/decimal"

	"StockFetch/internal/model"
)

type profileFetcher interface {
	FetchProfile(ctx context.Context, symbol string) (*model.Profile, error)
}

// FinanceGoFetcher implements Fetcher on top of the piquette/finance-go client.
// The client has no asset profile endpoint, so profiles come from Profiles.
type FinanceGoFetcher struct {
	Profiles profileFetcher
	Now      func() time.Time
}

// NewFinanceGoFetcher creates a fetcher backed by finance-go, using the Yahoo
// HTTP fetcher for profile lookups.
func NewFinanceGoFetcher(opts Options) *FinanceGoFetcher {
	return &FinanceGoFetcher{
		Profiles: NewYahooFetcher(opts),
		Now:      time.Now,
	}
}

func (f *FinanceGoFetcher) Name() string { return "financego" }

// FetchLatestClose returns the regular market price of the symbol's quote.
func (f *FinanceGoFetcher) FetchLatestClose(ctx context.Context, symbol string) (float64, error) {
	if strings.TrimSpace(symbol) == "" {
		return 0, ErrEmptyTicker
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	q, err := quote.Get(symbol)
	if err != nil {
		return 0, fmt.Errorf("finance-go quote %s: %w", symbol, err)
	}
	if q == nil {
		return 0, fmt.Errorf("finance-go quote %s: %w", symbol, ErrNotFound)
	}
	return q.RegularMarketPrice, nil
}

// FetchBars iterates the finance-go chart for the trailing range.
func (f *FinanceGoFetcher) FetchBars(ctx context.Context, symbol, interval, rng string) ([]model.OHLCV, error) {
	if strings.TrimSpace(symbol) == "" {
		return nil, ErrEmptyTicker
	}
	now := f.Now()
	start, err := RangeStart(now, rng)
	if err != nil {
		return nil, err
	}
	end := now.AddDate(0, 0, 1)

	params := &chart.Params{
		Symbol:   symbol,
		Interval: datetime.Interval(interval),
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
	}

	var bars []model.OHLCV
	iter := chart.Get(params)
	for iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b := iter.Bar()
		bars = append(bars, model.OHLCV{
			Time:   time.Unix(int64(b.Timestamp), 0).UTC(),
			Open:   decimalToFloat(b.Open),
			High:   decimalToFloat(b.High),
			Low:    decimalToFloat(b.Low),
			Close:  decimalToFloat(b.Close),
			Volume: float64(b.Volume),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("finance-go chart %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("finance-go chart %s: %w", symbol, ErrNoData)
	}
	return bars, nil
}

// FetchProfile delegates to the configured profile source.
func (f *FinanceGoFetcher) FetchProfile(ctx context.Context, symbol string) (*model.Profile, error) {
	if f.Profiles == nil {
		return nil, fmt.Errorf("finance-go: no profile source configured")
	}
	return f.Profiles.FetchProfile(ctx, symbol)
}

func decimalToFloat(d decimal.Decimal) float64 {
	v, _ := d.Float64()
	return v
}

// RangeStart converts a chart range such as "7d", "3mo" or "1y" into the start of
// the trailing window ending at now. Like Yahoo's range parameter, "d" counts
// trading days: the window opens at midnight of the n-th most recent weekday,
// today included. Exchange holidays are not skipped.
func RangeStart(now time.Time, rng string) (time.Time, error) {
	rng = strings.ToLower(strings.TrimSpace(rng))
	units := []struct {
		suffix string
		apply  func(n int) time.Time
	}{
		{"mo", func(n int) time.Time { return now.AddDate(0, -n, 0) }},
		{"wk", func(n int) time.Time { return now.AddDate(0, 0, -7*n) }},
		{"d", func(n int) time.Time { return tradingDaysBack(now, n) }},
		{"y", func(n int) time.Time { return now.AddDate(-n, 0, 0) }},
	}
	for _, u := range units {
		if !strings.HasSuffix(rng, u.suffix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(rng, u.suffix))
		if err != nil || n <= 0 {
			return time.Time{}, fmt.Errorf("invalid range %q", rng)
		}
		return u.apply(n), nil
	}
	return time.Time{}, fmt.Errorf("invalid range %q", rng)
}

func tradingDaysBack(now time.Time, n int) time.Time {
	y, m, d := now.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	for {
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			if n--; n == 0 {
				return day
			}
		}
		day = day.AddDate(0, 0, -1)
	}
}
