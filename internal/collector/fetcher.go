package collector

import (
	"context"
	"errors"

	"StockFetch/internal/model"
)

var (
	// ErrNoData is returned when the provider answers without any usable bars.
	ErrNoData = errors.New("no data returned")
	// ErrNotFound is returned when the provider does not know the symbol.
	ErrNotFound = errors.New("symbol not found")
	// ErrEmptyTicker is returned for blank ticker symbols.
	ErrEmptyTicker = errors.New("empty ticker symbol")
)

// Fetcher defines the interface for fetching market data.
//
// interval and rng use the provider's chart vocabulary, e.g. "1m"/"1d" and "7d"/"3mo".
type Fetcher interface {
	FetchLatestClose(ctx context.Context, symbol string) (float64, error)
	FetchBars(ctx context.Context, symbol, interval, rng string) ([]model.OHLCV, error)
	FetchProfile(ctx context.Context, symbol string) (*model.Profile, error)
	Name() string
}
