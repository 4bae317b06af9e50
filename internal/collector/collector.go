package collector

import (
	"context"
	"fmt"
	"strings"

	"StockFetch/internal/model"
)

const (
	BackendYahoo     = "yahoo"
	BackendFinanceGo = "financego"
)

// NewFetcher builds the fetcher for the named backend.
func NewFetcher(backend string, opts Options) (Fetcher, error) {
	switch strings.ToLower(backend) {
	case "", BackendYahoo:
		return NewYahooFetcher(opts), nil
	case BackendFinanceGo:
		return NewFinanceGoFetcher(opts), nil
	default:
		return nil, fmt.Errorf("unknown provider backend %q", backend)
	}
}

// MockFetcher returns controllable fixed data for development and testing.
// Symbols missing from the maps fail with ErrNotFound.
type MockFetcher struct {
	Prices   map[string]float64
	Profiles map[string]model.Profile
	// Bars is keyed by symbol, then by interval.
	Bars map[string]map[string][]model.OHLCV
	// Errs fails every call for the symbol.
	Errs map[string]error
	// IntervalErrs fails FetchBars for an interval regardless of symbol.
	IntervalErrs map[string]error

	Calls []string
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) record(call, symbol string) error {
	m.Calls = append(m.Calls, call+":"+symbol)
	if strings.TrimSpace(symbol) == "" {
		return ErrEmptyTicker
	}
	if err, ok := m.Errs[symbol]; ok {
		return err
	}
	return nil
}

func (m *MockFetcher) FetchLatestClose(_ context.Context, symbol string) (float64, error) {
	if err := m.record("close", symbol); err != nil {
		return 0, err
	}
	p, ok := m.Prices[symbol]
	if !ok {
		return 0, fmt.Errorf("mock %s: %w", symbol, ErrNotFound)
	}
	return p, nil
}

func (m *MockFetcher) FetchBars(_ context.Context, symbol, interval, _ string) ([]model.OHLCV, error) {
	if err := m.record("bars/"+interval, symbol); err != nil {
		return nil, err
	}
	if err, ok := m.IntervalErrs[interval]; ok {
		return nil, err
	}
	byInterval, ok := m.Bars[symbol]
	if !ok {
		return nil, fmt.Errorf("mock %s: %w", symbol, ErrNotFound)
	}
	return byInterval[interval], nil
}

func (m *MockFetcher) FetchProfile(_ context.Context, symbol string) (*model.Profile, error) {
	if err := m.record("profile", symbol); err != nil {
		return nil, err
	}
	p, ok := m.Profiles[symbol]
	if !ok {
		return nil, fmt.Errorf("mock %s: %w", symbol, ErrNotFound)
	}
	return &p, nil
}
