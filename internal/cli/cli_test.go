package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"StockFetch/internal/collector"
	"StockFetch/internal/model"
	"StockFetch/internal/recorder"
	"StockFetch/internal/sector"
)

type spyRecorder struct {
	prices  []model.PriceRecord
	sectors []model.SectorRecord
	history []*model.HistoricalRecord
	closed  bool
}

func (s *spyRecorder) RecordPrices(r []model.PriceRecord) error {
	s.prices = append(s.prices, r...)
	return nil
}

func (s *spyRecorder) RecordSectors(r []model.SectorRecord) error {
	s.sectors = append(s.sectors, r...)
	return errors.New("disk full")
}

func (s *spyRecorder) RecordHistory(r *model.HistoricalRecord) error {
	s.history = append(s.history, r)
	return nil
}

func (s *spyRecorder) Close() error {
	s.closed = true
	return nil
}

func testDeps(t *testing.T, f collector.Fetcher) (deps, *spyRecorder) {
	t.Helper()
	for _, k := range []string{"STOCKFETCH_BACKEND", "STOCKFETCH_DOUBLE_ENCODE", "STOCKFETCH_TIMEZONE", "LOG_FORMAT", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}
	t.Setenv("STOCKFETCH_CONFIG", filepath.Join(t.TempDir(), "none.yaml"))

	spy := &spyRecorder{}
	return deps{
		newFetcher:  func(string, collector.Options) (collector.Fetcher, error) { return f, nil },
		newRecorder: func(string, *zap.Logger) recorder.Recorder { return spy },
		now:         func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) },
	}, spy
}

func execute(cmd *cobra.Command, args ...string) (string, error) {
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCurrentPrice(t *testing.T) {
	f := &collector.MockFetcher{Prices: map[string]float64{"AAPL": 252.29}}
	d, spy := testDeps(t, f)

	out, err := execute(d.currentPriceCommand(), "AAPL,INVALIDXYZ")
	require.NoError(t, err)

	var records []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Len(t, records, 2)
	assert.Equal(t, "AAPL", records[0]["shortname"])
	assert.Equal(t, 252.29, records[0]["current_price"])
	assert.NotContains(t, records[0], "error")
	assert.Equal(t, "INVALIDXYZ", records[1]["shortname"])
	assert.NotEmpty(t, records[1]["error"])
	assert.NotContains(t, records[1], "current_price")

	assert.Contains(t, out, "\n    {", "four space indent")
	assert.Len(t, spy.prices, 2)
	assert.True(t, spy.closed)
}

func TestCurrentPrice_DoubleEncode(t *testing.T) {
	f := &collector.MockFetcher{Prices: map[string]float64{"^SP100": 3180.5}}
	d, _ := testDeps(t, f)

	out, err := execute(d.currentPriceCommand(), "--double-encode", "^SP100")
	require.NoError(t, err)

	var inner string
	require.NoError(t, json.Unmarshal([]byte(out), &inner), "output is a JSON string")
	var records []model.PriceRecord
	require.NoError(t, json.Unmarshal([]byte(inner), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "^SP100", records[0].Shortname)
	assert.Equal(t, 3180.5, *records[0].CurrentPrice)
}

func TestMissingArgument(t *testing.T) {
	tests := []struct {
		name string
		cmd  func(deps) *cobra.Command
		args []string
		want string
	}{
		{"current price without tickers", deps.currentPriceCommand, nil, "No Tickers given!.\n"},
		{"old prices without ticker", deps.oldPricesCommand, nil, "No Ticker given!.\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &collector.MockFetcher{}
			d, spy := testDeps(t, f)

			out, err := execute(tt.cmd(d), tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
			assert.Empty(t, f.Calls)
			assert.False(t, spy.closed, "no setup happens without an argument")
		})
	}
}

func TestCurrentPrice_BlankTickersGiveErrorRecords(t *testing.T) {
	f := &collector.MockFetcher{Prices: map[string]float64{"AAPL": 252.29}}
	d, _ := testDeps(t, f)

	out, err := execute(d.currentPriceCommand(), " ,AAPL")
	require.NoError(t, err)
	assert.NotContains(t, out, noTickersMessage)

	var records []model.PriceRecord
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Len(t, records, 2)
	assert.Empty(t, records[0].Shortname)
	assert.NotEmpty(t, records[0].Error)
	assert.Nil(t, records[0].CurrentPrice)
	assert.Equal(t, "AAPL", records[1].Shortname)

	out, err = execute(d.currentPriceCommand(), " ")
	require.NoError(t, err)
	var single []model.PriceRecord
	require.NoError(t, json.Unmarshal([]byte(out), &single))
	require.Len(t, single, 1)
	assert.NotEmpty(t, single[0].Error)
}

func TestSectorInfo(t *testing.T) {
	f := &collector.MockFetcher{Profiles: map[string]model.Profile{
		"AAPL": {Sector: "Technology", Industry: "Consumer Electronics"},
		"BRK-B": {Sector: "Financial Services"},
	}}
	d, spy := testDeps(t, f)

	out, err := execute(d.sectorInfoCommand())
	require.NoError(t, err, "recorder errors never fail the command")

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, len(sector.DefaultTickers()))
	assert.Equal(t, "UPDATE public.stock SET sector='Technology', industry='Consumer Electronics' WHERE shortname='AAPL';", lines[0])
	assert.Contains(t, out, "UPDATE public.stock SET sector='Financial Services', industry='N/A' WHERE shortname='BRK-B';")
	assert.True(t, strings.HasPrefix(lines[1], `-- {"ticker":"ABBV","error":`))
	assert.Len(t, spy.sectors, len(lines))
}

func TestSectorInfo_RejectsArguments(t *testing.T) {
	d, _ := testDeps(t, &collector.MockFetcher{})
	_, err := execute(d.sectorInfoCommand(), "AAPL")
	assert.Error(t, err)
}

func TestOldPrices(t *testing.T) {
	f := &collector.MockFetcher{Bars: map[string]map[string][]model.OHLCV{
		"AAPL": {
			"1m": {{Time: time.Date(2026, 10, 16, 13, 30, 0, 0, time.UTC), Close: 247.5}},
			"1d": {
				{Time: time.Date(2026, 9, 1, 13, 30, 0, 0, time.UTC), Close: 229.7},
				{Time: time.Date(2026, 10, 15, 13, 30, 0, 0, time.UTC), Close: 249.1},
			},
		},
	}}
	d, spy := testDeps(t, f)

	out, err := execute(d.oldPricesCommand(), "AAPL")
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"shortname": "AAPL",
		"minute": [{"timestamp": "2026-10-16 15:30:00", "price": 247.5}],
		"day": [{"date": "2026-09-01", "price": 229.7}]
	}`, out)
	require.Len(t, spy.history, 1)
	assert.Equal(t, "AAPL", spy.history[0].Shortname)
}

func TestConfigErrorsFailTheCommand(t *testing.T) {
	d, _ := testDeps(t, &collector.MockFetcher{})
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timezone: Nowhere/Land\n"), 0o644))

	_, err := execute(d.currentPriceCommand(), "--config", path, "AAPL")
	assert.ErrorContains(t, err, "timezone")
}

func TestPriceSync_RequiresPostgres(t *testing.T) {
	d, _ := testDeps(t, &collector.MockFetcher{})
	t.Setenv("DATABASE_URL", "")

	_, err := execute(d.priceSyncCommand())
	assert.ErrorContains(t, err, "database.postgres_url")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, map[string]string{"shortname": "AT&T"}, "", false))
	assert.Equal(t, `{"shortname":"AT&T"}`+"\n", buf.String())

	buf.Reset()
	require.NoError(t, writeJSON(&buf, []int{1}, "", true))
	assert.Equal(t, `"[1]"`+"\n", buf.String())
}
