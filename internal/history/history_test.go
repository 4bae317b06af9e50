package history

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockFetch/internal/collector"
	"StockFetch/internal/model"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func TestCutoff(t *testing.T) {
	now := time.Date(2026, 3, 5, 15, 4, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 2, 24, 15, 4, 0, 0, time.UTC), Cutoff(now, 9))
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, 9, opts.CutoffDays)
	assert.Equal(t, "7d", opts.MinuteRange)
	assert.Equal(t, "3mo", opts.DayRange)
	assert.Equal(t, "Europe/Berlin", opts.Location.String())
}

func TestFetchHistory_Partition(t *testing.T) {
	ny := mustLoad(t, "America/New_York")
	opts := DefaultOptions()
	// Cutoff date is 2026-10-10 in Berlin.
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, opts.Location)

	f := &collector.MockFetcher{Bars: map[string]map[string][]model.OHLCV{
		"AAPL": {
			IntervalMinute: {
				// 2026-10-10 17:59 in New York is 2026-10-10 23:59 in Berlin: on the cutoff date.
				{Time: time.Date(2026, 10, 10, 17, 59, 0, 0, ny), Close: 1},
				// 18:30 in New York is already 2026-10-11 in Berlin.
				{Time: time.Date(2026, 10, 10, 18, 30, 0, 0, ny), Close: 2},
				{Time: time.Date(2026, 10, 16, 9, 30, 0, 0, ny), Close: 3},
			},
			IntervalDay: {
				{Time: time.Date(2026, 10, 8, 9, 30, 0, 0, ny), Close: 10},
				{Time: time.Date(2026, 10, 9, 9, 30, 0, 0, ny), Close: 11},
				{Time: time.Date(2026, 10, 10, 9, 30, 0, 0, ny), Close: 12},
				{Time: time.Date(2026, 10, 13, 9, 30, 0, 0, ny), Close: 13},
			},
		},
	}}

	rec := FetchHistory(context.Background(), f, "AAPL", now, opts, nil)
	assert.Equal(t, "AAPL", rec.Shortname)

	require.Len(t, rec.Minute, 2)
	assert.Equal(t, "2026-10-11 00:30:00", rec.Minute[0].Timestamp)
	assert.Equal(t, 2.0, *rec.Minute[0].Price)
	assert.Equal(t, "2026-10-16 15:30:00", rec.Minute[1].Timestamp)

	require.Len(t, rec.Day, 3)
	assert.Equal(t, "2026-10-08", rec.Day[0].Date)
	assert.Equal(t, "2026-10-09", rec.Day[1].Date)
	assert.Equal(t, "2026-10-10", rec.Day[2].Date, "the cutoff date's close is kept")
	assert.Equal(t, 12.0, *rec.Day[2].Price)

	cutoff := "2026-10-10"
	for _, m := range rec.Minute {
		assert.Greater(t, m.Timestamp[:10], cutoff)
	}
	for _, d := range rec.Day {
		assert.LessOrEqual(t, d.Date, cutoff)
	}
	assert.Equal(t, []string{"bars/1m:AAPL", "bars/1d:AAPL"}, f.Calls)
}

func TestFetchHistory_CutoffDateInExactlyOneSeries(t *testing.T) {
	opts := DefaultOptions()
	// Cutoff date is Friday 2026-10-09.
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, opts.Location)
	onCutoff := time.Date(2026, 10, 9, 15, 0, 0, 0, opts.Location)

	f := &collector.MockFetcher{Bars: map[string]map[string][]model.OHLCV{
		"MSFT": {
			IntervalMinute: {{Time: onCutoff, Close: 510.2}},
			IntervalDay:    {{Time: time.Date(2026, 10, 9, 0, 0, 0, 0, time.UTC), Close: 511}},
		},
	}}

	rec := FetchHistory(context.Background(), f, "MSFT", now, opts, nil)
	assert.Empty(t, rec.Minute)
	require.Len(t, rec.Day, 1)
	assert.Equal(t, "2026-10-09", rec.Day[0].Date)
	assert.Equal(t, 511.0, *rec.Day[0].Price)
}

func TestFetchHistory_SeriesFailIndependently(t *testing.T) {
	opts := DefaultOptions()
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	dayBars := []model.OHLCV{{Time: time.Date(2026, 9, 1, 9, 30, 0, 0, time.UTC), Close: 5}}

	t.Run("minute fails", func(t *testing.T) {
		f := &collector.MockFetcher{
			Bars:         map[string]map[string][]model.OHLCV{"MSFT": {IntervalDay: dayBars}},
			IntervalErrs: map[string]error{IntervalMinute: errors.New("1m data not available")},
		}
		rec := FetchHistory(context.Background(), f, "MSFT", now, opts, nil)
		require.Len(t, rec.Minute, 1)
		assert.Equal(t, "1m data not available", rec.Minute[0].Error)
		assert.Nil(t, rec.Minute[0].Price)
		require.Len(t, rec.Day, 1)
		assert.Equal(t, "2026-09-01", rec.Day[0].Date)

		minuteErr, dayErr := rec.SeriesError()
		assert.NotEmpty(t, minuteErr)
		assert.Empty(t, dayErr)
	})

	t.Run("unknown ticker fails both", func(t *testing.T) {
		f := &collector.MockFetcher{}
		rec := FetchHistory(context.Background(), f, "INVALIDXYZ", now, opts, nil)
		require.Len(t, rec.Minute, 1)
		require.Len(t, rec.Day, 1)
		assert.Contains(t, rec.Minute[0].Error, collector.ErrNotFound.Error())
		assert.Contains(t, rec.Day[0].Error, collector.ErrNotFound.Error())
	})
}

func TestFetchHistory_JSONShape(t *testing.T) {
	opts := DefaultOptions()
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, opts.Location)
	f := &collector.MockFetcher{
		Bars: map[string]map[string][]model.OHLCV{"AAPL": {
			IntervalMinute: {{Time: time.Date(2026, 10, 16, 13, 30, 0, 0, time.UTC), Close: 247.5}},
		}},
		IntervalErrs: map[string]error{IntervalDay: errors.New("boom")},
	}

	rec := FetchHistory(context.Background(), f, "AAPL", now, opts, nil)
	b, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"shortname": "AAPL",
		"minute": [{"timestamp": "2026-10-16 15:30:00", "price": 247.5}],
		"day": [{"error": "boom"}]
	}`, string(b))
}

func TestFetchHistory_EmptySeriesEncodeAsArrays(t *testing.T) {
	f := &collector.MockFetcher{Bars: map[string]map[string][]model.OHLCV{"AAPL": {}}}
	rec := FetchHistory(context.Background(), f, "AAPL", time.Now(), DefaultOptions(), nil)

	b, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"shortname":"AAPL","minute":[],"day":[]}`, string(b))
}
