package recorder

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockFetch/internal/model"
)

func openTestRecorder(t *testing.T) *SQLiteRecorder {
	t.Helper()
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "nested", "fetch.db"), nil)
	require.NoError(t, err)
	r.now = func() time.Time { return time.Unix(1760707800, 0) }
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestSQLiteRecorder_RecordPrices(t *testing.T) {
	r := openTestRecorder(t)

	err := r.RecordPrices([]model.PriceRecord{
		model.NewPriceRecord("AAPL", 252.29),
		{Shortname: "INVALIDXYZ", Error: "symbol not found"},
	})
	require.NoError(t, err)

	rows, err := r.db.Query(`SELECT timestamp, ticker, price, error FROM price_fetches ORDER BY id`)
	require.NoError(t, err)
	defer rows.Close()

	type row struct {
		ts     int64
		ticker string
		price  sql.NullFloat64
		errMsg sql.NullString
	}
	var got []row
	for rows.Next() {
		var rw row
		require.NoError(t, rows.Scan(&rw.ts, &rw.ticker, &rw.price, &rw.errMsg))
		got = append(got, rw)
	}
	require.NoError(t, rows.Err())
	require.Len(t, got, 2)

	assert.Equal(t, int64(1760707800), got[0].ts)
	assert.Equal(t, "AAPL", got[0].ticker)
	assert.Equal(t, sql.NullFloat64{Float64: 252.29, Valid: true}, got[0].price)
	assert.False(t, got[0].errMsg.Valid)

	assert.False(t, got[1].price.Valid)
	assert.Equal(t, "symbol not found", got[1].errMsg.String)
}

func TestSQLiteRecorder_RecordSectors(t *testing.T) {
	r := openTestRecorder(t)

	require.NoError(t, r.RecordSectors([]model.SectorRecord{
		{Ticker: "AAPL", Sector: "Technology", Industry: "Consumer Electronics"},
		{Ticker: "MSFT", Error: "timeout"},
	}))

	var n int
	require.NoError(t, r.db.QueryRow(`SELECT COUNT(*) FROM sector_fetches WHERE error IS NULL`).Scan(&n))
	assert.Equal(t, 1, n)

	var sector string
	require.NoError(t, r.db.QueryRow(`SELECT sector FROM sector_fetches WHERE ticker = 'AAPL'`).Scan(&sector))
	assert.Equal(t, "Technology", sector)
}

func TestSQLiteRecorder_RecordHistory(t *testing.T) {
	r := openTestRecorder(t)

	p1, p2 := 1.5, 2.5
	rec := model.NewHistoricalRecord("AAPL")
	rec.Minute = append(rec.Minute,
		model.MinutePrice{Timestamp: "2026-10-16 15:30:00", Price: &p1},
		model.MinutePrice{Timestamp: "2026-10-16 15:31:00", Price: &p2},
	)
	rec.Day = append(rec.Day, model.DayPrice{Error: "no data returned"})
	require.NoError(t, r.RecordHistory(&rec))

	var (
		minuteCount, dayCount int
		minuteErr, dayErr     sql.NullString
		payload               string
	)
	require.NoError(t, r.db.QueryRow(`SELECT minute_count, day_count, minute_error, day_error, payload
		FROM history_fetches WHERE ticker = 'AAPL'`).Scan(&minuteCount, &dayCount, &minuteErr, &dayErr, &payload))

	assert.Equal(t, 2, minuteCount)
	assert.Equal(t, 0, dayCount)
	assert.False(t, minuteErr.Valid)
	assert.Equal(t, "no data returned", dayErr.String)
	assert.Contains(t, payload, `"timestamp":"2026-10-16 15:31:00"`)
}

func TestNew(t *testing.T) {
	assert.IsType(t, &NoopRecorder{}, New("", nil))

	r := New(filepath.Join(t.TempDir(), "fetch.db"), nil)
	t.Cleanup(func() { _ = r.Close() })
	assert.IsType(t, &SQLiteRecorder{}, r)
}
