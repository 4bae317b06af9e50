package recorder

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"StockFetch/internal/model"
)

// SQLiteRecorder persists fetch results to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log *zap.Logger
	now func() time.Time
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, log *zap.Logger) (*SQLiteRecorder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets readers inspect the log while a fetch writes to it.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log, now: time.Now}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info("sqlite recorder opened", zap.String("path", dbPath))
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS price_fetches (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			ticker    TEXT NOT NULL,
			price     REAL,
			error     TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_price_ts ON price_fetches(timestamp)`,

		`CREATE TABLE IF NOT EXISTS sector_fetches (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			ticker    TEXT NOT NULL,
			sector    TEXT,
			industry  TEXT,
			error     TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sector_ts ON sector_fetches(timestamp)`,

		`CREATE TABLE IF NOT EXISTS history_fetches (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp    INTEGER NOT NULL,
			ticker       TEXT NOT NULL,
			minute_count INTEGER,
			day_count    INTEGER,
			minute_error TEXT,
			day_error    TEXT,
			payload      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_ts ON history_fetches(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *SQLiteRecorder) RecordPrices(records []model.PriceRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	now := r.now().Unix()
	for _, rec := range records {
		var price sql.NullFloat64
		if rec.CurrentPrice != nil {
			price = sql.NullFloat64{Float64: *rec.CurrentPrice, Valid: true}
		}
		if _, err := tx.Exec(`INSERT INTO price_fetches (timestamp, ticker, price, error) VALUES (?,?,?,?)`,
			now, rec.Shortname, price, nullString(rec.Error)); err != nil {
			return fmt.Errorf("insert price %s: %w", rec.Shortname, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) RecordSectors(records []model.SectorRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	now := r.now().Unix()
	for _, rec := range records {
		if _, err := tx.Exec(`INSERT INTO sector_fetches (timestamp, ticker, sector, industry, error) VALUES (?,?,?,?,?)`,
			now, rec.Ticker, nullString(rec.Sector), nullString(rec.Industry), nullString(rec.Error)); err != nil {
			return fmt.Errorf("insert sector %s: %w", rec.Ticker, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) RecordHistory(rec *model.HistoricalRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	minuteErr, dayErr := rec.SeriesError()
	minuteCount, dayCount := len(rec.Minute), len(rec.Day)
	if minuteErr != "" {
		minuteCount--
	}
	if dayErr != "" {
		dayCount--
	}

	_, err = r.db.Exec(`INSERT INTO history_fetches
		(timestamp, ticker, minute_count, day_count, minute_error, day_error, payload)
		VALUES (?,?,?,?,?,?,?)`,
		r.now().Unix(), rec.Shortname, minuteCount, dayCount,
		nullString(minuteErr), nullString(dayErr), string(payload),
	)
	return err
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info("closing sqlite recorder")
	return r.db.Close()
}
