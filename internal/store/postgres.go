// Package store writes fetched prices into the game's Postgres database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"StockFetch/internal/model"
)

// PostgresStore reads the active season's instruments and writes their prices.
type PostgresStore struct {
	db  *sqlx.DB
	log *zap.Logger
}

// Open connects to Postgres through the pgx driver and checks the connection.
func Open(ctx context.Context, url string, log *zap.Logger) (*PostgresStore, error) {
	db, err := sqlx.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("ping postgres: %w, and close: %w", err, closeErr)
		}
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return New(db, log), nil
}

// New wraps an existing connection.
func New(db *sqlx.DB, log *zap.Logger) *PostgresStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &PostgresStore{db: db, log: log}
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// withTransaction runs fn in a transaction, committing when fn succeeds.
func (s *PostgresStore) withTransaction(ctx context.Context, fn func(*sqlx.Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.log.Error("rollback after panic failed", zap.Error(rbErr))
			}
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.log.Error("rollback failed", zap.Error(rbErr))
			}
		} else if commitErr := tx.Commit(); commitErr != nil {
			err = fmt.Errorf("commit transaction: %w", commitErr)
		}
	}()

	return fn(tx)
}

// priceTable names the tables holding an instrument and its prices.
type priceTable struct {
	instrument   string
	instrumentID string
	prices       string
	priceID      string
}

var (
	stockTable = priceTable{instrument: "stock", instrumentID: "id_stock", prices: "stock_price", priceID: "id_stock_price"}
	indexTable = priceTable{instrument: `"index"`, instrumentID: "id_index", prices: "index_price", priceID: "id_index_price"}
)

// IsIndex reports whether the ticker names an index rather than a stock.
func IsIndex(ticker string) bool {
	return strings.Contains(ticker, "^")
}

func tableFor(ticker string) priceTable {
	if IsIndex(ticker) {
		return indexTable
	}
	return stockTable
}

// insertQuery resolves the instrument through the active season. A ticker
// outside the active season inserts nothing.
func (t priceTable) insertQuery(date string) string {
	return fmt.Sprintf(`INSERT INTO %[1]s (%[2]s, price, date)
		SELECT i.%[2]s, $2::double precision, %[4]s
		FROM %[3]s i JOIN season se ON i.id_season = se.id_season
		WHERE i.shortname = $1 AND se.active_flag = TRUE
		LIMIT 1`, t.prices, t.instrumentID, t.instrument, date)
}

// ActiveTickers returns the shortnames of the stocks and indices in the active season.
func (s *PostgresStore) ActiveTickers(ctx context.Context) ([]string, error) {
	var tickers []string
	err := s.db.SelectContext(ctx, &tickers, `
		SELECT s.shortname
			FROM stock s
			JOIN season se ON s.id_season = se.id_season
			WHERE se.active_flag = TRUE
		UNION ALL
		SELECT i.shortname
			FROM "index" i
			JOIN season se ON i.id_season = se.id_season
			WHERE se.active_flag = TRUE`)
	if err != nil {
		return nil, fmt.Errorf("select active tickers: %w", err)
	}
	return tickers, nil
}

// InsertPrices stores the current prices, stamped with the database clock.
// Failed records are skipped. It returns the number of rows inserted.
func (s *PostgresStore) InsertPrices(ctx context.Context, records []model.PriceRecord) (int, error) {
	inserted := 0
	err := s.withTransaction(ctx, func(tx *sqlx.Tx) error {
		for _, r := range records {
			if r.Failed() {
				s.log.Warn("skipping price without value", zap.String("ticker", r.Shortname), zap.String("error", r.Error))
				continue
			}
			res, err := tx.ExecContext(ctx, tableFor(r.Shortname).insertQuery("now()::timestamp(0)"), r.Shortname, *r.CurrentPrice)
			if err != nil {
				return fmt.Errorf("insert price %s: %w", r.Shortname, err)
			}
			inserted += rowsAffected(res)
		}
		return nil
	})
	return inserted, err
}

// HasOldData reports whether a price at least two months old exists for the ticker.
func (s *PostgresStore) HasOldData(ctx context.Context, ticker string) (bool, error) {
	t := tableFor(ticker)
	query := fmt.Sprintf(`SELECT 1
		FROM %[1]s p JOIN %[2]s i ON i.%[3]s = p.%[3]s
		WHERE i.shortname = $1 AND p.date <= (now() - interval '2 months')::timestamp(0)
		LIMIT 1`, t.prices, t.instrument, t.instrumentID)

	var one int
	err := s.db.GetContext(ctx, &one, query, ticker)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check old data %s: %w", ticker, err)
	}
	return true, nil
}

// InsertHistory stores both series of a historical record in one transaction.
// Error entries are skipped. It returns the number of rows inserted.
func (s *PostgresStore) InsertHistory(ctx context.Context, rec *model.HistoricalRecord) (int, error) {
	query := tableFor(rec.Shortname).insertQuery("$3::timestamp")
	inserted := 0
	err := s.withTransaction(ctx, func(tx *sqlx.Tx) error {
		for _, m := range rec.Minute {
			if m.Error != "" || m.Price == nil {
				continue
			}
			res, err := tx.ExecContext(ctx, query, rec.Shortname, *m.Price, m.Timestamp)
			if err != nil {
				return fmt.Errorf("insert minute price %s %s: %w", rec.Shortname, m.Timestamp, err)
			}
			inserted += rowsAffected(res)
		}
		for _, d := range rec.Day {
			if d.Error != "" || d.Price == nil {
				continue
			}
			res, err := tx.ExecContext(ctx, query, rec.Shortname, *d.Price, d.Date)
			if err != nil {
				return fmt.Errorf("insert day price %s %s: %w", rec.Shortname, d.Date, err)
			}
			inserted += rowsAffected(res)
		}
		return nil
	})
	return inserted, err
}

// CompactPrices keeps only the last price per instrument and day for prices
// dated eight or more days ago, and moves that price to midnight.
func (s *PostgresStore) CompactPrices(ctx context.Context) error {
	return s.withTransaction(ctx, func(tx *sqlx.Tx) error {
		for _, t := range []priceTable{stockTable, indexTable} {
			ranked := fmt.Sprintf(`WITH ranked_old_prices AS (
				SELECT %[1]s, DATE(date) AS day,
					ROW_NUMBER() OVER (PARTITION BY %[2]s, DATE(date) ORDER BY date DESC) AS rn
				FROM %[3]s
				WHERE date::date <= CURRENT_DATE - INTERVAL '8 days'
			)`, t.priceID, t.instrumentID, t.prices)

			res, err := tx.ExecContext(ctx, ranked+fmt.Sprintf(`
				DELETE FROM %[1]s
				WHERE %[2]s IN (SELECT %[2]s FROM ranked_old_prices WHERE rn > 1)`, t.prices, t.priceID))
			if err != nil {
				return fmt.Errorf("compact %s: %w", t.prices, err)
			}
			deleted := rowsAffected(res)

			if _, err := tx.ExecContext(ctx, ranked+fmt.Sprintf(`
				UPDATE %[1]s SET date = sub.day::timestamp
				FROM (SELECT %[2]s, day FROM ranked_old_prices WHERE rn = 1) AS sub
				WHERE %[1]s.%[2]s = sub.%[2]s`, t.prices, t.priceID)); err != nil {
				return fmt.Errorf("redate %s: %w", t.prices, err)
			}
			s.log.Info("prices compacted", zap.String("table", t.prices), zap.Int("deleted", deleted))
		}
		return nil
	})
}

// PrunePrices deletes prices older than two months and returns the number removed.
func (s *PostgresStore) PrunePrices(ctx context.Context) (int, error) {
	deleted := 0
	err := s.withTransaction(ctx, func(tx *sqlx.Tx) error {
		for _, t := range []priceTable{stockTable, indexTable} {
			res, err := tx.ExecContext(ctx, fmt.Sprintf(
				`DELETE FROM %s WHERE date::date < CURRENT_DATE - INTERVAL '2 months'`, t.prices))
			if err != nil {
				return fmt.Errorf("prune %s: %w", t.prices, err)
			}
			deleted += rowsAffected(res)
		}
		return nil
	})
	return deleted, err
}

// Reindex rebuilds every index of the named database. It cannot run inside a transaction.
func (s *PostgresStore) Reindex(ctx context.Context, database string) error {
	if database == "" {
		return fmt.Errorf("reindex: empty database name")
	}
	if _, err := s.db.ExecContext(ctx, "REINDEX DATABASE "+pgx.Identifier{database}.Sanitize()); err != nil {
		return fmt.Errorf("reindex %s: %w", database, err)
	}
	return nil
}

// ApplySectors sets sector and industry of every stock with the record's
// shortname. Failed records are skipped. It returns the number of rows updated.
func (s *PostgresStore) ApplySectors(ctx context.Context, records []model.SectorRecord) (int, error) {
	updated := 0
	err := s.withTransaction(ctx, func(tx *sqlx.Tx) error {
		for _, r := range records {
			if r.Failed() {
				continue
			}
			res, err := tx.ExecContext(ctx,
				`UPDATE public.stock SET sector = $1, industry = $2 WHERE shortname = $3`,
				r.Sector, r.Industry, r.Ticker)
			if err != nil {
				return fmt.Errorf("update sector %s: %w", r.Ticker, err)
			}
			updated += rowsAffected(res)
		}
		return nil
	})
	return updated, err
}

func rowsAffected(res sql.Result) int {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return int(n)
}
