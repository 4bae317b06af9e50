// Package history fetches the recent minute prices and the older daily closes of
// a ticker, split at a cutoff date.
package history

import (
	"context"
	"time"

	"go.uber.org/zap"

	"StockFetch/internal/collector"
	"StockFetch/internal/model"
)

const (
	TimestampLayout = "2006-01-02 15:04:05"
	DateLayout      = "2006-01-02"

	IntervalMinute = "1m"
	IntervalDay    = "1d"
)

// Options controls the windows of the two series.
type Options struct {
	// CutoffDays is how far back the cutoff date lies from today.
	CutoffDays  int
	MinuteRange string
	DayRange    string
	// Location is the reference timezone for minute timestamps and for today.
	Location *time.Location
}

// DefaultOptions covers 7 trading days of minutes. The 9 day cutoff leaves room
// for the weekend inside the 7 day minute range.
func DefaultOptions() Options {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		loc = time.UTC
	}
	return Options{
		CutoffDays:  9,
		MinuteRange: "7d",
		DayRange:    "3mo",
		Location:    loc,
	}
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}

// Cutoff returns now minus the given number of days.
func Cutoff(now time.Time, days int) time.Time {
	return now.AddDate(0, 0, -days)
}

// civilDate drops the clock so dates from different zones compare by calendar day.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FetchHistory builds the record for one ticker. Each series is fetched on its
// own; a failure adds one error entry to that series and leaves the other intact.
func FetchHistory(ctx context.Context, f collector.Fetcher, ticker string, now time.Time, opts Options, log *zap.Logger) model.HistoricalRecord {
	if log == nil {
		log = zap.NewNop()
	}
	loc := opts.location()
	cutoff := civilDate(Cutoff(now.In(loc), opts.CutoffDays))
	rec := model.NewHistoricalRecord(ticker)

	minutes, err := f.FetchBars(ctx, ticker, IntervalMinute, opts.MinuteRange)
	if err != nil {
		log.Warn("minute bars fetch failed", zap.String("ticker", ticker), zap.Error(err))
		rec.Minute = append(rec.Minute, model.MinutePrice{Error: model.ErrorText(err)})
	} else {
		for _, bar := range minutes {
			t := bar.Time.In(loc)
			if !civilDate(t).After(cutoff) {
				continue
			}
			price := bar.Close
			rec.Minute = append(rec.Minute, model.MinutePrice{
				Timestamp: t.Format(TimestampLayout),
				Price:     &price,
				At:        t,
			})
		}
	}

	days, err := f.FetchBars(ctx, ticker, IntervalDay, opts.DayRange)
	if err != nil {
		log.Warn("daily bars fetch failed", zap.String("ticker", ticker), zap.Error(err))
		rec.Day = append(rec.Day, model.DayPrice{Error: model.ErrorText(err)})
	} else {
		for _, bar := range days {
			// Daily bars are stamped in the exchange's zone, which carries the trading date.
			// The cutoff date's midnight is earlier than the cutoff itself, so that day stays.
			date := civilDate(bar.Time)
			if date.After(cutoff) {
				continue
			}
			price := bar.Close
			rec.Day = append(rec.Day, model.DayPrice{
				Date:  date.Format(DateLayout),
				Price: &price,
				At:    date,
			})
		}
	}

	log.Debug("history fetched",
		zap.String("ticker", ticker),
		zap.Int("minute", len(rec.Minute)),
		zap.Int("day", len(rec.Day)),
	)
	return rec
}
