package model

import "time"

// PriceRecord is the current-price result for one ticker.
// Exactly one of CurrentPrice and Error is set.
type PriceRecord struct {
	Shortname    string   `json:"shortname"`
	CurrentPrice *float64 `json:"current_price,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// NewPriceRecord returns a successful price record.
func NewPriceRecord(ticker string, price float64) PriceRecord {
	return PriceRecord{Shortname: ticker, CurrentPrice: &price}
}

// NewPriceError returns a failed price record carrying err's message.
func NewPriceError(ticker string, err error) PriceRecord {
	return PriceRecord{Shortname: ticker, Error: ErrorText(err)}
}

// Failed reports whether the record carries an error instead of a price.
func (r PriceRecord) Failed() bool { return r.CurrentPrice == nil }

// SectorRecord is the sector/industry lookup result for one ticker.
type SectorRecord struct {
	Ticker   string `json:"ticker"`
	Sector   string `json:"sector,omitempty"`
	Industry string `json:"industry,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Failed reports whether the lookup failed.
func (r SectorRecord) Failed() bool { return r.Error != "" }

// MinutePrice is one entry of the intraday series.
type MinutePrice struct {
	Timestamp string    `json:"timestamp,omitempty"`
	Price     *float64  `json:"price,omitempty"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"-"`
}

// DayPrice is one entry of the daily series.
type DayPrice struct {
	Date  string    `json:"date,omitempty"`
	Price *float64  `json:"price,omitempty"`
	Error string    `json:"error,omitempty"`
	At    time.Time `json:"-"`
}

// HistoricalRecord holds the recent minute prices and older daily closes of a ticker.
type HistoricalRecord struct {
	Shortname string        `json:"shortname"`
	Minute    []MinutePrice `json:"minute"`
	Day       []DayPrice    `json:"day"`
}

// NewHistoricalRecord returns a record with empty, non-nil series.
func NewHistoricalRecord(ticker string) HistoricalRecord {
	return HistoricalRecord{
		Shortname: ticker,
		Minute:    []MinutePrice{},
		Day:       []DayPrice{},
	}
}

// SeriesError returns the first error entry of the minute and day series.
func (r *HistoricalRecord) SeriesError() (minute, day string) {
	for _, m := range r.Minute {
		if m.Error != "" {
			minute = m.Error
			break
		}
	}
	for _, d := range r.Day {
		if d.Error != "" {
			day = d.Error
			break
		}
	}
	return minute, day
}

// ErrorText returns the message recorded for a failed fetch. It is never empty.
func ErrorText(err error) string {
	if err == nil || err.Error() == "" {
		return "unknown error"
	}
	return err.Error()
}
