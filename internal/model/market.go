package model

import "time"

// OHLCV represents a single candlestick bar.
type OHLCV struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Profile holds the descriptive metadata of a listed company.
// Empty fields mean the provider did not report them.
type Profile struct {
	Sector   string
	Industry string
}
