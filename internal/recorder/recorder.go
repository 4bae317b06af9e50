package recorder

import (
	"go.uber.org/zap"

	"StockFetch/internal/model"
)

// Recorder keeps a local log of fetch results for later inspection.
type Recorder interface {
	RecordPrices(records []model.PriceRecord) error
	RecordSectors(records []model.SectorRecord) error
	RecordHistory(rec *model.HistoricalRecord) error
	Close() error
}

// New opens a SQLite recorder at path, or returns a noop recorder when path is
// empty or the database cannot be opened.
func New(path string, log *zap.Logger) Recorder {
	if path == "" {
		return NewNoopRecorder()
	}
	if log == nil {
		log = zap.NewNop()
	}
	r, err := NewSQLiteRecorder(path, log)
	if err != nil {
		log.Warn("init sqlite recorder failed, using noop", zap.String("path", path), zap.Error(err))
		return NewNoopRecorder()
	}
	return r
}
