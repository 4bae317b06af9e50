package recorder

import "StockFetch/internal/model"

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordPrices(_ []model.PriceRecord) error     { return nil }
func (n *NoopRecorder) RecordSectors(_ []model.SectorRecord) error   { return nil }
func (n *NoopRecorder) RecordHistory(_ *model.HistoricalRecord) error { return nil }
func (n *NoopRecorder) Close() error                                  { return nil }
