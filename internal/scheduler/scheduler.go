package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"StockFetch/internal/collector"
	"StockFetch/internal/history"
	"StockFetch/internal/model"
	"StockFetch/internal/quote"
	"StockFetch/internal/recorder"
	"StockFetch/internal/sector"
)

// Job names, also used in logs.
const (
	JobSyncPrices      = "sync-prices"
	JobBackfillHistory = "backfill-history"
	JobCompactPrices   = "compact-prices"
	JobPrunePrices     = "prune-prices"
	JobReindex         = "reindex"
	JobSyncSectors     = "sync-sectors"
)

var (
	ErrJobRunning = errors.New("job already running")
	ErrUnknownJob = errors.New("unknown job")
)

// PriceStore is the database side of the sync jobs.
type PriceStore interface {
	ActiveTickers(ctx context.Context) ([]string, error)
	InsertPrices(ctx context.Context, records []model.PriceRecord) (int, error)
	HasOldData(ctx context.Context, ticker string) (bool, error)
	InsertHistory(ctx context.Context, rec *model.HistoricalRecord) (int, error)
	CompactPrices(ctx context.Context) error
	PrunePrices(ctx context.Context) (int, error)
	Reindex(ctx context.Context, database string) error
	ApplySectors(ctx context.Context, records []model.SectorRecord) (int, error)
}

// Options tunes the jobs.
type Options struct {
	History       history.Options
	BackfillPause time.Duration
	DatabaseName  string
}

// Schedule holds the cron specs. An empty spec leaves the job manual-only.
type Schedule struct {
	PriceSync []string
	Compact   string
	Prune     string
	Reindex   string
	Sectors   string
}

type job struct {
	mu  sync.Mutex
	run func(ctx context.Context) error
}

// Scheduler runs the sync jobs on cron and on demand. A job never overlaps itself.
type Scheduler struct {
	cron     *cron.Cron
	fetcher  collector.Fetcher
	store    PriceStore
	recorder recorder.Recorder
	log      *zap.Logger
	opts     Options
	ctx      context.Context
	jobs     map[string]*job
	wg       sync.WaitGroup

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewScheduler creates a new Scheduler. Jobs stop early when ctx is cancelled.
func NewScheduler(ctx context.Context, f collector.Fetcher, st PriceStore, rec recorder.Recorder, log *zap.Logger, opts Options) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	s := &Scheduler{
		cron:     cron.New(cron.WithLogger(cronLogger{log.Sugar()})),
		fetcher:  f,
		store:    st,
		recorder: rec,
		log:      log,
		opts:     opts,
		ctx:      ctx,
		now:      time.Now,
		sleep:    sleepContext,
	}
	s.jobs = map[string]*job{
		JobSyncPrices:      {run: s.syncPrices},
		JobBackfillHistory: {run: s.backfillHistory},
		JobCompactPrices:   {run: s.compactPrices},
		JobPrunePrices:     {run: s.prunePrices},
		JobReindex:         {run: s.reindex},
		JobSyncSectors:     {run: s.syncSectors},
	}
	return s
}

// Jobs lists the job names in sorted order.
func (s *Scheduler) Jobs() []string {
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Register adds the cron entries for every non-empty spec.
func (s *Scheduler) Register(sch Schedule) error {
	for _, spec := range sch.PriceSync {
		if err := s.add(spec, JobSyncPrices); err != nil {
			return err
		}
	}
	for name, spec := range map[string]string{
		JobCompactPrices: sch.Compact,
		JobPrunePrices:   sch.Prune,
		JobReindex:       sch.Reindex,
		JobSyncSectors:   sch.Sectors,
	} {
		if spec == "" {
			continue
		}
		if err := s.add(spec, name); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) add(spec, name string) error {
	if _, err := s.cron.AddFunc(spec, func() { s.trigger(name) }); err != nil {
		return fmt.Errorf("register %s task %q: %w", name, spec, err)
	}
	s.log.Info("task registered", zap.String("job", name), zap.String("spec", spec))
	return nil
}

// trigger runs a job from cron. A still running previous run makes it a no-op.
func (s *Scheduler) trigger(name string) {
	if err := s.Run(name); err != nil && !errors.Is(err, ErrJobRunning) {
		s.log.Error("job failed", zap.String("job", name), zap.Error(err))
	}
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

// Run executes the named job synchronously.
func (s *Scheduler) Run(name string) error {
	j, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	if !j.mu.TryLock() {
		s.log.Warn("job still running, skipping", zap.String("job", name))
		return fmt.Errorf("%s: %w", name, ErrJobRunning)
	}
	defer j.mu.Unlock()
	return s.execute(name, j)
}

// Launch starts the named job in the background. It fails immediately when the
// job is unknown or already running.
func (s *Scheduler) Launch(name string) error {
	j, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	if !j.mu.TryLock() {
		return fmt.Errorf("%s: %w", name, ErrJobRunning)
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer j.mu.Unlock()
		if err := s.execute(name, j); err != nil {
			s.log.Error("job failed", zap.String("job", name), zap.Error(err))
		}
	}()
	return nil
}

func (s *Scheduler) execute(name string, j *job) error {
	start := s.now()
	s.log.Info("running job", zap.String("job", name))
	if err := j.run(s.ctx); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	s.log.Info("job completed", zap.String("job", name), zap.Duration("took", s.now().Sub(start)))
	return nil
}

func (s *Scheduler) syncPrices(ctx context.Context) error {
	tickers, err := s.store.ActiveTickers(ctx)
	if err != nil {
		return err
	}
	records := quote.FetchCurrentPrices(ctx, s.fetcher, tickers, s.log)
	if err := s.recorder.RecordPrices(records); err != nil {
		s.log.Error("record prices", zap.Error(err))
	}
	n, err := s.store.InsertPrices(ctx, records)
	if err != nil {
		return err
	}
	s.log.Info("prices inserted", zap.Int("tickers", len(tickers)), zap.Int("rows", n))
	return nil
}

func (s *Scheduler) backfillHistory(ctx context.Context) error {
	tickers, err := s.store.ActiveTickers(ctx)
	if err != nil {
		return err
	}
	for i, ticker := range tickers {
		if err := ctx.Err(); err != nil {
			return err
		}
		has, err := s.store.HasOldData(ctx, ticker)
		if err != nil {
			s.log.Error("check old data", zap.String("ticker", ticker), zap.Error(err))
			continue
		}
		if has {
			s.log.Debug("old data already present", zap.String("ticker", ticker))
			continue
		}

		rec := history.FetchHistory(ctx, s.fetcher, ticker, s.now(), s.opts.History, s.log)
		if err := s.recorder.RecordHistory(&rec); err != nil {
			s.log.Error("record history", zap.Error(err))
		}
		n, err := s.store.InsertHistory(ctx, &rec)
		if err != nil {
			s.log.Error("insert history", zap.String("ticker", ticker), zap.Error(err))
		} else {
			s.log.Info("old data inserted", zap.String("ticker", ticker), zap.Int("rows", n))
		}

		if i < len(tickers)-1 && s.opts.BackfillPause > 0 {
			if err := s.sleep(ctx, s.opts.BackfillPause); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Scheduler) compactPrices(ctx context.Context) error {
	return s.store.CompactPrices(ctx)
}

func (s *Scheduler) prunePrices(ctx context.Context) error {
	n, err := s.store.PrunePrices(ctx)
	if err != nil {
		return err
	}
	s.log.Info("old prices deleted", zap.Int("rows", n))
	return nil
}

func (s *Scheduler) reindex(ctx context.Context) error {
	return s.store.Reindex(ctx, s.opts.DatabaseName)
}

func (s *Scheduler) syncSectors(ctx context.Context) error {
	records := sector.FetchProfiles(ctx, s.fetcher, sector.DefaultTickers(), s.log)
	if err := s.recorder.RecordSectors(records); err != nil {
		s.log.Error("record sectors", zap.Error(err))
	}
	n, err := s.store.ApplySectors(ctx, records)
	if err != nil {
		return err
	}
	s.log.Info("sectors updated", zap.Int("rows", n))
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// cronLogger adapts zap to cron's logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
