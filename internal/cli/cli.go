// Package cli holds the cobra commands behind the binaries in cmd/.
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"StockFetch/internal/collector"
	"StockFetch/internal/config"
	"StockFetch/internal/history"
	"StockFetch/internal/logging"
	"StockFetch/internal/recorder"
)

// deps are the seams the tests replace.
type deps struct {
	newFetcher  func(backend string, opts collector.Options) (collector.Fetcher, error)
	newRecorder func(path string, log *zap.Logger) recorder.Recorder
	now         func() time.Time
}

func defaultDeps() deps {
	return deps{
		newFetcher:  collector.NewFetcher,
		newRecorder: recorder.New,
		now:         time.Now,
	}
}

// flags shared by every command.
type commonFlags struct {
	configPath   string
	doubleEncode bool
}

func (f *commonFlags) register(cmd *cobra.Command, output bool) {
	cmd.Flags().StringVar(&f.configPath, "config", "", "path to the YAML config (default $STOCKFETCH_CONFIG or "+config.DefaultPath+")")
	if output {
		cmd.Flags().BoolVar(&f.doubleEncode, "double-encode", false, "print the JSON as a JSON string, as older consumers expect")
	}
}

// env is what a command needs once its configuration is loaded.
type env struct {
	cfg     *config.Config
	log     *zap.Logger
	fetcher collector.Fetcher
	rec     recorder.Recorder
}

func (e *env) Close() {
	if err := e.rec.Close(); err != nil {
		e.log.Warn("close recorder", zap.Error(err))
	}
	_ = e.log.Sync()
}

func (e *env) historyOptions() history.Options {
	loc, err := e.cfg.Location()
	if err != nil {
		loc = time.UTC
	}
	return history.Options{
		CutoffDays:  e.cfg.History.CutoffDays,
		MinuteRange: e.cfg.History.MinuteRange,
		DayRange:    e.cfg.History.DayRange,
		Location:    loc,
	}
}

func (d deps) setup(cmd *cobra.Command, flags *commonFlags) (*env, error) {
	cfg, err := config.Load(config.Path(flags.configPath))
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("double-encode") {
		cfg.Output.DoubleEncode = flags.doubleEncode
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	log, err := logging.NewWithWriter(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	fetcher, err := d.newFetcher(cfg.Provider.Backend, cfg.FetcherOptions())
	if err != nil {
		return nil, err
	}
	log.Debug("data source", zap.String("name", fetcher.Name()))

	return &env{
		cfg:     cfg,
		log:     log,
		fetcher: fetcher,
		rec:     d.newRecorder(cfg.Database.SQLitePath, log),
	}, nil
}
