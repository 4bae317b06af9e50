package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"StockFetch/internal/scheduler"
	"StockFetch/internal/store"
)

// NewPriceSyncCommand runs the service that keeps the game database's prices current.
func NewPriceSyncCommand() *cobra.Command {
	return defaultDeps().priceSyncCommand()
}

func (d deps) priceSyncCommand() *cobra.Command {
	var (
		flags      commonFlags
		runOnStart []string
	)
	cmd := &cobra.Command{
		Use:   "pricesync",
		Short: "Sync prices into Postgres on a schedule and serve manual triggers over HTTP",
		Long: `Fetches the prices of the active season's stocks and indices during US market
hours, backfills history on demand and runs nightly maintenance on the price tables.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := d.setup(cmd, &flags)
			if err != nil {
				return err
			}
			defer e.Close()
			if err := e.cfg.ValidateSync(); err != nil {
				return fmt.Errorf("config validation: %w", err)
			}
			e.log.Info("price sync starting", zap.String("source", e.fetcher.Name()))

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			st, err := store.Open(ctx, e.cfg.Database.PostgresURL, e.log)
			if err != nil {
				return err
			}
			defer st.Close()

			sched := scheduler.NewScheduler(ctx, e.fetcher, st, e.rec, e.log, scheduler.Options{
				History:       e.historyOptions(),
				BackfillPause: e.cfg.Sync.BackfillPause,
				DatabaseName:  e.cfg.Database.Name,
			})
			if err := sched.Register(scheduler.Schedule{
				PriceSync: e.cfg.Sync.PriceCrons,
				Compact:   e.cfg.Sync.CompactCron,
				Prune:     e.cfg.Sync.PruneCron,
				Reindex:   e.cfg.Sync.ReindexCron,
				Sectors:   e.cfg.Sync.SectorCron,
			}); err != nil {
				return err
			}
			sched.Start()
			defer sched.Stop()

			for _, name := range runOnStart {
				e.log.Info("running job on start", zap.String("job", name))
				if err := sched.Launch(name); err != nil {
					return err
				}
			}

			return serve(ctx, e.log, &http.Server{
				Addr:              e.cfg.Sync.ListenAddr,
				Handler:           sched.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			})
		},
	}
	flags.register(cmd, false)
	cmd.Flags().StringSliceVar(&runOnStart, "run-on-start", nil,
		"jobs to launch right after startup, e.g. sync-prices,backfill-history")
	return cmd
}

// serve runs srv until ctx is cancelled, then shuts it down gracefully.
func serve(ctx context.Context, log *zap.Logger, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutdown signal received, stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
