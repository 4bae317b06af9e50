package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"StockFetch/internal/history"
	"StockFetch/internal/quote"
	"StockFetch/internal/sector"
)

const (
	noTickersMessage = "No Tickers given!."
	noTickerMessage  = "No Ticker given!."
)

// NewCurrentPriceCommand prints the latest close of each comma-separated ticker.
func NewCurrentPriceCommand() *cobra.Command {
	return defaultDeps().currentPriceCommand()
}

func (d deps) currentPriceCommand() *cobra.Command {
	var flags commonFlags
	cmd := &cobra.Command{
		Use:   "currentprice <comma-separated-tickers>",
		Short: "Print the current price of each ticker as JSON",
		Long: `Fetches the most recent daily close for every ticker in the list.
A ticker that cannot be fetched gets an error entry instead of a price.`,
		Example:      "  currentprice AAPL,MSFT,^SP100",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), noTickersMessage)
				return err
			}

			e, err := d.setup(cmd, &flags)
			if err != nil {
				return err
			}
			defer e.Close()

			records := quote.FetchCurrentPrices(cmd.Context(), e.fetcher, quote.ParseTickers(args[0]), e.log)
			if err := writeJSON(cmd.OutOrStdout(), records, "    ", e.cfg.Output.DoubleEncode); err != nil {
				return err
			}
			if err := e.rec.RecordPrices(records); err != nil {
				e.log.Error("record prices", zap.Error(err))
			}
			return nil
		},
	}
	flags.register(cmd, true)
	return cmd
}

// NewSectorInfoCommand prints SQL updates with the sector and industry of the tracked stocks.
func NewSectorInfoCommand() *cobra.Command {
	return defaultDeps().sectorInfoCommand()
}

func (d deps) sectorInfoCommand() *cobra.Command {
	var flags commonFlags
	cmd := &cobra.Command{
		Use:   "sectorinfo",
		Short: "Print UPDATE statements setting sector and industry of the tracked stocks",
		Long: `Looks up sector and industry of every tracked large cap and prints one
UPDATE public.stock statement per stock. Failed lookups are printed as SQL comments.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := d.setup(cmd, &flags)
			if err != nil {
				return err
			}
			defer e.Close()

			records := sector.FetchProfiles(cmd.Context(), e.fetcher, sector.DefaultTickers(), e.log)
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), sector.RenderSQL(records)); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			if err := e.rec.RecordSectors(records); err != nil {
				e.log.Error("record sectors", zap.Error(err))
			}
			return nil
		},
	}
	flags.register(cmd, false)
	return cmd
}

// NewOldPricesCommand prints the recent minute prices and older daily closes of one ticker.
func NewOldPricesCommand() *cobra.Command {
	return defaultDeps().oldPricesCommand()
}

func (d deps) oldPricesCommand() *cobra.Command {
	var flags commonFlags
	cmd := &cobra.Command{
		Use:   "oldprices <ticker>",
		Short: "Print minute prices after the cutoff date and daily closes before it as JSON",
		Long: `Fetches 1 minute bars over the last 7 days and daily bars over the last
3 months. Minutes after the cutoff date (today minus 9 days) and days before it are printed.`,
		Example:      "  oldprices AAPL",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), noTickerMessage)
				return err
			}

			e, err := d.setup(cmd, &flags)
			if err != nil {
				return err
			}
			defer e.Close()

			ticker := strings.TrimSpace(args[0])
			rec := history.FetchHistory(cmd.Context(), e.fetcher, ticker, d.now(), e.historyOptions(), e.log)
			if err := writeJSON(cmd.OutOrStdout(), rec, "", e.cfg.Output.DoubleEncode); err != nil {
				return err
			}
			if err := e.rec.RecordHistory(&rec); err != nil {
				e.log.Error("record history", zap.Error(err))
			}
			return nil
		},
	}
	flags.register(cmd, true)
	return cmd
}
