package commands

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/kabu/internal/backtest"
	"github.com/wonny/kabu/internal/contracts"
	"github.com/wonny/kabu/internal/report"
)

// backtestCmd represents the backtest command
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Simulate a strategy against stored signals and prices",
	Long: `Runs a configured strategy (see --thresholds) over one signal date or a range.

Strategies:
  statements       fundamental screen, enter next day, hold 40 days
  technical        technical count >= 3, 5% stop, hold 60 days
  technical_first  as technical, first occurrences only
  technical_short  short side on oversold first occurrences
  model            top-N by model score, hold 30 days

Example:
  go run ./cmd/kabu backtest single --strategy statements --date 2024-01-05
  go run ./cmd/kabu backtest range --strategy technical --from 2024-01-01 --to 2024-03-31 --format csv --out trades.csv`,
}

var (
	backtestSingleCmd = &cobra.Command{
		Use:   "single",
		Short: "Backtest the signals of one date",
		RunE:  runBacktestSingle,
	}

	backtestRangeCmd = &cobra.Command{
		Use:   "range",
		Short: "Backtest every signal date in a range",
		RunE:  runBacktestRange,
	}

	backtestListCmd = &cobra.Command{
		Use:   "list",
		Short: "List configured strategies",
		RunE:  runBacktestList,
	}

	// Flags
	btStrategy  string
	btDate      string
	btFrom      string
	btTo        string
	btFormat    string
	btOut       string
	btHoldDays  int
	btStopLoss  float64
	btCapital   float64
	btMinCount  int
	btFirstOnly bool
	btWorkers   int
	btSide      string
)

func init() {
	rootCmd.AddCommand(backtestCmd)
	backtestCmd.AddCommand(backtestSingleCmd)
	backtestCmd.AddCommand(backtestRangeCmd)
	backtestCmd.AddCommand(backtestListCmd)

	for _, c := range []*cobra.Command{backtestSingleCmd, backtestRangeCmd} {
		c.Flags().StringVar(&btStrategy, "strategy", "", "strategy name (required)")
		c.Flags().StringVar(&btFormat, "format", "text", "report format: text|json|csv|parquet")
		c.Flags().StringVarP(&btOut, "out", "o", "", "write the report to a file instead of stdout")
		c.Flags().IntVar(&btHoldDays, "hold-days", 0, "override holding period (trading days)")
		c.Flags().Float64Var(&btStopLoss, "stop-loss", 0, "override stop loss fraction, e.g. 0.05")
		c.Flags().Float64Var(&btCapital, "capital", 0, "override capital per trade")
		c.Flags().IntVar(&btMinCount, "min-count", 0, "override minimum technical signal count")
		c.Flags().BoolVar(&btFirstOnly, "first", false, "override: first occurrences only")
		c.Flags().StringVar(&btSide, "side", "", "override side: long|short")
		c.MarkFlagRequired("strategy")
	}

	backtestSingleCmd.Flags().StringVar(&btDate, "date", "", "signal date (YYYY-MM-DD, required)")
	backtestSingleCmd.MarkFlagRequired("date")

	backtestRangeCmd.Flags().StringVar(&btFrom, "from", "", "first signal date (YYYY-MM-DD, required)")
	backtestRangeCmd.Flags().StringVar(&btTo, "to", "", "last signal date (YYYY-MM-DD, default: from)")
	backtestRangeCmd.Flags().IntVar(&btWorkers, "workers", 0, "override dates simulated concurrently")
	backtestRangeCmd.MarkFlagRequired("from")
}

func runBacktestSingle(cmd *cobra.Command, args []string) error {
	date, err := parseDate("date", btDate, time.Time{})
	if err != nil {
		return err
	}
	return runBacktest(cmd, date, date)
}

func runBacktestRange(cmd *cobra.Command, args []string) error {
	from, err := parseDate("from", btFrom, time.Time{})
	if err != nil {
		return err
	}
	to, err := parseDate("to", btTo, from)
	if err != nil {
		return err
	}
	return runBacktest(cmd, from, to)
}

func runBacktest(cmd *cobra.Command, from, to time.Time) error {
	format, err := report.ParseFormat(btFormat)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := buildStrategy(cmd, a)
	if err != nil {
		return err
	}

	engine := backtest.NewEngine(a.store, a.store, a.log)
	result, err := engine.RunRange(ctx, from, to, s)
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	w, closeOut, err := output(btOut)
	if err != nil {
		return err
	}
	defer closeOut()

	if err := report.Write(w, format, result.Trades, backtest.Summarize(result.Trades)); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if format == report.FormatText && len(result.Trades) > 0 {
		r := backtest.AnalyzeRisk(result.Trades, backtest.DefaultConfidence)
		fmt.Fprintf(w, "VaR %.0f%%: %.2f%%  CVaR: %.2f%%  Sortino: %.3f  Profit factor: %.2f\n",
			r.Confidence*100, r.VaR, r.CVaR, r.Sortino, r.ProfitFactor)
	}
	if len(result.Skips) > 0 && format == report.FormatText {
		fmt.Fprintf(os.Stderr, "%d signals skipped (see log for reasons)\n", len(result.Skips))
	}
	if btOut != "" {
		fmt.Fprintf(os.Stderr, "Report written to %s (%d trades)\n", btOut, len(result.Trades))
	}
	return nil
}

// buildStrategy resolves --strategy and applies the explicitly set overrides
func buildStrategy(cmd *cobra.Command, a *app) (backtest.Strategy, error) {
	spec, ok := a.strategy.Strategy(btStrategy)
	if !ok {
		return backtest.Strategy{}, contracts.NewConfigurationError("strategy", "unknown strategy %q", btStrategy)
	}

	flags := cmd.Flags()
	if flags.Changed("hold-days") {
		spec.HoldDays = btHoldDays
	}
	if flags.Changed("stop-loss") {
		spec.StopLossPct = btStopLoss
	}
	if flags.Changed("capital") {
		spec.Capital = btCapital
	}
	if flags.Changed("min-count") {
		spec.MinCount = btMinCount
	}
	if flags.Changed("first") {
		spec.FirstOnly = btFirstOnly
	}
	if flags.Changed("side") {
		spec.Side = btSide
	}
	if flags.Changed("workers") {
		spec.Workers = btWorkers
	}

	source, err := backtest.NewSource(spec, a.store, a.store, a.strategy.Model)
	if err != nil {
		return backtest.Strategy{}, err
	}
	return backtest.FromSpec(spec, source)
}

// output opens path for writing, or returns stdout when path is empty
func output(path string) (io.Writer, func(), error) {
	if path == "" {
		return out, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, func() { f.Close() }, nil
}

func runBacktestList(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	PrintHeader("Configured strategies")
	for _, s := range a.strategy.Strategies {
		var opts []string
		if s.StopLossPct > 0 {
			opts = append(opts, fmt.Sprintf("stop %.0f%%", s.StopLossPct*100))
		}
		if s.MinCount > 0 {
			opts = append(opts, fmt.Sprintf("count>=%d", s.MinCount))
		}
		if s.FirstOnly {
			opts = append(opts, "first only")
		}
		if s.TopN > 0 {
			opts = append(opts, fmt.Sprintf("top %d", s.TopN))
		}
		fmt.Fprintf(out, "  %-16s %-11s %-5s offset %d, hold %d  %s\n",
			s.Name, s.Source, s.Side, s.EntryOffsetDays, s.HoldDays, strings.Join(opts, ", "))
	}
	return nil
}
