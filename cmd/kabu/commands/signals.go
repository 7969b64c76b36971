package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/kabu/internal/contracts"
	"github.com/wonny/kabu/internal/s2_signals"
)

// signalsCmd represents the signals command
var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "Build and inspect technical and fundamental signals",
	Long: `Builds signals from stored prices and statements, or lists stored signals.

Example:
  go run ./cmd/kabu signals technical --from 2024-01-01 --to 2024-01-31
  go run ./cmd/kabu signals fundamental --as-of 2024-01-31
  go run ./cmd/kabu signals list --date 2024-01-05`,
}

var (
	signalsTechnicalCmd = &cobra.Command{
		Use:   "technical",
		Short: "Compute and store technical indicator signals for a date range",
		RunE:  runSignalsTechnical,
	}

	signalsFundamentalCmd = &cobra.Command{
		Use:   "fundamental",
		Short: "Screen statements and store new fundamental signals",
		RunE:  runSignalsFundamental,
	}

	signalsListCmd = &cobra.Command{
		Use:   "list",
		Short: "List stored signals for a date",
		RunE:  runSignalsList,
	}

	// Flags
	sigFrom  string
	sigTo    string
	sigAsOf  string
	sigDate  string
	sigAll   bool
	sigShort bool
)

func init() {
	rootCmd.AddCommand(signalsCmd)
	signalsCmd.AddCommand(signalsTechnicalCmd)
	signalsCmd.AddCommand(signalsFundamentalCmd)
	signalsCmd.AddCommand(signalsListCmd)

	signalsTechnicalCmd.Flags().StringVar(&sigFrom, "from", "", "first date (YYYY-MM-DD, default: today)")
	signalsTechnicalCmd.Flags().StringVar(&sigTo, "to", "", "last date (YYYY-MM-DD, default: from)")

	signalsFundamentalCmd.Flags().StringVar(&sigAsOf, "as-of", "", "screen as of this date (YYYY-MM-DD, default: today)")

	signalsListCmd.Flags().StringVar(&sigDate, "date", "", "signal date (YYYY-MM-DD, default: today)")
	signalsListCmd.Flags().BoolVar(&sigAll, "all", false, "include non-first and stretched technical rows")
	signalsListCmd.Flags().BoolVar(&sigShort, "short", false, "list the short regime instead of long")
}

func runSignalsTechnical(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	from, err := parseDate("from", sigFrom, a.today())
	if err != nil {
		return err
	}
	to, err := parseDate("to", sigTo, from)
	if err != nil {
		return err
	}

	PrintHeader("Technical signals",
		"Period", from.Format(contracts.DateLayout)+" ~ "+to.Format(contracts.DateLayout))

	builder := s2_signals.NewBuilder(a.strategy.Technical, a.store, a.store, a.store, a.log)
	stats, err := builder.BuildRange(ctx, from, to)
	if err != nil {
		return fmt.Errorf("build technical signals: %w", err)
	}

	PrintKeyValue("Codes", fmt.Sprint(stats.Codes), 10)
	PrintKeyValue("Built", fmt.Sprint(stats.Success), 10)
	PrintKeyValue("Skipped", fmt.Sprint(stats.Skipped), 10)
	PrintKeyValue("Failed", fmt.Sprint(stats.Failed), 10)
	PrintKeyValue("Rows", fmt.Sprint(stats.Rows), 10)
	if stats.Failed > 0 {
		PrintWarning(fmt.Sprintf("%d codes failed (see log)", stats.Failed))
		return nil
	}
	PrintSuccess("Technical signals stored")
	return nil
}

func runSignalsFundamental(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	asOf, err := parseDate("as-of", sigAsOf, a.today())
	if err != nil {
		return err
	}

	PrintHeader("Fundamental screen", "As of", asOf.Format(contracts.DateLayout))

	screener := s2_signals.NewScreener(a.strategy.Fundamental, a.store, a.log)
	// disclosures made any time on the as-of date count
	result, err := screener.Screen(ctx, asOf.Add(24*time.Hour-time.Second))
	if err != nil {
		return fmt.Errorf("screen statements: %w", err)
	}
	if err := screener.Save(ctx, a.store, result); err != nil {
		return err
	}

	c := result.Counts
	PrintKeyValue("Loaded", fmt.Sprint(c.Loaded), 10)
	PrintKeyValue("Recent", fmt.Sprint(c.Recent), 10)
	PrintKeyValue("EPS", fmt.Sprint(c.EPS), 10)
	PrintKeyValue("CF", fmt.Sprint(c.CF), 10)
	PrintKeyValue("ETA", fmt.Sprint(c.ETA), 10)
	PrintKeyValue("Treasury", fmt.Sprint(c.Treasury), 10)
	PrintKeyValue("Noise", fmt.Sprint(c.Noise), 10)
	PrintSeparator()
	PrintSuccess(fmt.Sprintf("%d passed, %d new", len(result.Signals), result.Inserted))
	return nil
}

func runSignalsList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	date, err := parseDate("date", sigDate, a.today())
	if err != nil {
		return err
	}

	q := contracts.SignalQuery{
		Kind:             contracts.KindTechnical,
		From:             date,
		To:               date,
		MinCount:         a.strategy.Technical.SignalCountMin,
		FirstOnly:        !sigAll,
		ExcludeStretched: !sigAll,
		Side:             contracts.SideLong,
	}
	if sigShort {
		q.Side = contracts.SideShort
		q.MinCount = a.strategy.Technical.ShortSignalCountMin
	}
	technical, err := a.store.QuerySignals(ctx, q)
	if err != nil {
		return fmt.Errorf("query technical signals: %w", err)
	}

	fundamental, err := a.store.QuerySignals(ctx, contracts.SignalQuery{
		Kind: contracts.KindFundamental,
		From: date,
		To:   date,
	})
	if err != nil {
		return fmt.Errorf("query fundamental signals: %w", err)
	}

	PrintHeader("Signals", "Date", date.Format(contracts.DateLayout), "Side", string(q.Side))

	fmt.Fprintf(out, "\nTechnical (count >= %d): %d\n", q.MinCount, len(technical))
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  code\tcount\tma\trsi\tadx\tbb\tmacd\tfirst")
	for _, r := range technical {
		t := r.Technical
		bb := t.BB
		if q.Side == contracts.SideShort {
			bb = t.BBLower
		}
		fmt.Fprintf(tw, "  %s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Code, t.CountFor(q.Side), mark(t.MA), mark(t.RSI), mark(t.ADX), mark(bb), mark(t.MACD), mark(t.FirstFor(q.Side)))
	}
	tw.Flush()

	fmt.Fprintf(out, "\nFundamental: %d\n", len(fundamental))
	tw = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  code\tdisclosed\tperiod\teps_yoy\tcf_quality\teta_delta")
	for _, r := range fundamental {
		f := r.Fundamental
		eps := f.EPSYoYFY
		if eps == nil {
			eps = f.EPSYoYQ
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\t%s\n",
			r.Code, f.DisclosedAt.Format("2006-01-02 15:04"), f.TypeOfCurrentPeriod, ratio(eps), ratio(f.CFQuality), ratio(f.ETADelta))
	}
	return tw.Flush()
}

func mark(b bool) string {
	if b {
		return "●"
	}
	return "·"
}

func ratio(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.3f", *v)
}
