package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/kabu/internal/contracts"
	"github.com/wonny/kabu/internal/s0_data/collector"
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Collect data from J-Quants into the store",
	Long: `Fetches daily quotes, financial statements and the listed issue master.

Credentials come from JQUANTS_MAIL / JQUANTS_PASSWORD or JQUANTS_REFRESH_TOKEN.
Requests are limited to JQUANTS_RATE_LIMIT per second.

Example:
  go run ./cmd/kabu fetch listed
  go run ./cmd/kabu fetch quotes --from 2024-01-01 --to 2024-01-31
  go run ./cmd/kabu fetch quotes --codes 72030,67580
  go run ./cmd/kabu fetch statements --from 2024-01-01 --to 2024-01-31
  go run ./cmd/kabu fetch statements --all-codes`,
}

var (
	fetchQuotesCmd = &cobra.Command{
		Use:   "quotes",
		Short: "Fetch daily quotes by date, or full history by code",
		RunE:  runFetchQuotes,
	}

	fetchStatementsCmd = &cobra.Command{
		Use:   "statements",
		Short: "Fetch financial statements by disclosure date or by code",
		RunE:  runFetchStatements,
	}

	fetchListedCmd = &cobra.Command{
		Use:   "listed",
		Short: "Refresh the listed issue master",
		RunE:  runFetchListed,
	}

	// Flags
	fetchFrom     string
	fetchTo       string
	fetchCodes    string
	fetchAllCodes bool
	fetchWorkers  int
)

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.AddCommand(fetchQuotesCmd)
	fetchCmd.AddCommand(fetchStatementsCmd)
	fetchCmd.AddCommand(fetchListedCmd)

	for _, c := range []*cobra.Command{fetchQuotesCmd, fetchStatementsCmd} {
		c.Flags().StringVar(&fetchFrom, "from", "", "first date (YYYY-MM-DD, default: today)")
		c.Flags().StringVar(&fetchTo, "to", "", "last date (YYYY-MM-DD, default: from)")
		c.Flags().StringVar(&fetchCodes, "codes", "", "comma separated codes; fetches full history instead of dates")
		c.Flags().IntVar(&fetchWorkers, "workers", 0, "concurrent requests (default: JQUANTS_WORKERS)")
	}
	fetchStatementsCmd.Flags().BoolVar(&fetchAllCodes, "all-codes", false, "fetch full history for every active code")
}

func fetchConfig(a *app) collector.Config {
	if fetchWorkers > 0 {
		return collector.Config{Workers: fetchWorkers}
	}
	return collector.Config{Workers: a.cfg.JQuants.Workers}
}

func fetchRange(a *app) (time.Time, time.Time, error) {
	from, err := parseDate("from", fetchFrom, a.today())
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parseDate("to", fetchTo, from)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, contracts.NewConfigurationError("from",
			"%s is after %s", from.Format(contracts.DateLayout), to.Format(contracts.DateLayout))
	}
	return from, to, nil
}

func splitCodes(s string) []string {
	var codes []string
	for _, c := range strings.Split(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			codes = append(codes, c)
		}
	}
	return codes
}

func runFetchQuotes(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	col := a.collector()
	cfg := fetchConfig(a)

	if codes := splitCodes(fetchCodes); len(codes) > 0 {
		PrintHeader("Quote history", "Codes", strings.Join(codes, ", "))
		results, err := col.FetchQuoteHistory(ctx, codes, cfg)
		if err != nil {
			return fmt.Errorf("fetch quote history: %w", err)
		}
		PrintFetchResults("Quote history", results)
		return nil
	}

	from, to, err := fetchRange(a)
	if err != nil {
		return err
	}
	PrintHeader("Daily quotes",
		"Period", from.Format(contracts.DateLayout)+" ~ "+to.Format(contracts.DateLayout),
		"Workers", fmt.Sprint(cfg.Workers))

	results, err := col.FetchQuotes(ctx, from, to, cfg)
	if err != nil {
		return fmt.Errorf("fetch quotes: %w", err)
	}
	PrintFetchResults("Quote collection", results)
	return nil
}

func runFetchStatements(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	col := a.collector()
	cfg := fetchConfig(a)

	codes := splitCodes(fetchCodes)
	if len(codes) > 0 || fetchAllCodes {
		label := strings.Join(codes, ", ")
		if fetchAllCodes {
			label = "all active"
			codes = nil
		}
		PrintHeader("Statement history", "Codes", label)
		results, err := col.FetchStatementsByCode(ctx, codes, cfg)
		if err != nil {
			return fmt.Errorf("fetch statements: %w", err)
		}
		PrintFetchResults("Statement history", results)
		return nil
	}

	from, to, err := fetchRange(a)
	if err != nil {
		return err
	}
	PrintHeader("Statements",
		"Period", from.Format(contracts.DateLayout)+" ~ "+to.Format(contracts.DateLayout),
		"Workers", fmt.Sprint(cfg.Workers))

	results, err := col.FetchStatementsByDate(ctx, from, to, cfg)
	if err != nil {
		return fmt.Errorf("fetch statements: %w", err)
	}
	PrintFetchResults("Statement collection", results)
	return nil
}

func runFetchListed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	PrintHeader("Listed issue master")
	n, err := a.collector().FetchListed(ctx)
	if err != nil {
		return err
	}
	PrintSuccess(fmt.Sprintf("%d issues stored", n))
	return nil
}
