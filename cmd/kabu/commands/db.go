package commands

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/kabu/internal/contracts"
	"github.com/wonny/kabu/internal/s0_data/quality"
	"github.com/wonny/kabu/pkg/config"
	"github.com/wonny/kabu/pkg/database"
	"github.com/wonny/kabu/pkg/logger"
)

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Store maintenance and inspection",
	Long: `Creates the schema, summarizes table contents, checks data quality
and tests the database connection.

Example:
  go run ./cmd/kabu db init
  go run ./cmd/kabu db summary
  go run ./cmd/kabu db check --date 2024-01-05
  go run ./cmd/kabu db ping`,
}

var (
	dbInitCmd = &cobra.Command{
		Use:   "init",
		Short: "Create tables and indexes",
		RunE:  runDBInit,
	}

	dbSummaryCmd = &cobra.Command{
		Use:   "summary",
		Short: "Row count and date span per table",
		RunE:  runDBSummary,
	}

	dbCheckCmd = &cobra.Command{
		Use:   "check",
		Short: "Coverage of prices, volumes and statements for a date",
		RunE:  runDBCheck,
	}

	dbPingCmd = &cobra.Command{
		Use:   "ping",
		Short: "Test the database connection",
		RunE:  runDBPing,
	}

	// Flags
	dbCheckDate string
)

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbInitCmd)
	dbCmd.AddCommand(dbSummaryCmd)
	dbCmd.AddCommand(dbCheckCmd)
	dbCmd.AddCommand(dbPingCmd)

	dbCheckCmd.Flags().StringVar(&dbCheckDate, "date", "", "trading date (YYYY-MM-DD, default: today)")
}

// migrator is implemented by stores whose schema is applied on demand
type migrator interface {
	Migrate(ctx context.Context) error
}

func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if storeBackend != "" {
		cfg.Store = storeBackend
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, logger.New(cfg), nil
}

func runDBInit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	// sqlite applies its schema on open; postgres needs an explicit migration
	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	if m, ok := store.(migrator); ok {
		if err := m.Migrate(ctx); err != nil {
			return err
		}
	}
	PrintSuccess(fmt.Sprintf("Schema ready (%s)", cfg.Store))
	return nil
}

func runDBSummary(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	summary, err := a.store.Summary(ctx)
	if err != nil {
		return fmt.Errorf("summarize store: %w", err)
	}

	PrintHeader("Store summary", "Backend", a.cfg.Store)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "table\trows\tfrom\tto\t")
	for _, t := range summary {
		from, to := t.MinDate, t.MaxDate
		if t.Rows == 0 {
			from, to = "-", "-"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t\n", t.Table, t.Rows, from, to)
	}
	return tw.Flush()
}

func runDBCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	date, err := parseDate("date", dbCheckDate, a.today())
	if err != nil {
		return err
	}

	gate := quality.NewQualityGate(a.store, quality.DefaultConfig(), a.log)
	snap, err := gate.Check(ctx, date)
	if err != nil {
		return err
	}

	PrintHeader("Data quality", "Date", date.Format(contracts.DateLayout), "Codes", fmt.Sprint(snap.TotalCodes))
	for _, k := range []string{"price", "volume", "statements"} {
		PrintKeyValue(k, fmt.Sprintf("%.1f%%", snap.Coverage[k]*100), 10)
	}
	PrintKeyValue("score", fmt.Sprintf("%.3f", snap.QualityScore), 10)
	PrintSeparator()

	if len(snap.Missing) > 0 {
		shown := snap.Missing
		if len(shown) > 20 {
			shown = shown[:20]
		}
		PrintWarning(fmt.Sprintf("%d active codes have no bar: %s", len(snap.Missing), strings.Join(shown, ", ")))
	}
	if !snap.Passed {
		return fmt.Errorf("quality gate failed for %s (score %.3f)", date.Format(contracts.DateLayout), snap.QualityScore)
	}
	PrintSuccess("Quality gate passed")
	return nil
}

func runDBPing(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	switch cfg.Store {
	case config.StorePostgres:
		PrintHeader("Database connection", "URL", redact(cfg.Database.URL))
		db, err := database.New(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		status, err := db.HealthCheck(ctx)
		if err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}
		PrintKeyValue("Response", status.ResponseTime.String(), 12)
		PrintKeyValue("Max conns", fmt.Sprint(status.Stats.MaxConns), 12)
		PrintKeyValue("Total conns", fmt.Sprint(status.Stats.TotalConns), 12)
		PrintKeyValue("Idle conns", fmt.Sprint(status.Stats.IdleConns), 12)
	case config.StoreSQLite:
		PrintHeader("Database connection", "Path", cfg.SQLite.Path)
		db, err := database.OpenSQLite(cfg.SQLite.Path)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Ping(ctx); err != nil {
			return fmt.Errorf("ping failed: %w", err)
		}
	default:
		PrintWarning(fmt.Sprintf("store %q has no connection to test", cfg.Store))
		return nil
	}

	PrintSuccess("Ping successful")
	return nil
}

// redact hides the password of a connection URL
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "***"
	}
	return u.Redacted()
}
