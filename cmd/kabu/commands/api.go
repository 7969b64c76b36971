package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/kabu/internal/api"
	"github.com/wonny/kabu/internal/api/handlers"
	"github.com/wonny/kabu/internal/s0_data/quality"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the HTTP API server",
	Long: `Starts the REST API over the configured store.

Endpoints:
  GET /health                 - Health check
  GET /api/strategies         - Configured strategies
  GET /api/backtest           - Run a backtest (strategy, date | from, to)
  GET /api/backtest/stream    - Same, streamed trade by trade over a websocket
  GET /api/signals            - Stored signals (kind, date | from, to, min_count, first, fresh, side, code)
  GET /api/summary            - Row counts and date spans
  GET /api/data/quality       - Quality gate for a date
  GET /api/listed/{code}      - Listed issue

Example:
  go run ./cmd/kabu api
  go run ./cmd/kabu api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (default: PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	router := api.NewRouter(api.Handlers{
		Backtest: handlers.NewBacktestHandler(a.store, a.strategy, a.log),
		Signals:  handlers.NewSignalHandler(a.store, a.log),
		Data:     handlers.NewDataHandler(a.store, quality.NewQualityGate(a.store, quality.DefaultConfig(), a.log), a.log),
	}, a.log)

	server := api.New(a.cfg, a.log, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	fmt.Fprintf(out, "\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Fprintln(out, "Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.log.Info("Server stopped")
	return nil
}
