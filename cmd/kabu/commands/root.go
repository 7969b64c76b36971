package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	thresholdsPath string
	storeBackend   string
	verbose        bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "kabu",
	Short: "kabu - equities research and backtesting toolkit",
	Long: `kabu collects daily quotes and financial statements from J-Quants,
derives technical and fundamental signals, and backtests rule-based strategies.

Usage:
  go run ./cmd/kabu [command]

Examples:
  go run ./cmd/kabu db init
  go run ./cmd/kabu fetch quotes --from 2024-01-01 --to 2024-01-31
  go run ./cmd/kabu signals technical --from 2024-01-01 --to 2024-01-31
  go run ./cmd/kabu backtest range --strategy technical --from 2024-01-01 --to 2024-03-31
  go run ./cmd/kabu api`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&thresholdsPath, "thresholds", "", "strategy/threshold override file (default: THRESHOLDS_PATH)")
	rootCmd.PersistentFlags().StringVar(&storeBackend, "store", "", "storage backend: postgres|sqlite|memory (default: STORE)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
