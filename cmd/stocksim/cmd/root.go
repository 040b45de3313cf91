package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "stocksim",
	Short: "A deterministic stock backtest engine",
	Long: `Stocksim replays trading strategies against historical stock data.

It provides:
  - Day-bar and tick-level backtests with a fixed signal protocol
  - A virtual cash account with FIFO lot accounting
  - Configurable commission, tax, and slippage models
  - Trade and equity journaling to CSV or SQLite
  - Performance reporting (returns, drawdown, Sharpe, win rate)`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logrus.SetLevel(logrus.WarnLevel)
		if verbose {
			logrus.SetLevel(logrus.InfoLevel)
		}
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log per-fill detail")
}
