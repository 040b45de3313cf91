package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/twquant/stocksim/backtest"
	"github.com/twquant/stocksim/config"
	"github.com/twquant/stocksim/feed"
	"github.com/twquant/stocksim/market"
	"github.com/twquant/stocksim/perf"
	"github.com/twquant/stocksim/strategies"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run a strategy against historical quote data",
	Long: `Backtest replays a strategy over a historical quote file and prints
the performance report.

Example:
  stocksim backtest --config run.yaml --quotes data/daily-2024.csv
  stocksim backtest --config tickrun.yaml --quotes data/ticks.csv.xz`,
	RunE: runBacktest,
}

var (
	btConfigPath string
	btQuotesPath string
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVarP(&btConfigPath, "config", "c", "", "path to run config (YAML or JSON) (required)")
	backtestCmd.Flags().StringVarP(&btQuotesPath, "quotes", "q", "", "path to quote CSV, optionally .xz (required)")

	backtestCmd.MarkFlagRequired("config")
	backtestCmd.MarkFlagRequired("quotes")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(btConfigPath)
	if err != nil {
		return err
	}

	var source market.QuoteSource
	if cfg.Scale == market.ScaleTick {
		source, err = feed.LoadTicks(btQuotesPath)
	} else {
		source, err = feed.LoadDaily(btQuotesPath)
	}
	if err != nil {
		return err
	}

	params := strategies.Params(cfg.Params)
	if cfg.MaxHoldings > 0 {
		if params == nil {
			params = strategies.Params{}
		}
		params["max_holdings"] = float64(cfg.MaxHoldings)
	}

	strat, err := strategies.New(cfg.Strategy, params)
	if err != nil {
		return err
	}

	j, err := cfg.NewJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	driver, err := backtest.New(cfg, strat, source, backtest.Options{Journal: j})
	if err != nil {
		return err
	}

	result, err := driver.Run(context.Background())
	if err != nil {
		return fmt.Errorf("backtest: %w", err)
	}

	calc := perf.NewCalculator()
	calc.RiskFreeRate = cfg.Perf.RiskFreeRate
	if cfg.Perf.PeriodsPerYear > 0 {
		calc.PeriodsPerYear = cfg.Perf.PeriodsPerYear
	}
	report := calc.Compute(cfg.InitialCapital, result.Snapshots, result.Records)

	printReport(cmd, cfg, result, report)
	return nil
}

func printReport(cmd *cobra.Command, cfg *config.Run, result *backtest.Result, report perf.Report) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Strategy:          %s\n", cfg.Strategy)
	fmt.Fprintf(out, "Period:            %s ~ %s\n",
		cfg.StartDate.Format("2006-01-02"), cfg.EndDate.Format("2006-01-02"))
	fmt.Fprintf(out, "Initial capital:   %.2f\n", report.InitialCapital)
	fmt.Fprintf(out, "Final equity:      %.2f\n", report.FinalEquity)
	fmt.Fprintf(out, "Total return:      %.2f%%\n", report.TotalReturn*100)
	fmt.Fprintf(out, "Annualized return: %.2f%%\n", report.AnnualizedReturn*100)
	fmt.Fprintf(out, "Max drawdown:      %.2f%%\n", report.MaxDrawdown*100)
	fmt.Fprintf(out, "Sharpe ratio:      %.2f\n", report.SharpeRatio)
	fmt.Fprintf(out, "Trades:            %d (%d wins / %d losses)\n",
		report.TradeCount, report.WinCount, report.LossCount)
	fmt.Fprintf(out, "Win rate:          %.2f%%\n", report.WinRate*100)
	fmt.Fprintf(out, "Avg win / loss:    %.2f / %.2f\n", report.AvgWin, report.AvgLoss)
	fmt.Fprintf(out, "Profit factor:     %.2f\n", report.ProfitFactor)
	fmt.Fprintf(out, "Friction paid:     %.2f commission, %.2f tax\n",
		report.TotalCommission, report.TotalTax)
}
