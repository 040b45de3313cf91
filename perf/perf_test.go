package perf

import (
	"math"
	"testing"
	"time"

	"github.com/twquant/stocksim/journal"
)

func snap(d int, equity float64) journal.EquitySnapshot {
	return journal.EquitySnapshot{
		Time:   time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC),
		Equity: equity,
	}
}

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestComputeTotalReturn(t *testing.T) {
	c := NewCalculator()

	snaps := []journal.EquitySnapshot{snap(2, 1_020_000), snap(3, 1_100_000)}
	r := c.Compute(1_000_000, snaps, nil)

	if !approxEqual(r.TotalReturn, 0.10, 1e-9) {
		t.Fatalf("total return = %.6f, want 0.10", r.TotalReturn)
	}
	if r.FinalEquity != 1_100_000 {
		t.Fatalf("final equity = %.2f, want 1100000", r.FinalEquity)
	}
}

func TestComputeEmptyHistory(t *testing.T) {
	c := NewCalculator()

	r := c.Compute(1_000_000, nil, nil)

	if r.FinalEquity != 1_000_000 || r.TotalReturn != 0 {
		t.Fatalf("empty run report = %+v", r)
	}
	if r.MaxDrawdown != 0 || r.SharpeRatio != 0 || r.TradeCount != 0 {
		t.Fatalf("empty run report = %+v", r)
	}
}

func TestMaxDrawdown(t *testing.T) {
	c := NewCalculator()

	// Peak 1.2M, trough 0.9M: drawdown 0.3/1.2 = 25%.
	snaps := []journal.EquitySnapshot{
		snap(2, 1_100_000),
		snap(3, 1_200_000),
		snap(4, 950_000),
		snap(5, 900_000),
		snap(6, 1_250_000),
	}
	r := c.Compute(1_000_000, snaps, nil)

	if !approxEqual(r.MaxDrawdown, 0.25, 1e-9) {
		t.Fatalf("max drawdown = %.6f, want 0.25", r.MaxDrawdown)
	}
}

func TestMaxDrawdownStartsFromInitialCapital(t *testing.T) {
	c := NewCalculator()

	// Equity only falls: the peak is the starting capital itself.
	snaps := []journal.EquitySnapshot{snap(2, 950_000), snap(3, 900_000)}
	r := c.Compute(1_000_000, snaps, nil)

	if !approxEqual(r.MaxDrawdown, 0.10, 1e-9) {
		t.Fatalf("max drawdown = %.6f, want 0.10", r.MaxDrawdown)
	}
}

func TestAnnualizedReturnCompounds(t *testing.T) {
	c := NewCalculator()

	// +10% over half a year (snapshots ~182.625 days apart is awkward;
	// use one year and expect annualized == total).
	snaps := []journal.EquitySnapshot{
		snap(1, 1_000_000),
		{Time: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 365), Equity: 1_100_000},
	}
	r := c.Compute(1_000_000, snaps, nil)

	want := math.Pow(1.10, 365.25/365) - 1
	if !approxEqual(r.AnnualizedReturn, want, 1e-9) {
		t.Fatalf("annualized return = %.6f, want %.6f", r.AnnualizedReturn, want)
	}
}

func TestSharpeZeroOnFlatCurve(t *testing.T) {
	c := NewCalculator()

	snaps := []journal.EquitySnapshot{
		snap(2, 1_000_000), snap(3, 1_000_000), snap(4, 1_000_000),
	}
	r := c.Compute(1_000_000, snaps, nil)

	if r.SharpeRatio != 0 {
		t.Fatalf("sharpe on flat curve = %.6f, want 0", r.SharpeRatio)
	}
}

func TestSharpeSign(t *testing.T) {
	c := NewCalculator()

	up := []journal.EquitySnapshot{
		snap(2, 1_010_000), snap(3, 1_030_000), snap(4, 1_040_000),
	}
	if r := c.Compute(1_000_000, up, nil); r.SharpeRatio <= 0 {
		t.Fatalf("sharpe on rising curve = %.6f, want > 0", r.SharpeRatio)
	}

	down := []journal.EquitySnapshot{
		snap(2, 990_000), snap(3, 970_000), snap(4, 960_000),
	}
	if r := c.Compute(1_000_000, down, nil); r.SharpeRatio >= 0 {
		t.Fatalf("sharpe on falling curve = %.6f, want < 0", r.SharpeRatio)
	}
}

func TestTradeStats(t *testing.T) {
	c := NewCalculator()

	records := []journal.TradeRecord{
		{RealizedPL: 10_000, Commission: 400, Tax: 1500},
		{RealizedPL: 6_000, Commission: 300, Tax: 1200},
		{RealizedPL: -4_000, Commission: 200, Tax: 900},
		{RealizedPL: 0, Commission: 100, Tax: 500},
	}
	r := c.Compute(1_000_000, nil, records)

	if r.TradeCount != 4 {
		t.Fatalf("trade count = %d, want 4", r.TradeCount)
	}
	if r.WinCount != 2 || r.LossCount != 1 {
		t.Fatalf("wins/losses = %d/%d, want 2/1", r.WinCount, r.LossCount)
	}
	if !approxEqual(r.WinRate, 0.5, 1e-9) {
		t.Fatalf("win rate = %.4f, want 0.5", r.WinRate)
	}
	if !approxEqual(r.AvgWin, 8_000, 1e-9) {
		t.Fatalf("avg win = %.2f, want 8000", r.AvgWin)
	}
	if !approxEqual(r.AvgLoss, 4_000, 1e-9) {
		t.Fatalf("avg loss = %.2f, want 4000", r.AvgLoss)
	}
	if !approxEqual(r.ProfitFactor, 4.0, 1e-9) {
		t.Fatalf("profit factor = %.4f, want 4", r.ProfitFactor)
	}
	if !approxEqual(r.TotalCommission, 1000, 1e-9) || !approxEqual(r.TotalTax, 4100, 1e-9) {
		t.Fatalf("friction = %.2f/%.2f, want 1000/4100", r.TotalCommission, r.TotalTax)
	}
}

func TestElapsed(t *testing.T) {
	snaps := []journal.EquitySnapshot{snap(2, 1), snap(5, 1)}

	if got := Elapsed(snaps); got != 72*time.Hour {
		t.Fatalf("elapsed = %v, want 72h", got)
	}
	if got := Elapsed(snaps[:1]); got != 0 {
		t.Fatalf("elapsed single = %v, want 0", got)
	}
}
