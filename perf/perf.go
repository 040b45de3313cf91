// Package perf derives aggregate performance metrics from a finished
// run's equity curve and trade history. All statistics use
// population definitions.
package perf

import (
	"math"
	"time"

	"github.com/twquant/stocksim/journal"
)

// Calculator holds the tunables the metrics depend on.
type Calculator struct {
	// RiskFreeRate is the annual risk-free rate used by the Sharpe
	// ratio. Default zero.
	RiskFreeRate float64

	// PeriodsPerYear is the annualization base for the Sharpe ratio;
	// 252 for daily bars.
	PeriodsPerYear float64
}

func NewCalculator() *Calculator {
	return &Calculator{PeriodsPerYear: 252}
}

// Report is the aggregate metric set for one run.
type Report struct {
	InitialCapital float64
	FinalEquity    float64

	TotalReturn      float64 // fraction, e.g. 0.12 = +12%
	AnnualizedReturn float64
	MaxDrawdown      float64 // fraction of peak equity, >= 0
	SharpeRatio      float64

	TradeCount   int
	WinCount     int
	LossCount    int
	WinRate      float64
	AvgWin       float64 // mean positive realized P&L
	AvgLoss      float64 // mean magnitude of negative realized P&L
	ProfitFactor float64 // gross profit / gross loss

	TotalCommission float64
	TotalTax        float64
}

// Compute derives the report from the run history. Snapshots must be
// in chronological order; records chronological by close date.
func (c *Calculator) Compute(initialCapital float64, snapshots []journal.EquitySnapshot, records []journal.TradeRecord) Report {
	r := Report{
		InitialCapital: initialCapital,
		FinalEquity:    initialCapital,
	}

	if len(snapshots) > 0 {
		r.FinalEquity = snapshots[len(snapshots)-1].Equity
	}
	if initialCapital > 0 {
		r.TotalReturn = r.FinalEquity/initialCapital - 1
	}

	r.AnnualizedReturn = c.annualize(r.TotalReturn, snapshots)
	r.MaxDrawdown = maxDrawdown(initialCapital, snapshots)
	r.SharpeRatio = c.sharpe(initialCapital, snapshots)

	c.tradeStats(&r, records)
	return r
}

// annualize time-weights the total return over the run's calendar
// span.
func (c *Calculator) annualize(total float64, snapshots []journal.EquitySnapshot) float64 {
	if len(snapshots) < 2 {
		return total
	}

	span := snapshots[len(snapshots)-1].Time.Sub(snapshots[0].Time)
	days := span.Hours() / 24
	if days <= 0 {
		return total
	}
	return math.Pow(1+total, 365.25/days) - 1
}

// maxDrawdown is the deepest peak-to-trough decline on the equity
// curve, as a fraction of the peak. The curve starts at initial
// capital.
func maxDrawdown(initialCapital float64, snapshots []journal.EquitySnapshot) float64 {
	peak := initialCapital
	var worst float64

	for _, s := range snapshots {
		if s.Equity > peak {
			peak = s.Equity
		}
		if peak > 0 {
			dd := (peak - s.Equity) / peak
			if dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// sharpe computes the ratio over the per-timestep return series,
// annualized by sqrt(PeriodsPerYear), with the risk-free rate spread
// evenly across periods.
func (c *Calculator) sharpe(initialCapital float64, snapshots []journal.EquitySnapshot) float64 {
	returns := periodReturns(initialCapital, snapshots)
	if len(returns) == 0 {
		return 0
	}

	periods := c.PeriodsPerYear
	if periods <= 0 {
		periods = 252
	}
	rfPerPeriod := c.RiskFreeRate / periods

	var sum float64
	for _, ret := range returns {
		sum += ret - rfPerPeriod
	}
	mean := sum / float64(len(returns))

	var variance float64
	for _, ret := range returns {
		d := (ret - rfPerPeriod) - mean
		variance += d * d
	}
	variance /= float64(len(returns)) // population

	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(periods)
}

func periodReturns(initialCapital float64, snapshots []journal.EquitySnapshot) []float64 {
	if len(snapshots) == 0 {
		return nil
	}

	returns := make([]float64, 0, len(snapshots))
	prev := initialCapital
	for _, s := range snapshots {
		if prev > 0 {
			returns = append(returns, s.Equity/prev-1)
		}
		prev = s.Equity
	}
	return returns
}

func (c *Calculator) tradeStats(r *Report, records []journal.TradeRecord) {
	var grossProfit, grossLoss float64

	for _, rec := range records {
		r.TradeCount++
		r.TotalCommission += rec.Commission
		r.TotalTax += rec.Tax

		switch {
		case rec.RealizedPL > 0:
			r.WinCount++
			grossProfit += rec.RealizedPL
		case rec.RealizedPL < 0:
			r.LossCount++
			grossLoss += -rec.RealizedPL
		}
	}

	if r.TradeCount > 0 {
		r.WinRate = float64(r.WinCount) / float64(r.TradeCount)
	}
	if r.WinCount > 0 {
		r.AvgWin = grossProfit / float64(r.WinCount)
	}
	if r.LossCount > 0 {
		r.AvgLoss = grossLoss / float64(r.LossCount)
	}
	if grossLoss > 0 {
		r.ProfitFactor = grossProfit / grossLoss
	}
}

// Elapsed returns the calendar span covered by the snapshots.
func Elapsed(snapshots []journal.EquitySnapshot) time.Duration {
	if len(snapshots) < 2 {
		return 0
	}
	return snapshots[len(snapshots)-1].Time.Sub(snapshots[0].Time)
}
