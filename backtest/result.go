package backtest

import (
	"time"

	"github.com/twquant/stocksim/journal"
)

// Result summarizes a finished (or aborted) run. Snapshots and
// Trades carry the full history for the performance calculator and
// for diagnostics after an abort.
type Result struct {
	Balance float64
	Equity  float64

	Trades int
	Wins   int
	Losses int

	Start time.Time
	End   time.Time

	Snapshots []journal.EquitySnapshot
	Records   []journal.TradeRecord
}

func (d *Driver) buildResult() *Result {
	r := &Result{
		Balance:   d.acct.Balance(),
		Snapshots: d.history.Equity(),
		Records:   d.history.Trades(),
	}

	if n := len(r.Snapshots); n > 0 {
		r.Start = r.Snapshots[0].Time
		r.End = r.Snapshots[n-1].Time
		r.Equity = r.Snapshots[n-1].Equity
	} else {
		r.Equity = r.Balance
	}

	r.Trades = len(r.Records)
	for _, rec := range r.Records {
		switch {
		case rec.RealizedPL > 0:
			r.Wins++
		case rec.RealizedPL < 0:
			r.Losses++
		}
	}
	return r
}
