// Package backtest drives a simulation over the historical timeline:
// it walks the configured date range, feeds quote batches to the
// strategy in a fixed signal order, routes the resulting orders
// through the executor, and snapshots account state after every
// timestep.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/twquant/stocksim/account"
	"github.com/twquant/stocksim/config"
	"github.com/twquant/stocksim/journal"
	"github.com/twquant/stocksim/market"
	"github.com/twquant/stocksim/sim"
	"github.com/twquant/stocksim/strategies"
)

// ErrStrategyCallback wraps an error escaping a strategy signal
// method. The run aborts but partial history stays available on the
// returned Result.
var ErrStrategyCallback = errors.New("strategy callback failed")

// State tracks run progress.
type State int

const (
	StateInitializing State = iota
	StateRunning
	StateFinalizing
	StateDone
)

// Driver owns one run. Runs are independent; concurrent backtests
// each build their own Driver (and account/executor) and may share
// only the quote source.
type Driver struct {
	cfg    *config.Run
	strat  strategies.Strategy
	acct   *account.Account
	exec   *sim.Executor
	source market.QuoteSource

	// history always captures the full run for the performance
	// calculator; sink fans records out to history plus any external
	// journal.
	history *journal.Memory
	sink    journal.Journal

	lastPrice map[string]float64
	state     State
	log       *logrus.Entry
}

// Options wires optional collaborators.
type Options struct {
	// Journal receives trades and equity snapshots in addition to
	// the driver's in-memory history. Optional.
	Journal journal.Journal

	Logger *logrus.Logger
}

// New validates the configuration, constructs the run's account and
// executor, and prepares the strategy. Fatal configuration problems
// surface here, before the run starts.
func New(cfg *config.Run, strat strategies.Strategy, source market.QuoteSource, opts Options) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if strat == nil {
		return nil, fmt.Errorf("%w: strategy is required", config.ErrInvalidConfiguration)
	}
	if source == nil {
		return nil, fmt.Errorf("%w: quote source is required", config.ErrInvalidConfiguration)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	history := journal.NewMemory()
	var sink journal.Journal = history
	if opts.Journal != nil {
		sink = journal.NewMulti(history, opts.Journal)
	}

	acct := account.New(cfg.InitialCapital)
	exec := sim.NewExecutor(acct, sim.Options{
		Fees:        cfg.FeeModel(),
		Journal:     sink,
		Policy:      sim.FillPolicy(fillPolicy(cfg)),
		SlippagePct: cfg.Fill.SlippagePct,
		Logger:      logger,
	})

	if cfg.PositionSide != "" {
		if s, ok := strat.(interface{ SetDefaultSide(market.Side) }); ok {
			s.SetDefaultSide(cfg.Side())
		}
	}

	strat.SetupAccount(acct)
	if err := strat.SetupData(source); err != nil {
		return nil, fmt.Errorf("%w: setup data sources: %v", config.ErrInvalidConfiguration, err)
	}

	return &Driver{
		cfg:       cfg,
		strat:     strat,
		acct:      acct,
		exec:      exec,
		source:    source,
		history:   history,
		sink:      sink,
		lastPrice: make(map[string]float64),
		state:     StateInitializing,
		log: logger.WithFields(logrus.Fields{
			"component": "driver",
			"strategy":  strat.Name(),
		}),
	}, nil
}

func fillPolicy(cfg *config.Run) string {
	if cfg.Fill.Policy == "" {
		return string(sim.FillOrderPrice)
	}
	return cfg.Fill.Policy
}

// Account exposes the run's account for inspection after (or during)
// a run.
func (d *Driver) Account() *account.Account { return d.acct }

// State returns the driver's lifecycle state.
func (d *Driver) State() State { return d.state }

// Run executes the simulation and returns the aggregate Result. On a
// strategy callback error the partial Result is returned alongside
// the wrapped error so the history up to the failure can be
// inspected.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	d.state = StateRunning
	d.log.WithFields(logrus.Fields{
		"start":   d.cfg.StartDate.Format("2006-01-02"),
		"end":     d.cfg.EndDate.Format("2006-01-02"),
		"scale":   d.cfg.Scale,
		"capital": d.cfg.InitialCapital,
	}).Info("backtest start")

	var runErr error

	for date := d.cfg.StartDate.Time; !date.After(d.cfg.EndDate.Time); date = date.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		var err error
		switch d.cfg.Scale {
		case market.ScaleTick:
			err = d.runTickDay(date)
		default:
			err = d.runDay(date)
		}
		if err != nil {
			runErr = err
			break
		}
	}

	d.state = StateFinalizing
	result := d.buildResult()
	d.state = StateDone

	if runErr != nil {
		d.log.WithField("error", runErr).Error("backtest aborted")
		return result, runErr
	}

	d.log.WithFields(logrus.Fields{
		"trades":  result.Trades,
		"balance": result.Balance,
	}).Info("backtest done")
	return result, nil
}

// runDay processes one daily-bar timestep.
func (d *Driver) runDay(date time.Time) error {
	quotes := d.source.Quotes(date)
	if len(quotes) == 0 {
		// Market holiday or data gap: skip the timestep, no account
		// mutation, run continues.
		d.log.WithField("date", date.Format("2006-01-02")).Debug("no quotes, skipping day")
		return nil
	}
	return d.step(quotes, date)
}

// runTickDay replays one day's tick stream, one timestep per tick.
func (d *Driver) runTickDay(date time.Time) error {
	ticks := d.source.Ticks(date)
	if len(ticks) == 0 {
		d.log.WithField("date", date.Format("2006-01-02")).Debug("no ticks, skipping day")
		return nil
	}

	for _, tick := range ticks {
		if err := d.step([]market.Quote{tick}, tick.Time()); err != nil {
			return err
		}
	}
	return nil
}

// step runs the fixed per-timestep protocol. The order is a
// correctness contract: stop-loss and close fills must land before
// the open signal sizes new positions, so that sizing sees the
// timestep's real balance and free slots.
func (d *Driver) step(quotes []market.Quote, ts time.Time) error {
	batch := make(map[string]market.Quote, len(quotes))
	for _, q := range quotes {
		batch[q.StockID] = q
		d.lastPrice[q.StockID] = q.Cur
	}

	stops, err := d.strat.CheckStopLossSignal(quotes)
	if err != nil {
		return fmt.Errorf("%w: check stop-loss signal: %v", ErrStrategyCallback, err)
	}
	if err := d.exec.ExecuteBatch(stops, batch, "StopLoss"); err != nil {
		return err
	}

	closes, err := d.strat.CheckCloseSignal(quotes)
	if err != nil {
		return fmt.Errorf("%w: check close signal: %v", ErrStrategyCallback, err)
	}
	if err := d.exec.ExecuteBatch(closes, batch, "Close"); err != nil {
		return err
	}

	opens, err := d.strat.CheckOpenSignal(quotes)
	if err != nil {
		return fmt.Errorf("%w: check open signal: %v", ErrStrategyCallback, err)
	}
	opens = d.capToFreeSlots(opens)
	if err := d.exec.ExecuteBatch(opens, batch, ""); err != nil {
		return err
	}

	return d.snapshot(ts)
}

// capToFreeSlots enforces the max-holdings ceiling even when a
// strategy over-produces open orders.
func (d *Driver) capToFreeSlots(opens []market.Order) []market.Order {
	if d.cfg.MaxHoldings <= 0 {
		return opens
	}
	free := d.cfg.MaxHoldings - d.acct.PositionCount()
	if free < 0 {
		free = 0
	}
	if len(opens) > free {
		d.log.WithFields(logrus.Fields{
			"orders": len(opens),
			"slots":  free,
		}).Warn("open orders truncated to free holding slots")
		opens = opens[:free]
	}
	return opens
}

// snapshot records balance and mark-to-market position value after a
// completed timestep. Positions with no quote this timestep keep
// their last seen mark.
func (d *Driver) snapshot(ts time.Time) error {
	value := d.acct.MarketValue(func(stockID string) (float64, bool) {
		px, ok := d.lastPrice[stockID]
		return px, ok
	})

	return d.sink.RecordEquity(journal.EquitySnapshot{
		Time:          ts,
		Balance:       d.acct.Balance(),
		PositionValue: value,
		Equity:        d.acct.Balance() + value,
	})
}
