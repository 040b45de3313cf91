package backtest

import (
	"context"
	"errors"
	"io"
	"math"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/twquant/stocksim/account"
	"github.com/twquant/stocksim/config"
	"github.com/twquant/stocksim/market"
	"github.com/twquant/stocksim/strategies"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// scripted drives the protocol from test-provided hooks. Every
// callback invocation is appended to calls so ordering can be
// asserted.
type scripted struct {
	strategies.Base
	calls *[]string

	onStop  func(quotes []market.Quote) ([]market.Order, error)
	onClose func(quotes []market.Quote) ([]market.Order, error)
	onOpen  func(quotes []market.Quote) ([]market.Order, error)
}

func (*scripted) Name() string { return "scripted" }

func (s *scripted) record(call string) {
	if s.calls != nil {
		*s.calls = append(*s.calls, call)
	}
}

func (s *scripted) CheckStopLossSignal(quotes []market.Quote) ([]market.Order, error) {
	s.record("stop")
	if s.onStop == nil {
		return nil, nil
	}
	return s.onStop(quotes)
}

func (s *scripted) CheckCloseSignal(quotes []market.Quote) ([]market.Order, error) {
	s.record("close")
	if s.onClose == nil {
		return nil, nil
	}
	return s.onClose(quotes)
}

func (s *scripted) CheckOpenSignal(quotes []market.Quote) ([]market.Order, error) {
	s.record("open")
	if s.onOpen == nil {
		return nil, nil
	}
	return s.onOpen(quotes)
}

func (s *scripted) CalculatePositionSize(candidates []market.Quote, action market.Action) []market.Order {
	return strategies.SizeOrders(s.Account(), candidates, action, s.MaxHoldings, market.Long)
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func dayQuote(stockID string, d int, price float64) market.Quote {
	return market.Quote{
		StockID: stockID,
		Scale:   market.ScaleDay,
		Date:    day(d),
		Cur:     price,
		Close:   price,
		Volume:  5_000_000,
	}
}

func buyAll(stockID string) func([]market.Quote) ([]market.Order, error) {
	return func(quotes []market.Quote) ([]market.Order, error) {
		for _, q := range quotes {
			if q.StockID == stockID {
				return []market.Order{{
					StockID: stockID, Date: q.Time(), Action: market.Buy,
					Side: market.Long, Price: q.Cur, Volume: 1,
				}}, nil
			}
		}
		return nil, nil
	}
}

func sellAll(acct func() *account.Account) func([]market.Quote) ([]market.Order, error) {
	return func(quotes []market.Quote) ([]market.Order, error) {
		var orders []market.Order
		for _, q := range quotes {
			pos := acct().FirstOpenPosition(q.StockID)
			if pos == nil {
				continue
			}
			orders = append(orders, market.Order{
				StockID: q.StockID, Date: q.Time(), Action: market.Sell,
				Side: pos.Side, Price: q.Cur, Volume: pos.Volume,
			})
		}
		return orders, nil
	}
}

func testConfig(startDay, endDay int) *config.Run {
	return &config.Run{
		Strategy:       "scripted",
		InitialCapital: 1_000_000,
		Scale:          market.ScaleDay,
		StartDate:      config.Date{Time: day(startDay)},
		EndDate:        config.Date{Time: day(endDay)},
		PositionSide:   market.Long,
		Commission:     config.CommissionConfig{Model: "free"},
	}
}

func newDriver(t *testing.T, cfg *config.Run, strat strategies.Strategy, src market.QuoteSource) *Driver {
	t.Helper()
	d, err := New(cfg, strat, src, Options{Logger: quietLogger()})
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}
	return d
}

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestDriverFlatCurveWithoutSignals(t *testing.T) {
	src := market.NewMemorySource()
	for d := 2; d <= 4; d++ {
		src.AddDay(dayQuote("2330", d, 500))
	}

	driver := newDriver(t, testConfig(2, 4), &scripted{}, src)
	result, err := driver.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// No signals: no trades, equity pinned at initial capital.
	if result.Trades != 0 {
		t.Fatalf("trades = %d, want 0", result.Trades)
	}
	if len(result.Snapshots) != 3 {
		t.Fatalf("snapshots = %d, want 3", len(result.Snapshots))
	}
	for _, s := range result.Snapshots {
		if !approxEqual(s.Equity, 1_000_000, 1e-9) {
			t.Fatalf("equity = %.2f at %v, want 1000000", s.Equity, s.Time)
		}
	}
	if driver.State() != StateDone {
		t.Fatalf("state = %v, want done", driver.State())
	}
}

func TestDriverSignalOrderPerTimestep(t *testing.T) {
	src := market.NewMemorySource()
	src.AddDay(dayQuote("2330", 2, 500))
	src.AddDay(dayQuote("2330", 3, 505))

	var calls []string
	driver := newDriver(t, testConfig(2, 3), &scripted{calls: &calls}, src)
	if _, err := driver.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	want := []string{"stop", "close", "open", "stop", "close", "open"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", calls, want)
		}
	}
}

func TestDriverSkipsEmptyDays(t *testing.T) {
	src := market.NewMemorySource()
	src.AddDay(dayQuote("2330", 2, 500))
	// Days 3-4 missing (holiday / data gap).
	src.AddDay(dayQuote("2330", 5, 510))

	var calls []string
	driver := newDriver(t, testConfig(2, 5), &scripted{calls: &calls}, src)
	result, err := driver.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// Two trading days of callbacks and snapshots; gap days touch
	// nothing.
	if len(calls) != 6 {
		t.Fatalf("calls = %d, want 6 (2 timesteps)", len(calls))
	}
	if len(result.Snapshots) != 2 {
		t.Fatalf("snapshots = %d, want 2", len(result.Snapshots))
	}
}

func TestDriverRoundTripRealizesPL(t *testing.T) {
	src := market.NewMemorySource()
	src.AddDay(dayQuote("2330", 2, 500))
	src.AddDay(dayQuote("2330", 3, 550))

	s := &scripted{}
	opened := false
	s.onOpen = func(quotes []market.Quote) ([]market.Order, error) {
		if opened {
			return nil, nil
		}
		opened = true
		return buyAll("2330")(quotes)
	}

	driver := newDriver(t, testConfig(2, 3), s, src)
	s.onClose = sellAll(driver.Account)

	result, err := driver.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.Trades != 1 {
		t.Fatalf("trades = %d, want 1", result.Trades)
	}
	rec := result.Records[0]
	if rec.OpenPrice != 500 || rec.ClosePrice != 550 {
		t.Fatalf("record = %+v", rec)
	}
	// Free commission model: P&L is pure price move.
	if !approxEqual(rec.RealizedPL, 50_000, 1e-9) {
		t.Fatalf("realized PL = %.2f, want 50000", rec.RealizedPL)
	}
	if !approxEqual(result.Balance, 1_050_000, 1e-9) {
		t.Fatalf("final balance = %.2f, want 1050000", result.Balance)
	}
	if result.Wins != 1 || result.Losses != 0 {
		t.Fatalf("wins/losses = %d/%d, want 1/0", result.Wins, result.Losses)
	}
}

func TestDriverStopLossFillsBeforeOpenSizing(t *testing.T) {
	src := market.NewMemorySource()
	src.AddDay(dayQuote("2330", 2, 500))
	src.AddDay(dayQuote("2330", 3, 450), dayQuote("2603", 3, 50))

	s := &scripted{}
	opened := false
	s.onOpen = func(quotes []market.Quote) ([]market.Order, error) {
		if !opened {
			opened = true
			return buyAll("2330")(quotes)
		}
		return nil, nil
	}

	driver := newDriver(t, testConfig(2, 3), s, src)

	var balanceAtOpenCheck float64
	s.onStop = func(quotes []market.Quote) ([]market.Order, error) {
		if quotes[0].Time().Equal(day(3)) {
			return sellAll(driver.Account)(quotes[:1])
		}
		return nil, nil
	}
	prevOnOpen := s.onOpen
	s.onOpen = func(quotes []market.Quote) ([]market.Order, error) {
		if quotes[0].Time().Equal(day(3)) {
			balanceAtOpenCheck = driver.Account().Balance()
		}
		return prevOnOpen(quotes)
	}

	result, err := driver.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.Trades != 1 {
		t.Fatalf("trades = %d, want 1", result.Trades)
	}
	rec := result.Records[0]
	if rec.Reason != "StopLoss" {
		t.Fatalf("reason = %q, want StopLoss", rec.Reason)
	}
	if !approxEqual(rec.RealizedPL, -50_000, 1e-9) {
		t.Fatalf("realized PL = %.2f, want -50000", rec.RealizedPL)
	}

	// The stop fill landed before the open check: the balance the
	// open sizing sees already includes the sale proceeds.
	want := 1_000_000 - 500_000 + 450_000
	if !approxEqual(balanceAtOpenCheck, float64(want), 1e-9) {
		t.Fatalf("balance at open check = %.2f, want %d", balanceAtOpenCheck, want)
	}
}

func TestDriverCapsOpensToFreeSlots(t *testing.T) {
	src := market.NewMemorySource()
	src.AddDay(
		dayQuote("1101", 2, 50),
		dayQuote("2330", 2, 50),
		dayQuote("2603", 2, 50),
	)

	s := &scripted{}
	s.onOpen = func(quotes []market.Quote) ([]market.Order, error) {
		var orders []market.Order
		for _, q := range quotes {
			orders = append(orders, market.Order{
				StockID: q.StockID, Date: q.Time(), Action: market.Buy,
				Side: market.Long, Price: q.Cur, Volume: 1,
			})
		}
		return orders, nil
	}

	cfg := testConfig(2, 2)
	cfg.MaxHoldings = 2

	driver := newDriver(t, cfg, s, src)
	if _, err := driver.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := driver.Account().PositionCount(); got != 2 {
		t.Fatalf("position count = %d, want max holdings 2", got)
	}
}

func TestDriverStrategyErrorAbortsWithPartialResult(t *testing.T) {
	src := market.NewMemorySource()
	src.AddDay(dayQuote("2330", 2, 500))
	src.AddDay(dayQuote("2330", 3, 510))
	src.AddDay(dayQuote("2330", 4, 520))

	boom := errors.New("boom")
	s := &scripted{}
	s.onClose = func(quotes []market.Quote) ([]market.Order, error) {
		if quotes[0].Time().Equal(day(3)) {
			return nil, boom
		}
		return nil, nil
	}

	driver := newDriver(t, testConfig(2, 4), s, src)
	result, err := driver.Run(context.Background())

	if !errors.Is(err, ErrStrategyCallback) {
		t.Fatalf("err = %v, want ErrStrategyCallback", err)
	}
	if result == nil {
		t.Fatal("partial result missing on abort")
	}
	// Day 2 completed before the day-3 failure.
	if len(result.Snapshots) != 1 {
		t.Fatalf("snapshots = %d, want 1 (day before failure)", len(result.Snapshots))
	}
}

func TestDriverContextCancellation(t *testing.T) {
	src := market.NewMemorySource()
	src.AddDay(dayQuote("2330", 2, 500))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	driver := newDriver(t, testConfig(2, 2), &scripted{}, src)
	if _, err := driver.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestDriverTickScaleStepsPerTick(t *testing.T) {
	src := market.NewMemorySource()
	at := func(h, m int) time.Time {
		return time.Date(2024, 1, 2, h, m, 0, 0, time.UTC)
	}
	tick := func(ts time.Time, price float64) market.Quote {
		return market.Quote{
			StockID: "2330", Scale: market.ScaleTick, Date: day(2), Cur: price,
			Tick: &market.TickQuote{Time: ts, Price: price, Volume: 1000},
		}
	}
	src.AddTicks(tick(at(9, 0), 500), tick(at(9, 1), 501), tick(at(9, 2), 502))

	var calls []string
	cfg := testConfig(2, 2)
	cfg.Scale = market.ScaleTick
	cfg.EnableIntraday = true

	driver := newDriver(t, cfg, &scripted{calls: &calls}, src)
	result, err := driver.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// One full protocol round and one snapshot per tick.
	if len(calls) != 9 {
		t.Fatalf("calls = %d, want 9 (3 ticks x 3 checks)", len(calls))
	}
	if len(result.Snapshots) != 3 {
		t.Fatalf("snapshots = %d, want 3", len(result.Snapshots))
	}
	if !result.Snapshots[0].Time.Equal(at(9, 0)) {
		t.Fatalf("first snapshot at %v, want %v", result.Snapshots[0].Time, at(9, 0))
	}
}

func TestDriverSnapshotUsesLastSeenMark(t *testing.T) {
	src := market.NewMemorySource()
	src.AddDay(dayQuote("2330", 2, 500))
	// Day 3 quotes another stock only; 2330 keeps its 500 mark.
	src.AddDay(dayQuote("2603", 3, 50))

	s := &scripted{}
	opened := false
	s.onOpen = func(quotes []market.Quote) ([]market.Order, error) {
		if !opened && quotes[0].StockID == "2330" {
			opened = true
			return buyAll("2330")(quotes)
		}
		return nil, nil
	}

	driver := newDriver(t, testConfig(2, 3), s, src)
	result, err := driver.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	last := result.Snapshots[len(result.Snapshots)-1]
	if !approxEqual(last.PositionValue, 500_000, 1e-9) {
		t.Fatalf("position value = %.2f, want 500000 (last seen mark)", last.PositionValue)
	}
	if !approxEqual(last.Equity, 1_000_000, 1e-9) {
		t.Fatalf("equity = %.2f, want 1000000", last.Equity)
	}
}

func TestNewWiresConfiguredPositionSide(t *testing.T) {
	src := market.NewMemorySource()
	src.AddDay(dayQuote("2330", 2, 500))

	cfg := testConfig(2, 2)
	cfg.PositionSide = market.Short

	s := &scripted{}
	newDriver(t, cfg, s, src)

	if s.DefaultSide != market.Short {
		t.Fatalf("strategy default side = %q, want short", s.DefaultSide)
	}
}

func TestDriverShortRoundTripConservesCash(t *testing.T) {
	src := market.NewMemorySource()
	src.AddDay(dayQuote("2882", 2, 500))
	src.AddDay(dayQuote("2882", 3, 450))

	cfg := testConfig(2, 3)
	cfg.PositionSide = market.Short

	s := &scripted{}
	opened := false
	s.onOpen = func(quotes []market.Quote) ([]market.Order, error) {
		if opened {
			return nil, nil
		}
		opened = true
		return []market.Order{{
			StockID: "2882", Date: quotes[0].Time(), Action: market.Buy,
			Side: market.Short, Price: quotes[0].Cur, Volume: 1,
		}}, nil
	}

	driver := newDriver(t, cfg, s, src)
	s.onClose = sellAll(driver.Account)

	result, err := driver.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.Trades != 1 {
		t.Fatalf("trades = %d, want 1", result.Trades)
	}
	rec := result.Records[0]
	if rec.Side != string(market.Short) {
		t.Fatalf("record side = %q, want short", rec.Side)
	}
	// Free commission model: the 50-point drop is pure gain.
	if !approxEqual(rec.RealizedPL, 50_000, 1e-9) {
		t.Fatalf("realized PL = %.2f, want 50000", rec.RealizedPL)
	}
	if !approxEqual(result.Balance, 1_050_000, 1e-9) {
		t.Fatalf("final balance = %.2f, want initial + realized = 1050000", result.Balance)
	}

	// The open-day snapshot marks the short at its entry: equity is
	// still the initial capital.
	if !approxEqual(result.Snapshots[0].Equity, 1_000_000, 1e-9) {
		t.Fatalf("open-day equity = %.2f, want 1000000", result.Snapshots[0].Equity)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	src := market.NewMemorySource()

	cfg := testConfig(2, 4)
	cfg.Scale = market.ScaleMix
	if _, err := New(cfg, &scripted{}, src, Options{Logger: quietLogger()}); !errors.Is(err, config.ErrInvalidConfiguration) {
		t.Fatalf("mix scale: err = %v, want ErrInvalidConfiguration", err)
	}

	if _, err := New(testConfig(2, 4), nil, src, Options{Logger: quietLogger()}); !errors.Is(err, config.ErrInvalidConfiguration) {
		t.Fatalf("nil strategy: err = %v, want ErrInvalidConfiguration", err)
	}

	if _, err := New(testConfig(2, 4), &scripted{}, nil, Options{Logger: quietLogger()}); !errors.Is(err, config.ErrInvalidConfiguration) {
		t.Fatalf("nil source: err = %v, want ErrInvalidConfiguration", err)
	}
}
