// Package strategies defines the capability set a trading strategy
// must satisfy, a name registry for run configuration, and the
// builtin strategies that ship with the engine.
package strategies

import (
	"fmt"
	"sort"

	"github.com/twquant/stocksim/account"
	"github.com/twquant/stocksim/market"
)

// Strategy is the contract the backtest driver calls against. The
// driver invokes the three signal checks in a fixed order every
// timestep (stop-loss, close, open); implementations must not assume
// any other ordering. Signal methods read the account through the
// accessors set up by SetupAccount and never mutate it.
type Strategy interface {
	Name() string

	// SetupAccount hands the strategy the run's account for read-only
	// balance/position queries.
	SetupAccount(acct *account.Account)

	// SetupData hands the strategy the run's quote source for
	// lookups beyond the current batch (e.g. prior closes).
	SetupData(src market.QuoteSource) error

	// CheckOpenSignal returns sized orders for positions to open.
	CheckOpenSignal(quotes []market.Quote) ([]market.Order, error)

	// CheckCloseSignal returns sized orders for positions to close.
	CheckCloseSignal(quotes []market.Quote) ([]market.Order, error)

	// CheckStopLossSignal returns sized orders for positions whose
	// loss limit was breached.
	CheckStopLossSignal(quotes []market.Quote) ([]market.Order, error)

	// CalculatePositionSize converts signal candidates into sized
	// orders; it is the single chokepoint for capital allocation.
	CalculatePositionSize(candidates []market.Quote, action market.Action) []market.Order
}

// Params carries numeric strategy parameters from run configuration.
type Params map[string]float64

// Get returns the named parameter or the default when absent.
func (p Params) Get(name string, def float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return def
}

// Factory builds a strategy from configuration parameters.
type Factory func(p Params) Strategy

var registry = make(map[string]Factory)

// Register adds a strategy constructor under a name. Builtins
// register from init; applications may add their own before the
// first run.
func Register(name string, f Factory) {
	registry[name] = f
}

// New constructs the named strategy.
func New(name string, p Params) (Strategy, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (registered: %v)", name, Names())
	}
	return f(p), nil
}

// Names lists registered strategy names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Base carries the wiring every builtin shares. Embedding it
// satisfies SetupAccount and SetupData.
type Base struct {
	acct *account.Account
	src  market.QuoteSource

	// MaxHoldings caps distinct open positions; 0 means unlimited.
	MaxHoldings int

	// DefaultSide is the side opened positions take.
	DefaultSide market.Side
}

func (b *Base) SetupAccount(acct *account.Account) { b.acct = acct }

// SetDefaultSide overrides the side opened positions take. The
// driver calls this when the run configuration names a side.
func (b *Base) SetDefaultSide(side market.Side) { b.DefaultSide = side }

func (b *Base) SetupData(src market.QuoteSource) error {
	b.src = src
	return nil
}

func (b *Base) Account() *account.Account  { return b.acct }
func (b *Base) Source() market.QuoteSource { return b.src }
