package strategies

import "github.com/twquant/stocksim/market"

// Noop generates no signals. Baseline for wiring tests and flat-curve
// checks.
type Noop struct {
	Base
}

func init() {
	Register("noop", func(Params) Strategy { return &Noop{} })
}

func (*Noop) Name() string { return "noop" }

func (*Noop) CheckOpenSignal([]market.Quote) ([]market.Order, error) {
	return nil, nil
}

func (*Noop) CheckCloseSignal([]market.Quote) ([]market.Order, error) {
	return nil, nil
}

func (*Noop) CheckStopLossSignal([]market.Quote) ([]market.Order, error) {
	return nil, nil
}

func (*Noop) CalculatePositionSize([]market.Quote, market.Action) []market.Order {
	return nil
}
