package strategies

import (
	"github.com/twquant/stocksim/market"
)

// Momentum chases strong one-day moves: open on a day gain of at
// least MinChangePct with a volume floor, close after the position
// has been held at least MinHoldingDays. No stop-loss — the short
// holding window is the risk control.
type Momentum struct {
	Base

	MinChangePct   float64
	MinVolumeLots  int64
	MinHoldingDays int

	prevClose map[string]float64
}

func init() {
	Register("momentum", func(p Params) Strategy { return NewMomentum(p) })
}

func NewMomentum(p Params) *Momentum {
	s := &Momentum{
		MinChangePct:   p.Get("min_change_pct", 9.0),
		MinVolumeLots:  int64(p.Get("min_volume_lots", 5000)),
		MinHoldingDays: int(p.Get("min_holding_days", 1)),
		prevClose:      make(map[string]float64),
	}
	s.MaxHoldings = int(p.Get("max_holdings", 10))
	s.DefaultSide = market.Long
	return s
}

func (*Momentum) Name() string { return "momentum" }

func (s *Momentum) CheckOpenSignal(quotes []market.Quote) ([]market.Order, error) {
	var candidates []market.Quote

	for _, q := range quotes {
		prev, ok := s.prevClose[q.StockID]
		if !ok || prev == 0 {
			continue
		}
		if s.Account().HasPosition(q.StockID) {
			continue
		}

		chg := (q.Cur/prev - 1) * 100
		if chg >= s.MinChangePct && q.Volume >= s.MinVolumeLots*market.LotSize {
			candidates = append(candidates, q)
		}
	}

	for _, q := range quotes {
		s.prevClose[q.StockID] = q.Cur
	}

	return s.CalculatePositionSize(candidates, market.Buy), nil
}

func (s *Momentum) CheckCloseSignal(quotes []market.Quote) ([]market.Order, error) {
	var candidates []market.Quote

	for _, q := range quotes {
		pos := s.Account().FirstOpenPosition(q.StockID)
		if pos == nil {
			continue
		}

		if int(q.Time().Sub(pos.EntryDate).Hours()/24) >= s.MinHoldingDays {
			candidates = append(candidates, q)
		}
	}

	return s.CalculatePositionSize(candidates, market.Sell), nil
}

func (s *Momentum) CheckStopLossSignal([]market.Quote) ([]market.Order, error) {
	return nil, nil
}

func (s *Momentum) CalculatePositionSize(candidates []market.Quote, action market.Action) []market.Order {
	return SizeOrders(s.Account(), candidates, action, s.MaxHoldings, s.DefaultSide)
}
