package strategies

import (
	"github.com/twquant/stocksim/indicators"
	"github.com/twquant/stocksim/market"
)

// SMARevert is a mean-reversion strategy on a simple moving average:
// open when price dips DeviationPct below its SMA, close when price
// recovers to the SMA, stop out at StopLossPct. One streaming SMA is
// kept per stock id.
type SMARevert struct {
	Base

	Period       int
	DeviationPct float64
	StopLossPct  float64

	smas map[string]*indicators.SimpleMA
}

func init() {
	Register("sma-revert", func(p Params) Strategy { return NewSMARevert(p) })
}

func NewSMARevert(p Params) *SMARevert {
	s := &SMARevert{
		Period:       int(p.Get("period", 20)),
		DeviationPct: p.Get("deviation_pct", 5.0),
		StopLossPct:  p.Get("stop_loss_pct", 8.0),
		smas:         make(map[string]*indicators.SimpleMA),
	}
	s.MaxHoldings = int(p.Get("max_holdings", 10))
	s.DefaultSide = market.Long
	return s
}

func (*SMARevert) Name() string { return "sma-revert" }

func (s *SMARevert) sma(stockID string) *indicators.SimpleMA {
	m, ok := s.smas[stockID]
	if !ok {
		m = indicators.NewMA(s.Period)
		s.smas[stockID] = m
	}
	return m
}

func (s *SMARevert) CheckOpenSignal(quotes []market.Quote) ([]market.Order, error) {
	var candidates []market.Quote

	for _, q := range quotes {
		m := s.sma(q.StockID)

		// Evaluate against the SMA of prior closes, then fold the
		// current bar in. Open runs last in the protocol, so this is
		// the once-per-timestep update point.
		if m.Ready() && !s.Account().HasPosition(q.StockID) {
			threshold := m.Value() * (1 - s.DeviationPct/100)
			if q.Cur <= threshold {
				candidates = append(candidates, q)
			}
		}
		m.Update(q.Cur)
	}

	return s.CalculatePositionSize(candidates, market.Buy), nil
}

func (s *SMARevert) CheckCloseSignal(quotes []market.Quote) ([]market.Order, error) {
	var candidates []market.Quote

	for _, q := range quotes {
		if s.Account().FirstOpenPosition(q.StockID) == nil {
			continue
		}

		m := s.sma(q.StockID)
		if m.Ready() && q.Cur >= m.Value() {
			candidates = append(candidates, q)
		}
	}

	return s.CalculatePositionSize(candidates, market.Sell), nil
}

func (s *SMARevert) CheckStopLossSignal(quotes []market.Quote) ([]market.Order, error) {
	var candidates []market.Quote

	for _, q := range quotes {
		pos := s.Account().FirstOpenPosition(q.StockID)
		if pos == nil {
			continue
		}

		if (q.Cur/pos.EntryPrice-1)*100 <= -s.StopLossPct {
			candidates = append(candidates, q)
		}
	}

	return s.CalculatePositionSize(candidates, market.Sell), nil
}

func (s *SMARevert) CalculatePositionSize(candidates []market.Quote, action market.Action) []market.Order {
	return SizeOrders(s.Account(), candidates, action, s.MaxHoldings, s.DefaultSide)
}
