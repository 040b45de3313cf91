package strategies

import (
	"github.com/sirupsen/logrus"

	"github.com/twquant/stocksim/market"
)

// SimpleLong is a long-only daily momentum strategy:
//   - open when a stock gains at least MinChangePct on the day with
//     volume of at least MinVolumeLots;
//   - close when a position has been held MaxHoldingDays, or its
//     profit reaches ProfitTargetPct;
//   - stop out when the loss reaches StopLossPct.
//
// Prior closes are tracked from the quote stream itself, so the
// strategy needs no lookups beyond the batches it is fed.
type SimpleLong struct {
	Base

	MinChangePct    float64
	MinVolumeLots   int64
	MaxHoldingDays  int
	ProfitTargetPct float64
	StopLossPct     float64

	prevClose map[string]float64
	log       *logrus.Entry
}

func init() {
	Register("simple-long", func(p Params) Strategy { return NewSimpleLong(p) })
}

func NewSimpleLong(p Params) *SimpleLong {
	s := &SimpleLong{
		MinChangePct:    p.Get("min_change_pct", 8.0),
		MinVolumeLots:   int64(p.Get("min_volume_lots", 1000)),
		MaxHoldingDays:  int(p.Get("max_holding_days", 5)),
		ProfitTargetPct: p.Get("profit_target_pct", 10.0),
		StopLossPct:     p.Get("stop_loss_pct", 5.0),
		prevClose:       make(map[string]float64),
		log:             logrus.WithField("strategy", "simple-long"),
	}
	s.MaxHoldings = int(p.Get("max_holdings", 10))
	s.DefaultSide = market.Long
	return s
}

func (*SimpleLong) Name() string { return "simple-long" }

func (s *SimpleLong) CheckOpenSignal(quotes []market.Quote) ([]market.Order, error) {
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
			s.log.WithFields(logrus.Fields{
				"stock_id":   q.StockID,
				"change_pct": chg,
			}).Info("open signal")
			candidates = append(candidates, q)
		}
	}

	// Open runs last in the timestep protocol, so roll the close
	// book over here.
	for _, q := range quotes {
		s.prevClose[q.StockID] = q.Cur
	}

	return s.CalculatePositionSize(candidates, market.Buy), nil
}

func (s *SimpleLong) CheckCloseSignal(quotes []market.Quote) ([]market.Order, error) {
	var candidates []market.Quote

	for _, q := range quotes {
		pos := s.Account().FirstOpenPosition(q.StockID)
		if pos == nil {
			continue
		}

		holdingDays := int(q.Time().Sub(pos.EntryDate).Hours() / 24)
		profitPct := (q.Cur/pos.EntryPrice - 1) * 100

		switch {
		case holdingDays >= s.MaxHoldingDays:
			s.log.WithFields(logrus.Fields{
				"stock_id": q.StockID,
				"days":     holdingDays,
			}).Info("close signal: holding period")
			candidates = append(candidates, q)
		case profitPct >= s.ProfitTargetPct:
			s.log.WithFields(logrus.Fields{
				"stock_id":   q.StockID,
				"profit_pct": profitPct,
			}).Info("close signal: profit target")
			candidates = append(candidates, q)
		}
	}

	return s.CalculatePositionSize(candidates, market.Sell), nil
}

func (s *SimpleLong) CheckStopLossSignal(quotes []market.Quote) ([]market.Order, error) {
	var candidates []market.Quote

	for _, q := range quotes {
		pos := s.Account().FirstOpenPosition(q.StockID)
		if pos == nil {
			continue
		}

		lossPct := (q.Cur/pos.EntryPrice - 1) * 100
		if lossPct <= -s.StopLossPct {
			s.log.WithFields(logrus.Fields{
				"stock_id": q.StockID,
				"loss_pct": lossPct,
			}).Warn("stop-loss signal")
			candidates = append(candidates, q)
		}
	}

	return s.CalculatePositionSize(candidates, market.Sell), nil
}

func (s *SimpleLong) CalculatePositionSize(candidates []market.Quote, action market.Action) []market.Order {
	return SizeOrders(s.Account(), candidates, action, s.MaxHoldings, s.DefaultSide)
}
