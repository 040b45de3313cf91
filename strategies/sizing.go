package strategies

import (
	"github.com/twquant/stocksim/account"
	"github.com/twquant/stocksim/market"
)

// BuyBudgetFactor shaves the per-slot capital allocation so the
// commission on an exactly-sized fill cannot push the order past the
// account's cash check.
const BuyBudgetFactor = 0.998

// SizeOrders is the shared capital-allocation policy.
//
// Buys: the current balance (times BuyBudgetFactor) is split evenly
// across the holding slots still open this timestep, and each
// candidate gets as many whole lots as its slot affords. Candidates
// whose allocation rounds down to zero lots are silently dropped.
// Sizing reads the *current* balance, so it must be recomputed every
// timestep.
//
// Sells: every candidate closes the full volume of its earliest open
// lot (no partial closes). Candidates without an open position are
// dropped.
func SizeOrders(acct *account.Account, candidates []market.Quote, action market.Action, maxHoldings int, side market.Side) []market.Order {
	if len(candidates) == 0 {
		return nil
	}

	switch action {
	case market.Buy:
		return sizeBuys(acct, candidates, maxHoldings, side)
	case market.Sell:
		return sizeSells(acct, candidates)
	}
	return nil
}

func sizeBuys(acct *account.Account, candidates []market.Quote, maxHoldings int, side market.Side) []market.Order {
	slots := len(candidates)
	if maxHoldings > 0 {
		slots = maxHoldings - acct.PositionCount()
	}
	if slots <= 0 {
		return nil
	}

	perSlot := acct.Balance() / float64(slots) * BuyBudgetFactor

	var orders []market.Order
	for _, q := range candidates {
		if slots == 0 {
			break
		}
		if q.Cur <= 0 {
			continue
		}

		lots := int(perSlot / (q.Cur * market.LotSize))
		if lots < 1 {
			continue
		}

		orders = append(orders, market.Order{
			StockID: q.StockID,
			Date:    q.Time(),
			Action:  market.Buy,
			Side:    side,
			Price:   q.Cur,
			Volume:  lots,
		})
		slots--
	}
	return orders
}

func sizeSells(acct *account.Account, candidates []market.Quote) []market.Order {
	var orders []market.Order
	for _, q := range candidates {
		pos := acct.FirstOpenPosition(q.StockID)
		if pos == nil {
			continue
		}

		orders = append(orders, market.Order{
			StockID: q.StockID,
			Date:    q.Time(),
			Action:  market.Sell,
			Side:    pos.Side,
			Price:   q.Cur,
			Volume:  pos.Volume,
		})
	}
	return orders
}
