// Package account implements the virtual cash account a backtest run
// owns: balance, the FIFO book of open positions, and the realized
// trade history. Only the order executor mutates it; strategies read
// it through the accessor methods.
package account

import (
	"errors"
	"fmt"
	"time"

	"github.com/twquant/stocksim/internal/id"
	"github.com/twquant/stocksim/journal"
	"github.com/twquant/stocksim/market"
)

// ErrInsufficientFunds is returned when a buy fill's total cost
// (notional plus commission) exceeds available cash. The executor
// sizes orders so this should not happen; the account still enforces
// it.
var ErrInsufficientFunds = errors.New("account: insufficient funds")

// Position is one held lot bundle. Volume stays > 0 while the
// position is open; a position reduced to zero is removed from the
// book, never retained.
type Position struct {
	ID         string
	StockID    string
	Side       market.Side
	EntryDate  time.Time
	EntryPrice float64
	Volume     int // lots

	// Friction paid on the opening leg, carried into the trade
	// record when the position closes.
	OpenCommission float64
}

// Shares returns the position size in shares.
func (p *Position) Shares() float64 {
	return float64(p.Volume) * market.LotSize
}

// MarketValue marks the position at the given price. A short lot
// holds its entry notional in reserve, so its value is that reserve
// plus the unrealized move.
func (p *Position) MarketValue(price float64) float64 {
	if p.Side == market.Short {
		return (2*p.EntryPrice - price) * p.Shares()
	}
	return price * p.Shares()
}

// Account is the aggregate root for one run. Not safe for concurrent
// use: a run owns its account exclusively.
type Account struct {
	initialCapital float64
	balance        float64

	// Insertion order is entry order; close logic depends on it.
	positions []*Position
	records   []journal.TradeRecord

	totalCommission float64
	totalTax        float64
}

func New(initialCapital float64) *Account {
	return &Account{
		initialCapital: initialCapital,
		balance:        initialCapital,
	}
}

func (a *Account) InitialCapital() float64 { return a.initialCapital }
func (a *Account) Balance() float64        { return a.balance }

// PositionCount returns the number of open position lots.
func (a *Account) PositionCount() int { return len(a.positions) }

// HasPosition reports whether any open lot exists for the stock.
func (a *Account) HasPosition(stockID string) bool {
	for _, p := range a.positions {
		if p.StockID == stockID {
			return true
		}
	}
	return false
}

// OpenPositions returns the open lots for a stock in entry order.
func (a *Account) OpenPositions(stockID string) []*Position {
	var out []*Position
	for _, p := range a.positions {
		if p.StockID == stockID {
			out = append(out, p)
		}
	}
	return out
}

// FirstOpenPosition returns the earliest-entered open lot for the
// stock (FIFO head), or nil.
func (a *Account) FirstOpenPosition(stockID string) *Position {
	for _, p := range a.positions {
		if p.StockID == stockID {
			return p
		}
	}
	return nil
}

// AllPositions returns every open lot in entry order.
func (a *Account) AllPositions() []*Position {
	out := make([]*Position, len(a.positions))
	copy(out, a.positions)
	return out
}

// Records returns the realized trade history, chronological by close
// date.
func (a *Account) Records() []journal.TradeRecord {
	out := make([]journal.TradeRecord, len(a.records))
	copy(out, a.records)
	return out
}

func (a *Account) TotalCommission() float64 { return a.totalCommission }
func (a *Account) TotalTax() float64        { return a.totalTax }

// RealizedPL sums realized profit and loss over the trade history.
func (a *Account) RealizedPL() float64 {
	var pl float64
	for _, r := range a.records {
		pl += r.RealizedPL
	}
	return pl
}

// MarketValue marks all open positions using the supplied price
// lookup (stock id -> last price). Stocks missing from the map are
// marked at their entry price.
func (a *Account) MarketValue(price func(stockID string) (float64, bool)) float64 {
	var total float64
	for _, p := range a.positions {
		mark := p.EntryPrice
		if px, ok := price(p.StockID); ok {
			mark = px
		}
		total += p.MarketValue(mark)
	}
	return total
}

// ApplyFill mutates the account for one fill. Buy fills open a new
// lot; sell fills close against the FIFO head for the stock,
// reducing it (and recording the closed leg) or removing it
// entirely. lots must be positive and, for sells, no larger than the
// FIFO head's volume — sells never span lots. reason tags the trade
// record of a closing fill ("Close", "StopLoss", ...).
func (a *Account) ApplyFill(order market.Order, fillPrice float64, lots int, commission, tax float64, reason string) (*journal.TradeRecord, error) {
	if lots <= 0 {
		return nil, fmt.Errorf("account: non-positive fill volume %d for %s", lots, order.StockID)
	}

	switch order.Action {
	case market.Buy:
		return nil, a.applyBuy(order, fillPrice, lots, commission)
	case market.Sell:
		return a.applySell(order, fillPrice, lots, commission, tax, reason)
	default:
		return nil, fmt.Errorf("account: unknown order action %q", order.Action)
	}
}

func (a *Account) applyBuy(order market.Order, fillPrice float64, lots int, commission float64) error {
	notional := fillPrice * float64(lots) * market.LotSize
	cost := notional + commission

	if cost > a.balance {
		return fmt.Errorf("%w: need %.2f, have %.2f (%s)", ErrInsufficientFunds, cost, a.balance, order.StockID)
	}

	a.balance -= cost
	a.totalCommission += commission
	a.positions = append(a.positions, &Position{
		ID:             id.New(),
		StockID:        order.StockID,
		Side:           order.Side,
		EntryDate:      order.Date,
		EntryPrice:     fillPrice,
		Volume:         lots,
		OpenCommission: commission,
	})
	return nil
}

func (a *Account) applySell(order market.Order, fillPrice float64, lots int, commission, tax float64, reason string) (*journal.TradeRecord, error) {
	pos := a.FirstOpenPosition(order.StockID)
	if pos == nil {
		return nil, fmt.Errorf("account: no open position for %s", order.StockID)
	}
	if lots > pos.Volume {
		return nil, fmt.Errorf("account: sell %d lots exceeds open lot of %d for %s", lots, pos.Volume, order.StockID)
	}

	closedShares := float64(lots) * market.LotSize

	priceMove := (fillPrice - pos.EntryPrice) * closedShares
	if pos.Side == market.Short {
		priceMove = (pos.EntryPrice - fillPrice) * closedShares
	}

	// The closing credit releases the entry notional plus the price
	// move, net of friction. For a long lot this is the plain sale
	// proceeds; for a short lot it returns the reserve debited at
	// entry adjusted by the move, keeping cash consistent with
	// realized P&L on both sides.
	proceeds := pos.EntryPrice*closedShares + priceMove - commission - tax

	if a.balance+proceeds < 0 {
		return nil, fmt.Errorf("%w: close settlement needs %.2f, have %.2f (%s)",
			ErrInsufficientFunds, -proceeds, a.balance, order.StockID)
	}

	// Opening commission is attributed pro rata when a lot is closed
	// in pieces.
	openComm := pos.OpenCommission * float64(lots) / float64(pos.Volume)
	realized := priceMove - commission - tax - openComm

	a.balance += proceeds
	a.totalCommission += commission
	a.totalTax += tax

	if reason == "" {
		reason = "Close"
	}
	rec := journal.TradeRecord{
		ID:         id.New(),
		PositionID: pos.ID,
		StockID:    pos.StockID,
		Side:       string(pos.Side),
		Volume:     lots,
		OpenDate:   pos.EntryDate,
		CloseDate:  order.Date,
		OpenPrice:  pos.EntryPrice,
		ClosePrice: fillPrice,
		Commission: openComm + commission,
		Tax:        tax,
		RealizedPL: realized,
		Reason:     reason,
	}
	a.records = append(a.records, rec)

	pos.Volume -= lots
	pos.OpenCommission -= openComm
	if pos.Volume == 0 {
		a.remove(pos.ID)
	}

	return &rec, nil
}

func (a *Account) remove(posID string) {
	kept := a.positions[:0]
	for _, p := range a.positions {
		if p.ID != posID {
			kept = append(kept, p)
		}
	}
	a.positions = kept
}
