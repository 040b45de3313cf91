// Package market defines the value types the simulation trades in:
// quotes, orders and the lot/scale conventions of the stock market
// being simulated.
package market

import "time"

// LotSize is the minimum tradable unit: one lot = 1000 shares.
const LotSize = 1000

// Scale selects the timestep granularity of a run.
type Scale string

const (
	ScaleDay  Scale = "day"
	ScaleTick Scale = "tick"
	// ScaleMix (daily bars and intraday ticks live at once) is
	// recognized but rejected at config validation; its interleaving
	// semantics are an open product decision.
	ScaleMix Scale = "mix"
)

// Side is the position direction.
type Side string

const (
	Long  Side = "long"
	Short Side = "short"
)

// Action is the order direction.
type Action string

const (
	Buy  Action = "buy"
	Sell Action = "sell"
)

// TickQuote carries the intraday fields of a single trade event.
type TickQuote struct {
	Time      time.Time
	Price     float64
	Volume    int // shares
	BidPrice  float64
	BidVolume int
	AskPrice  float64
	AskVolume int
	TickType  int // 1 taker-buy, 2 taker-sell, 0 undetermined
}

// Quote is one market observation for one stock at one timestep.
// Daily quotes populate the OHLCV fields; tick quotes embed a
// TickQuote and mirror its price into Cur. Quotes are never mutated
// after creation.
type Quote struct {
	StockID string
	Scale   Scale
	Date    time.Time

	// Cur is the price fills reference. For daily bars it equals
	// Close; for ticks it is the traded price.
	Cur    float64
	Volume int64 // shares traded

	Open  float64
	High  float64
	Low   float64
	Close float64

	Tick *TickQuote
}

// Time returns the most precise timestamp the quote carries.
func (q Quote) Time() time.Time {
	if q.Tick != nil && !q.Tick.Time.IsZero() {
		return q.Tick.Time
	}
	return q.Date
}

// Order is an intent to trade volume lots of a stock at a price.
// Orders are built by strategies and consumed exactly once by the
// executor.
type Order struct {
	StockID string
	Date    time.Time
	Action  Action
	Side    Side
	Price   float64
	Volume  int // lots
}

// Shares returns the order quantity in shares.
func (o Order) Shares() float64 {
	return float64(o.Volume) * LotSize
}

// Notional returns price x shares, before friction costs.
func (o Order) Notional() float64 {
	return o.Price * o.Shares()
}
