// Package fees provides the friction-cost models applied when orders
// fill: brokerage commission on both legs and transaction tax on the
// sell leg.
package fees

import "math"

// Model prices the friction cost of a fill. Quantities are in shares.
type Model interface {
	// BuyCost returns the commission charged on a buy fill.
	BuyCost(price float64, shares float64) float64

	// SellCost returns the commission and the transaction tax charged
	// on a sell fill.
	SellCost(price float64, shares float64) (commission, tax float64)
}

// TaiwanEquity is the retail brokerage model for listed shares:
// 0.1425% commission on each leg at a negotiated discount with a
// minimum fee, plus 0.3% securities transaction tax on sells.
type TaiwanEquity struct {
	CommRate float64 // base commission rate
	Discount float64 // broker discount multiplier
	MinFee   float64 // minimum commission per leg
	TaxRate  float64 // sell-side transaction tax rate
}

// DefaultTaiwanEquity returns the standard published rates with a 30%
// discount.
func DefaultTaiwanEquity() TaiwanEquity {
	return TaiwanEquity{
		CommRate: 0.001425,
		Discount: 0.3,
		MinFee:   20.0,
		TaxRate:  0.003,
	}
}

func (m TaiwanEquity) commission(price, shares float64) float64 {
	return math.Max(price*shares*m.CommRate*m.Discount, m.MinFee)
}

func (m TaiwanEquity) BuyCost(price, shares float64) float64 {
	return m.commission(price, shares)
}

func (m TaiwanEquity) SellCost(price, shares float64) (float64, float64) {
	return m.commission(price, shares), price * shares * m.TaxRate
}

// Percent charges a flat percentage of notional on each leg, no tax.
type Percent struct {
	Rate float64
}

func (m Percent) BuyCost(price, shares float64) float64 {
	return price * shares * m.Rate
}

func (m Percent) SellCost(price, shares float64) (float64, float64) {
	return price * shares * m.Rate, 0
}

// Fixed charges a flat amount per fill, no tax.
type Fixed struct {
	Amount float64
}

func (m Fixed) BuyCost(float64, float64) float64 { return m.Amount }

func (m Fixed) SellCost(float64, float64) (float64, float64) {
	return m.Amount, 0
}

// Free charges nothing. Useful for isolating strategy behavior in
// tests.
type Free struct{}

func (Free) BuyCost(float64, float64) float64            { return 0 }
func (Free) SellCost(float64, float64) (float64, float64) { return 0, 0 }
