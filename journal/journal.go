// Package journal records the two artifacts a backtest run produces:
// the trade log (one row per closed position leg) and the equity
// curve (one snapshot per timestep). Backends: in-memory, CSV,
// SQLite, or any combination via Multi.
package journal

import "time"

// TradeRecord is an immutable log entry written when a position leg
// is closed. Rows are appended chronologically by close date; the
// column set is the contract downstream reporting depends on.
type TradeRecord struct {
	ID string

	// PositionID links the legs of a lot closed in pieces back to
	// the position they came from.
	PositionID string

	StockID    string
	Side       string // "long" or "short"
	Volume     int    // lots
	OpenDate   time.Time
	CloseDate  time.Time
	OpenPrice  float64
	ClosePrice float64
	Commission float64 // both legs
	Tax        float64
	RealizedPL float64 // net of friction
	Reason     string  // "StopLoss", "Close", ...
}

// EquitySnapshot captures account state after one timestep completes.
type EquitySnapshot struct {
	Time          time.Time
	Balance       float64 // cash
	PositionValue float64 // mark-to-market value of open positions
	Equity        float64 // Balance + PositionValue
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}

// Memory keeps everything in slices. It is the backend the driver
// uses to hand history to the performance calculator, and the one
// tests inspect.
type Memory struct {
	trades []TradeRecord
	equity []EquitySnapshot
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) RecordTrade(rec TradeRecord) error {
	m.trades = append(m.trades, rec)
	return nil
}

func (m *Memory) RecordEquity(snap EquitySnapshot) error {
	m.equity = append(m.equity, snap)
	return nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) Trades() []TradeRecord    { return m.trades }
func (m *Memory) Equity() []EquitySnapshot { return m.equity }

// Multi fans every record out to each backend in order.
type Multi struct {
	sinks []Journal
}

func NewMulti(sinks ...Journal) *Multi { return &Multi{sinks: sinks} }

func (m *Multi) RecordTrade(rec TradeRecord) error {
	for _, s := range m.sinks {
		if err := s.RecordTrade(rec); err != nil {
			return err
		}
	}
	return nil
}

func (m *Multi) RecordEquity(snap EquitySnapshot) error {
	for _, s := range m.sinks {
		if err := s.RecordEquity(snap); err != nil {
			return err
		}
	}
	return nil
}

func (m *Multi) Close() error {
	var first error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
