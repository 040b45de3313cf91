package market

import (
	"sort"
	"time"
)

// QuoteSource supplies ordered quote batches for a timestep. A source
// must return an empty slice, not an error, when it has no data for
// the requested date. Sources may be shared by concurrent runs and
// must therefore be read-only after construction or internally
// synchronized.
type QuoteSource interface {
	// Quotes returns the daily quote batch for the given trading day.
	Quotes(date time.Time) []Quote

	// Ticks returns the day's tick stream in event order.
	Ticks(date time.Time) []Quote
}

// MemorySource is an immutable-after-load QuoteSource backed by maps
// keyed on calendar day. It is the source used by tests and by feed
// loaders.
type MemorySource struct {
	days  map[string][]Quote
	ticks map[string][]Quote
}

func NewMemorySource() *MemorySource {
	return &MemorySource{
		days:  make(map[string][]Quote),
		ticks: make(map[string][]Quote),
	}
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// AddDay appends daily quotes for their respective dates. Call during
// load only; the source must not be mutated once a run starts.
func (s *MemorySource) AddDay(quotes ...Quote) {
	for _, q := range quotes {
		key := dayKey(q.Date)
		s.days[key] = append(s.days[key], q)
	}
}

// AddTicks appends tick quotes, kept sorted by event time within the day.
func (s *MemorySource) AddTicks(quotes ...Quote) {
	for _, q := range quotes {
		key := dayKey(q.Date)
		s.ticks[key] = append(s.ticks[key], q)
	}
	for key := range s.ticks {
		batch := s.ticks[key]
		sort.SliceStable(batch, func(i, j int) bool {
			return batch[i].Time().Before(batch[j].Time())
		})
	}
}

func (s *MemorySource) Quotes(date time.Time) []Quote {
	return s.days[dayKey(date)]
}

func (s *MemorySource) Ticks(date time.Time) []Quote {
	return s.ticks[dayKey(date)]
}
