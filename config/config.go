// Package config defines the run configuration consumed by the
// backtest driver and CLI: strategy selection, capital, date range,
// granularity, fill and fee models, and journal wiring.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/twquant/stocksim/fees"
	"github.com/twquant/stocksim/journal"
	"github.com/twquant/stocksim/market"
)

// ErrInvalidConfiguration is the fatal configuration error class; a
// run must not start when Validate fails.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// Date is a calendar date in YAML/JSON ("2006-01-02").
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

func (d *Date) UnmarshalYAML(value *yaml.Node) error {
	return d.parse(value.Value)
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return d.parse(s)
}

func (d Date) MarshalYAML() (interface{}, error) {
	return d.Format(dateLayout), nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(dateLayout))
}

func (d *Date) parse(s string) error {
	t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return fmt.Errorf("parse date %q: %w", s, err)
	}
	d.Time = t
	return nil
}

// Run is one backtest run's configuration.
type Run struct {
	Strategy       string             `json:"strategy" yaml:"strategy"`
	Params         map[string]float64 `json:"params,omitempty" yaml:"params,omitempty"`
	InitialCapital float64            `json:"initial_capital" yaml:"initial_capital"`
	MaxHoldings    int                `json:"max_holdings,omitempty" yaml:"max_holdings,omitempty"` // 0 = unlimited
	Scale          market.Scale       `json:"scale" yaml:"scale"`
	StartDate      Date               `json:"start_date" yaml:"start_date"`
	EndDate        Date               `json:"end_date" yaml:"end_date"`
	EnableIntraday bool               `json:"enable_intraday" yaml:"enable_intraday"`
	PositionSide   market.Side        `json:"position_side" yaml:"position_side"`

	Fill       FillConfig       `json:"fill" yaml:"fill"`
	Commission CommissionConfig `json:"commission" yaml:"commission"`
	Perf       PerfConfig       `json:"perf" yaml:"perf"`
	Journal    JournalConfig    `json:"journal" yaml:"journal"`
}

// FillConfig selects the fill-price policy.
type FillConfig struct {
	Policy      string  `json:"policy" yaml:"policy"` // "order", "quote", "slippage"
	SlippagePct float64 `json:"slippage_pct,omitempty" yaml:"slippage_pct,omitempty"`
}

// CommissionConfig selects the friction-cost model.
type CommissionConfig struct {
	Model  string  `json:"model" yaml:"model"` // "taiwan", "percent", "fixed", "free"
	Rate   float64 `json:"rate,omitempty" yaml:"rate,omitempty"`
	Amount float64 `json:"amount,omitempty" yaml:"amount,omitempty"`
}

// PerfConfig tunes the performance calculator.
type PerfConfig struct {
	RiskFreeRate float64 `json:"risk_free_rate" yaml:"risk_free_rate"`
	// PeriodsPerYear is the annualization base for the Sharpe ratio;
	// 252 for daily bars.
	PeriodsPerYear float64 `json:"periods_per_year,omitempty" yaml:"periods_per_year,omitempty"`
}

// JournalConfig selects where trades and equity go.
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "memory", "csv", "sqlite"
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// LoadFromFile loads a run configuration (YAML, falling back to
// JSON) and validates it.
func LoadFromFile(path string) (*Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Run{}
	if yErr := yaml.Unmarshal(data, cfg); yErr != nil {
		if jErr := json.Unmarshal(data, cfg); jErr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", yErr)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveToFile writes the configuration as YAML (.yaml/.yml) or JSON.
func (c *Run) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate enforces the configuration contract. All failures are
// ErrInvalidConfiguration.
func (c *Run) Validate() error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfiguration, fmt.Sprintf(format, args...))
	}

	if c.Strategy == "" {
		return fail("strategy is required")
	}
	if c.InitialCapital <= 0 {
		return fail("initial_capital must be positive, got %v", c.InitialCapital)
	}
	if c.MaxHoldings < 0 {
		return fail("max_holdings must not be negative, got %d", c.MaxHoldings)
	}

	switch c.Scale {
	case market.ScaleDay:
	case market.ScaleTick:
		if !c.EnableIntraday {
			return fail("scale %q requires enable_intraday", c.Scale)
		}
	case market.ScaleMix:
		// Interleaving semantics for mixed day+tick data are an open
		// product decision; refuse rather than guess a merge policy.
		return fail("scale %q is not supported: day/tick interleaving is undefined", c.Scale)
	default:
		return fail("scale must be %q or %q, got %q", market.ScaleDay, market.ScaleTick, c.Scale)
	}

	if c.StartDate.IsZero() || c.EndDate.IsZero() {
		return fail("start_date and end_date are required")
	}
	if c.EndDate.Before(c.StartDate.Time) {
		return fail("end_date %s precedes start_date %s",
			c.EndDate.Format(dateLayout), c.StartDate.Format(dateLayout))
	}

	switch c.PositionSide {
	case market.Long, market.Short, "":
	default:
		return fail("position_side must be %q or %q, got %q", market.Long, market.Short, c.PositionSide)
	}

	switch c.Fill.Policy {
	case "", "order", "quote":
	case "slippage":
		if c.Fill.SlippagePct < 0 {
			return fail("fill.slippage_pct must not be negative")
		}
	default:
		return fail("fill.policy must be order, quote or slippage, got %q", c.Fill.Policy)
	}

	switch c.Commission.Model {
	case "", "taiwan", "free":
	case "percent":
		if c.Commission.Rate < 0 {
			return fail("commission.rate must not be negative")
		}
	case "fixed":
		if c.Commission.Amount < 0 {
			return fail("commission.amount must not be negative")
		}
	default:
		return fail("commission.model must be taiwan, percent, fixed or free, got %q", c.Commission.Model)
	}

	switch c.Journal.Type {
	case "", "memory":
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.EquityFile == "" {
			return fail("journal trades_file and equity_file required for csv type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fail("journal db_path required for sqlite type")
		}
	default:
		return fail("journal.type must be memory, csv or sqlite, got %q", c.Journal.Type)
	}

	return nil
}

// Side returns the configured default position side, long when
// unset.
func (c *Run) Side() market.Side {
	if c.PositionSide == "" {
		return market.Long
	}
	return c.PositionSide
}

// FeeModel builds the configured commission model.
func (c *Run) FeeModel() fees.Model {
	switch c.Commission.Model {
	case "percent":
		return fees.Percent{Rate: c.Commission.Rate}
	case "fixed":
		return fees.Fixed{Amount: c.Commission.Amount}
	case "free":
		return fees.Free{}
	default:
		return fees.DefaultTaiwanEquity()
	}
}

// NewJournal builds the configured journal backend. The caller owns
// Close.
func (c *Run) NewJournal() (journal.Journal, error) {
	switch c.Journal.Type {
	case "", "memory":
		return journal.NewMemory(), nil
	case "csv":
		return journal.NewCSV(c.Journal.TradesFile, c.Journal.EquityFile)
	case "sqlite":
		return journal.NewSQLite(c.Journal.DBPath)
	default:
		return nil, fmt.Errorf("%w: unknown journal type %q", ErrInvalidConfiguration, c.Journal.Type)
	}
}

// Default returns a configuration with sensible defaults.
func Default() *Run {
	return &Run{
		Strategy:       "simple-long",
		InitialCapital: 1_000_000,
		MaxHoldings:    10,
		Scale:          market.ScaleDay,
		StartDate:      Date{time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		EndDate:        Date{time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)},
		EnableIntraday: true,
		PositionSide:   market.Long,
		Fill:           FillConfig{Policy: "order"},
		Commission:     CommissionConfig{Model: "taiwan"},
		Perf:           PerfConfig{PeriodsPerYear: 252},
		Journal:        JournalConfig{Type: "memory"},
	}
}
