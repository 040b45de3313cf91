// Package sim converts strategy orders into fills against the
// current quote batch and applies them to the account, charging
// commission and tax per the configured fee model.
package sim

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/twquant/stocksim/account"
	"github.com/twquant/stocksim/fees"
	"github.com/twquant/stocksim/journal"
	"github.com/twquant/stocksim/market"
)

// FillPolicy selects the price a fill is struck at.
type FillPolicy string

const (
	// FillOrderPrice fills at the price the strategy asked for.
	FillOrderPrice FillPolicy = "order"
	// FillQuotePrice fills at the quote's current price.
	FillQuotePrice FillPolicy = "quote"
	// FillSlippage fills at the quote's current price adjusted
	// against the order direction by SlippagePct.
	FillSlippage FillPolicy = "slippage"
)

// Executor routes orders to the account. One executor per run; not
// safe for concurrent use.
type Executor struct {
	acct        *account.Account
	fees        fees.Model
	journal     journal.Journal
	policy      FillPolicy
	slippagePct float64
	log         *logrus.Entry
}

type Options struct {
	Fees        fees.Model
	Journal     journal.Journal
	Policy      FillPolicy
	SlippagePct float64 // e.g. 0.001 = 0.1%, used by FillSlippage
	Logger      *logrus.Logger
}

func NewExecutor(acct *account.Account, opts Options) *Executor {
	if opts.Fees == nil {
		opts.Fees = fees.DefaultTaiwanEquity()
	}
	if opts.Journal == nil {
		opts.Journal = journal.NewMemory()
	}
	if opts.Policy == "" {
		opts.Policy = FillOrderPrice
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Executor{
		acct:        acct,
		fees:        opts.Fees,
		journal:     opts.Journal,
		policy:      opts.Policy,
		slippagePct: opts.SlippagePct,
		log:         logger.WithField("component", "executor"),
	}
}

// FillPrice resolves the price an order would fill at against a
// quote.
func (e *Executor) FillPrice(order market.Order, q market.Quote) float64 {
	switch e.policy {
	case FillQuotePrice:
		return q.Cur
	case FillSlippage:
		adj := q.Cur * e.slippagePct
		if order.Action == market.Buy {
			return q.Cur + adj
		}
		return q.Cur - adj
	default:
		return order.Price
	}
}

// Execute fills one order against the quote batch. Orders for stocks
// absent from the batch are skipped with a logged reason. Buy orders
// the account cannot afford surface ErrInsufficientFunds; the caller
// drops the order and continues. reason tags closing fills.
func (e *Executor) Execute(order market.Order, quotes map[string]market.Quote, reason string) error {
	q, ok := quotes[order.StockID]
	if !ok {
		e.log.WithFields(logrus.Fields{
			"stock_id": order.StockID,
			"action":   order.Action,
		}).Warn("no quote for order, skipping")
		return nil
	}

	price := e.FillPrice(order, q)
	shares := order.Shares()

	switch order.Action {
	case market.Buy:
		commission := e.fees.BuyCost(price, shares)
		if _, err := e.acct.ApplyFill(order, price, order.Volume, commission, 0, ""); err != nil {
			if errors.Is(err, account.ErrInsufficientFunds) {
				return err
			}
			return fmt.Errorf("sim: buy %s: %w", order.StockID, err)
		}
		e.log.WithFields(logrus.Fields{
			"stock_id":   order.StockID,
			"lots":       order.Volume,
			"fill_price": price,
			"commission": commission,
		}).Info("opened position")
		return nil

	case market.Sell:
		commission, tax := e.fees.SellCost(price, shares)
		rec, err := e.acct.ApplyFill(order, price, order.Volume, commission, tax, reason)
		if err != nil {
			return fmt.Errorf("sim: sell %s: %w", order.StockID, err)
		}
		if rec != nil {
			if err := e.journal.RecordTrade(*rec); err != nil {
				return fmt.Errorf("sim: record trade: %w", err)
			}
			e.log.WithFields(logrus.Fields{
				"stock_id":    order.StockID,
				"lots":        order.Volume,
				"fill_price":  price,
				"realized_pl": rec.RealizedPL,
				"reason":      rec.Reason,
			}).Info("closed position")
		}
		return nil

	default:
		return fmt.Errorf("sim: unknown order action %q", order.Action)
	}
}

// ExecuteBatch fills orders in sequence. Unaffordable buys are
// dropped and logged, remaining orders still execute; any other
// error aborts the batch.
func (e *Executor) ExecuteBatch(orders []market.Order, quotes map[string]market.Quote, reason string) error {
	for _, order := range orders {
		err := e.Execute(order, quotes, reason)
		if errors.Is(err, account.ErrInsufficientFunds) {
			e.log.WithFields(logrus.Fields{
				"stock_id": order.StockID,
				"lots":     order.Volume,
			}).Warn("order dropped: insufficient funds")
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}
