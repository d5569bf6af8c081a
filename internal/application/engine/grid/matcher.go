package grid

import (
	"context"
	"log/slog"

	"github.com/alejandrodnm/gridbot/internal/domain"
)

// closeCycle pairs a SELL execution with the oldest unconsumed BUY execution
// one level below. Without a buy leg the cycle stays open; the sell is kept.
func (e *Engine) closeCycle(ctx context.Context, sell domain.ExecutionRecord) bool {
	buyLevel := sell.Level - 1
	buy, ok, err := e.ledger.OldestUnconsumedBuy(ctx, buyLevel)
	if err != nil {
		slog.Error("grid: buy leg lookup failed", "level", buyLevel, "err", err)
		return false
	}
	if !ok {
		slog.Warn("grid: no buy leg for sell, cycle left open",
			"sell_level", sell.Level, "sell_order", sell.ExchangeOrderID)
		e.notify(ctx, "No open buy at level %d for SELL %s, profit cycle not closed",
			buyLevel, sell.ExchangeOrderID)
		return false
	}

	cycle := domain.MatchCycle(buy, sell, e.now())
	if err := e.ledger.CloseCycle(ctx, cycle, buy.Seq); err != nil {
		slog.Error("grid: could not close profit cycle", "buy_seq", buy.Seq, "sell_order", sell.ExchangeOrderID, "err", err)
		return false
	}
	e.metrics.ProfitRealized(cycle.GrossProfit, cycle.NetProfit)

	slog.Info("grid: profit realized",
		"buy_price", cycle.BuyPrice, "sell_price", cycle.SellPrice, "amount", cycle.Amount,
		"gross", cycle.GrossProfit, "net", cycle.NetProfit)
	e.notify(ctx, "💰 Profit realized\nBuy: %.2f  Sell: %.2f\nAmount: %.8f\nGross: %.4f  Net: %.4f",
		cycle.BuyPrice, cycle.SellPrice, cycle.Amount, cycle.GrossProfit, cycle.NetProfit)
	return true
}
