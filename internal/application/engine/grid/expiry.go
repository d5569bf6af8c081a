package grid

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ExpireStale cancels (best-effort) and deletes every OPEN order older than
// the configured threshold. It returns how many were removed; the caller
// rebuilds the grid once when that is non-zero.
func (e *Engine) ExpireStale(ctx context.Context, state *EngineState) (int, error) {
	cutoff := e.now().Add(-e.cfg.StaleAfter)
	stale, err := e.ledger.StaleOrders(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("grid.ExpireStale: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	expired := 0
	for _, o := range stale {
		if err := e.gateway.CancelOrder(ctx, e.cfg.Symbol, o.ExchangeOrderID); err != nil {
			slog.Warn("grid: cancel of stale order failed",
				"id", o.ID, "exchange_order_id", o.ExchangeOrderID, "err", err)
		}
		if err := e.ledger.DeleteOrder(ctx, o.ID); err != nil {
			slog.Error("grid: could not delete stale order", "id", o.ID, "err", err)
			continue
		}
		expired++
		slog.Info("grid: stale order expired",
			"id", o.ID, "side", o.Side, "level", o.Level, "price", o.Price, "age", e.now().Sub(o.UpdatedAt).Round(time.Second))
	}

	if expired > 0 {
		e.metrics.OrdersExpired(expired)
		e.notify(ctx, "⌛ %d stale orders expired (older than %s), rebuilding grid",
			expired, e.cfg.StaleAfter)
	}
	return expired, nil
}
