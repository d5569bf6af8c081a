package grid

import (
	"context"
	"log/slog"
)

// RecoveryResult reports what one recovery sweep did.
type RecoveryResult struct {
	Scanned   int
	Placed    int
	Present   int // counter-order already OPEN or placed since the fill
	Boundary  int
	Skipped   int
	LedgerErr int
}

// Recover repairs levels whose counter-order is missing: for every FILLED
// record it computes the counterpart and places it when no order was ever
// placed there after the fill. Running it twice yields the same OPEN set.
func (e *Engine) Recover(ctx context.Context, state *EngineState) RecoveryResult {
	var res RecoveryResult

	filled, err := e.ledger.FilledOrders(ctx)
	if err != nil {
		res.LedgerErr++
		slog.Error("grid: recovery could not read filled orders", "err", err)
		return res
	}

	for _, f := range filled {
		res.Scanned++
		intent, ok := state.Grid.Counter(f)
		if !ok {
			res.Boundary++
			continue
		}

		if _, open, err := e.ledger.FindOpenOrder(ctx, intent.Level, intent.Side); err != nil {
			res.LedgerErr++
			slog.Warn("grid: recovery lookup failed", "level", intent.Level, "side", intent.Side, "err", err)
			continue
		} else if open {
			res.Present++
			continue
		}

		// La contraorden ya se colocó (y quizá se llenó) después de este fill.
		placedAfter, err := e.ledger.OrderPlacedAfter(ctx, intent.Level, intent.Side, f.ID)
		if err != nil {
			res.LedgerErr++
			slog.Warn("grid: recovery lookup failed", "level", intent.Level, "side", intent.Side, "err", err)
			continue
		}
		if placedAfter {
			res.Present++
			continue
		}

		slog.Info("grid: recovering missing counter-order",
			"filled_id", f.ID, "filled_side", f.Side, "filled_level", f.Level,
			"side", intent.Side, "level", intent.Level, "price", intent.Price)
		switch r := e.Place(ctx, state, intent.Price, intent.Side, intent.Level); r.Outcome {
		case OutcomePlaced:
			res.Placed++
		default:
			res.Skipped++
		}
	}

	slog.Info("grid: recovery sweep done",
		"scanned", res.Scanned, "placed", res.Placed, "present", res.Present,
		"boundary", res.Boundary, "skipped", res.Skipped)
	if res.Placed > 0 {
		e.notify(ctx, "Recovery: %d missing counter-orders re-placed", res.Placed)
	}
	return res
}
