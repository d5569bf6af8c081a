package grid

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/gridbot/internal/application/engine"
	"github.com/alejandrodnm/gridbot/internal/domain"
)

// ReconcileResult reports the counts of one reconciliation pass.
type ReconcileResult struct {
	Checked         int
	Filled          int
	CountersPlaced  int
	BoundaryReached int
	CyclesClosed    int
	SourceErrors    int
	Reinitialized   bool
}

// Reconcile detects fills among OPEN orders, records their executions,
// closes profit cycles on SELL fills and arms the counter-orders. An empty
// ledger is treated as grid collapse and re-initializes the grid.
func (e *Engine) Reconcile(ctx context.Context, state *EngineState) (ReconcileResult, error) {
	var res ReconcileResult

	open, err := e.ledger.OpenOrders(ctx)
	if err != nil {
		return res, fmt.Errorf("grid.Reconcile: %w", err)
	}
	if len(open) == 0 {
		slog.Info("grid: no open orders, re-initializing")
		res.Reinitialized = true
		if _, err := e.Initialize(ctx, state); err != nil {
			return res, fmt.Errorf("grid.Reconcile: %w", err)
		}
		return res, nil
	}

	price, err := e.gateway.LastPrice(ctx, e.cfg.Symbol)
	if err != nil {
		return res, fmt.Errorf("grid.Reconcile: last price: %w", err)
	}
	source := e.fillSource(price)

	for _, o := range open {
		res.Checked++
		fill, ok, err := source.Check(ctx, e.cfg.Symbol, o)
		if err != nil {
			res.SourceErrors++
			slog.Warn("grid: fill check failed, skipping order",
				"id", o.ID, "exchange_order_id", o.ExchangeOrderID, "err", err)
			continue
		}
		if !ok {
			continue
		}
		e.applyFill(ctx, state, o, fill, &res)
	}
	return res, nil
}

// fillSource prefers the gateway's order status and falls back to the price
// threshold for gateways (or orders) without status support.
func (e *Engine) fillSource(price float64) engine.FillSource {
	return engine.WithFallback(
		engine.GatewayStatus{Gateway: e.gateway},
		engine.PriceThreshold{Price: price},
	)
}

func (e *Engine) applyFill(ctx context.Context, state *EngineState, o domain.OrderRecord, fill engine.Fill, res *ReconcileResult) {
	now := e.now()
	exec := domain.ExecutionRecord{
		Level:           o.Level,
		ExchangeOrderID: o.ExchangeOrderID,
		Side:            o.Side,
		ExecPrice:       fill.Price,
		ExecAmount:      fill.Amount,
		Fee:             fill.Fee,
		FeeCurrency:     fill.FeeCurrency,
		ExecutedAt:      now,
	}
	// La orden sigue OPEN si falla: el próximo pase lo reintenta.
	seq, err := e.ledger.RecordFill(ctx, o.ID, exec)
	if err != nil {
		slog.Error("grid: could not record fill, order left open", "id", o.ID, "err", err)
		return
	}
	exec.Seq = seq
	res.Filled++
	e.metrics.OrderFilled(o.Side)

	slog.Info("grid: order filled",
		"id", o.ID, "side", o.Side, "level", o.Level,
		"price", fill.Price, "amount", fill.Amount, "fee", fill.Fee)
	e.notify(ctx, "✅ %s filled\nLevel: %d\nPrice: %s\nAmount: %s",
		o.Side, o.Level, state.Market.FormatPrice(fill.Price), state.Market.FormatAmount(fill.Amount))

	if o.Side == domain.SideSell {
		legacy := domain.LegacyProfit(o, state.Grid.Step)
		if err := e.ledger.InsertLegacyProfit(ctx, legacy, now); err != nil {
			slog.Error("grid: could not record gross profit", "id", o.ID, "err", err)
		}
		if e.closeCycle(ctx, exec) {
			res.CyclesClosed++
		}
	}

	e.armCounter(ctx, state, o, res)
}

// armCounter places the order one level away from a filled record.
func (e *Engine) armCounter(ctx context.Context, state *EngineState, filled domain.OrderRecord, res *ReconcileResult) {
	intent, ok := state.Grid.Counter(filled)
	if !ok {
		res.BoundaryReached++
		slog.Warn("grid: boundary reached, no counter-order",
			"side", filled.Side, "level", filled.Level, "target_level", intent.Level)
		e.notify(ctx, "Grid boundary reached: %s filled at level %d, no %s beyond level %d",
			filled.Side, filled.Level, intent.Side, intent.Level)
		return
	}

	r := e.Place(ctx, state, intent.Price, intent.Side, intent.Level)
	if r.Outcome == OutcomePlaced {
		res.CountersPlaced++
		slog.Info("grid: counter-order armed",
			"filled_side", filled.Side, "filled_level", filled.Level,
			"side", intent.Side, "level", intent.Level, "price", r.Record.Price)
	}
}
