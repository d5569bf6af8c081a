package grid

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/gridbot/internal/domain"
)

// Outcome of a placement intent.
type Outcome int

const (
	OutcomePlaced Outcome = iota
	OutcomeSkipped
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomePlaced:
		return "placed"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// SkipReason explains a policy skip. Skips are decisions, not errors.
type SkipReason string

const (
	SkipInvalidAmount       SkipReason = "invalid_amount"
	SkipBelowMinimum        SkipReason = "below_minimum"
	SkipDuplicate           SkipReason = "duplicate"
	SkipInsufficientBalance SkipReason = "insufficient_balance"
)

// PlaceResult is what Place decided for one (price, side, level) intent.
type PlaceResult struct {
	Outcome Outcome
	Reason  SkipReason         // only for OutcomeSkipped
	Record  domain.OrderRecord // only for OutcomePlaced
	Err     error              // only for OutcomeFailed
}

func skipped(r SkipReason) PlaceResult { return PlaceResult{Outcome: OutcomeSkipped, Reason: r} }
func failed(err error) PlaceResult { return PlaceResult{Outcome: OutcomeFailed, Err: err} }

// Place turns an intent into a validated, balance-checked order recorded as
// OPEN. At most one submission and one ledger insert per call.
func (e *Engine) Place(ctx context.Context, state *EngineState, price float64, side domain.Side, level int) PlaceResult {
	r := e.place(ctx, state, price, side, level)
	switch r.Outcome {
	case OutcomePlaced:
		e.metrics.OrderPlaced(side)
	case OutcomeSkipped:
		e.metrics.OrderSkipped(string(r.Reason))
	}
	return r
}

func (e *Engine) place(ctx context.Context, state *EngineState, price float64, side domain.Side, level int) PlaceResult {
	meta := state.Market
	if price <= 0 {
		slog.Warn("grid: non-positive price, intent dropped", "side", side, "level", level, "price", price)
		return skipped(SkipInvalidAmount)
	}

	// 1. Precisión del exchange
	amount := meta.RoundAmount(e.cfg.InvestmentPerLevel / price)
	px := meta.RoundPrice(price)
	if amount <= 0 || px <= 0 {
		slog.Warn("grid: rounded amount is not positive, intent dropped",
			"side", side, "level", level, "price", price, "amount", amount)
		return skipped(SkipInvalidAmount)
	}

	// 2. Mínimos del mercado
	cost := amount * px
	if (meta.MinAmount > 0 && amount < meta.MinAmount) || (meta.MinCost > 0 && cost < meta.MinCost) {
		slog.Warn("grid: order below market minimum",
			"side", side, "level", level, "amount", amount, "cost", fmt.Sprintf("%.2f", cost),
			"min_amount", meta.MinAmount, "min_cost", meta.MinCost)
		e.notify(ctx, "Order %s at %s skipped: cost %.2f below market minimum %.2f",
			side, meta.FormatPrice(px), cost, meta.MinCost)
		return skipped(SkipBelowMinimum)
	}

	// 3. Un solo OPEN por (level, side)
	if existing, ok, err := e.ledger.FindOpenOrder(ctx, level, side); err != nil {
		return failed(fmt.Errorf("grid.Place: duplicate check: %w", err))
	} else if ok {
		slog.Info("grid: level already has an open order, skipping",
			"side", side, "level", level, "existing_id", existing.ID)
		return skipped(SkipDuplicate)
	}

	// 4. Saldo libre
	asset, required := meta.QuoteAsset, cost
	if side == domain.SideSell {
		asset, required = meta.BaseAsset, amount
	}
	free, err := e.gateway.FreeBalance(ctx, asset)
	if err != nil {
		slog.Error("grid: balance query failed, assuming zero", "asset", asset, "err", err)
		e.notify(ctx, "Error getting %s balance: %v", asset, err)
		free = 0
	}
	if free < required {
		slog.Warn("grid: insufficient balance, order skipped",
			"side", side, "level", level, "asset", asset, "required", required, "free", free)
		e.notify(ctx, "Insufficient balance: need %.8f %s, have %.8f %s. %s order at %s skipped.",
			required, asset, free, asset, side, meta.FormatPrice(px))
		return skipped(SkipInsufficientBalance)
	}

	// 5. Envío
	sub, err := e.gateway.SubmitLimitOrder(ctx, e.cfg.Symbol, side, amount, px)
	if err != nil {
		slog.Error("grid: order submission failed", "side", side, "level", level, "price", px, "err", err)
		e.notify(ctx, "Error creating %s order at %s: %v", side, meta.FormatPrice(px), err)
		return failed(fmt.Errorf("grid.Place: submit: %w", err))
	}

	// 6. Ledger
	rec := domain.OrderRecord{
		Level:           level,
		ExchangeOrderID: sub.ExchangeOrderID,
		Price:           px,
		Side:            side,
		Amount:          amount,
		Status:          domain.StatusOpen,
		UpdatedAt:       e.now(),
	}
	id, err := e.ledger.InsertOrder(ctx, rec)
	if err != nil {
		// La orden existe en el exchange pero no en el ledger: la expiración no la verá.
		slog.Error("grid: order submitted but not recorded",
			"exchange_order_id", sub.ExchangeOrderID, "side", side, "level", level, "err", err)
		e.notify(ctx, "Order %s %s at %s was submitted but could not be recorded: %v",
			sub.ExchangeOrderID, side, meta.FormatPrice(px), err)
		return failed(fmt.Errorf("grid.Place: record: %w", err))
	}
	rec.ID = id

	slog.Info("grid: order placed",
		"id", id, "exchange_order_id", sub.ExchangeOrderID,
		"side", side, "level", level, "price", px, "amount", amount)
	e.notify(ctx, "📌 %s order placed\nLevel: %d\nPrice: %s\nAmount: %s",
		side, level, meta.FormatPrice(px), meta.FormatAmount(amount))
	return PlaceResult{Outcome: OutcomePlaced, Record: rec}
}
