package engine

import (
	"context"
	"errors"

	"github.com/alejandrodnm/gridbot/internal/domain"
	"github.com/alejandrodnm/gridbot/internal/ports"
)

// Fill is the execution detail of an order that a FillSource considers filled.
type Fill struct {
	Price       float64
	Amount      float64
	Fee         float64
	FeeCurrency string
}

// FillSource decides whether an OPEN grid order has executed.
// The reconciler is written once against this capability.
type FillSource interface {
	Check(ctx context.Context, symbol string, o domain.OrderRecord) (Fill, bool, error)
}

// PriceThreshold detects fills by comparing the last price with the order
// price: a BUY fills at or below it, a SELL at or above it. The execution
// detail is the intended price and amount, with no fee.
type PriceThreshold struct {
	Price float64
}

func (p PriceThreshold) Check(_ context.Context, _ string, o domain.OrderRecord) (Fill, bool, error) {
	filled := (o.Side == domain.SideBuy && p.Price <= o.Price) ||
		(o.Side == domain.SideSell && p.Price >= o.Price)
	if !filled {
		return Fill{}, false, nil
	}
	return Fill{Price: o.Price, Amount: o.Amount}, true, nil
}

// StatusReader is the part of the gateway GatewayStatus needs.
type StatusReader interface {
	OrderStatus(ctx context.Context, symbol, exchangeOrderID string) (domain.OrderStatusReport, error)
}

// GatewayStatus uses the exchange's authoritative order state. Only FILLED
// counts; partial fills stay open until complete.
type GatewayStatus struct {
	Gateway StatusReader
}

func (g GatewayStatus) Check(ctx context.Context, symbol string, o domain.OrderRecord) (Fill, bool, error) {
	report, err := g.Gateway.OrderStatus(ctx, symbol, o.ExchangeOrderID)
	if err != nil {
		return Fill{}, false, err
	}
	if !report.IsFilled() {
		return Fill{}, false, nil
	}
	fill := Fill{
		Price:       report.AvgPrice,
		Amount:      report.FilledAmount,
		Fee:         report.Fee,
		FeeCurrency: report.FeeCurrency,
	}
	if fill.Price <= 0 {
		fill.Price = o.Price
	}
	if fill.Amount <= 0 {
		fill.Amount = o.Amount
	}
	return fill, true, nil
}

// WithFallback consults primary and switches to fallback for orders whose
// status primary cannot report (ports.ErrStatusUnsupported).
func WithFallback(primary, fallback FillSource) FillSource {
	return fallbackSource{primary: primary, fallback: fallback}
}

type fallbackSource struct {
	primary, fallback FillSource
}

func (f fallbackSource) Check(ctx context.Context, symbol string, o domain.OrderRecord) (Fill, bool, error) {
	fill, ok, err := f.primary.Check(ctx, symbol, o)
	if errors.Is(err, ports.ErrStatusUnsupported) {
		return f.fallback.Check(ctx, symbol, o)
	}
	return fill, ok, err
}
