package ports

import (
	"context"
	"errors"

	"github.com/alejandrodnm/gridbot/internal/domain"
)

// ErrStatusUnsupported is returned by gateways that cannot report the
// exchange-side state of an order (dry-run). Callers fall back to price
// threshold fill detection.
var ErrStatusUnsupported = errors.New("order status not supported")

// OrderGateway is the exchange surface the grid engine needs.
// All amounts are in base asset units and prices in quote asset units.
type OrderGateway interface {
	// LoadMarket returns precision and minimums for a "BASE/QUOTE" symbol.
	LoadMarket(ctx context.Context, symbol string) (domain.MarketMeta, error)

	// LastPrice returns the last traded price of the symbol.
	LastPrice(ctx context.Context, symbol string) (float64, error)

	// FreeBalance returns the available (not locked) balance of an asset.
	FreeBalance(ctx context.Context, asset string) (float64, error)

	// SubmitLimitOrder places a GTC limit order. amount and price must
	// already be rounded to the market precision.
	SubmitLimitOrder(ctx context.Context, symbol string, side domain.Side, amount, price float64) (domain.SubmittedOrder, error)

	// OrderStatus returns the authoritative state of an order.
	OrderStatus(ctx context.Context, symbol, exchangeOrderID string) (domain.OrderStatusReport, error)

	// CancelOrder cancels an open order.
	CancelOrder(ctx context.Context, symbol, exchangeOrderID string) error
}
