// Package paper implementa el modo simulación: lee mercado y saldos del
// exchange real pero nunca envía órdenes.
package paper

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/alejandrodnm/gridbot/internal/domain"
	"github.com/alejandrodnm/gridbot/internal/ports"
)

// IDPrefix marca los ids de órdenes simuladas.
const IDPrefix = "SIM_"

// Gateway decora un ports.OrderGateway real para dry-run.
type Gateway struct {
	market   ports.OrderGateway
	balances map[string]float64
}

// NewGateway envuelve el gateway que aporta datos de mercado y saldos.
// balances (opcional) fija saldos virtuales por activo; los activos que no
// aparecen se consultan al exchange real.
func NewGateway(market ports.OrderGateway, balances map[string]float64) *Gateway {
	virtual := make(map[string]float64, len(balances))
	for asset, v := range balances {
		virtual[strings.ToUpper(asset)] = v
	}
	return &Gateway{market: market, balances: virtual}
}

func (g *Gateway) LoadMarket(ctx context.Context, symbol string) (domain.MarketMeta, error) {
	return g.market.LoadMarket(ctx, symbol)
}

func (g *Gateway) LastPrice(ctx context.Context, symbol string) (float64, error) {
	return g.market.LastPrice(ctx, symbol)
}

func (g *Gateway) FreeBalance(ctx context.Context, asset string) (float64, error) {
	if v, ok := g.balances[strings.ToUpper(asset)]; ok {
		return v, nil
	}
	return g.market.FreeBalance(ctx, asset)
}

// SubmitLimitOrder no toca el exchange: devuelve un id SIM_<uuid>.
func (g *Gateway) SubmitLimitOrder(_ context.Context, symbol string, side domain.Side, amount, price float64) (domain.SubmittedOrder, error) {
	id := IDPrefix + uuid.NewString()
	slog.Info("paper: simulated order", "id", id, "symbol", symbol, "side", side, "amount", amount, "price", price)
	return domain.SubmittedOrder{ExchangeOrderID: id, Status: domain.ExchangeStatusNew}, nil
}

// OrderStatus no está disponible en simulación; el engine detecta fills por precio.
func (g *Gateway) OrderStatus(context.Context, string, string) (domain.OrderStatusReport, error) {
	return domain.OrderStatusReport{}, ports.ErrStatusUnsupported
}

// CancelOrder es un no-op en simulación.
func (g *Gateway) CancelOrder(_ context.Context, _ string, exchangeOrderID string) error {
	slog.Debug("paper: simulated cancel", "id", exchangeOrderID)
	return nil
}
