package binance

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/google/uuid"

	"github.com/alejandrodnm/gridbot/internal/domain"
)

// LoadMarket lee LOT_SIZE, PRICE_FILTER y NOTIONAL/MIN_NOTIONAL del símbolo.
func (c *Client) LoadMarket(ctx context.Context, symbol string) (domain.MarketMeta, error) {
	base, quote, err := domain.SplitSymbol(symbol)
	if err != nil {
		return domain.MarketMeta{}, fmt.Errorf("binance.LoadMarket: %w", err)
	}

	var info *gobinance.ExchangeInfo
	err = c.doWithRetry(ctx, "exchangeInfo", func() error {
		var e error
		info, e = c.api.NewExchangeInfoService().Symbol(domain.ExchangeSymbol(symbol)).Do(ctx)
		return e
	})
	if err != nil {
		return domain.MarketMeta{}, fmt.Errorf("binance.LoadMarket: %s: %w", symbol, err)
	}
	if info == nil || len(info.Symbols) == 0 {
		return domain.MarketMeta{}, fmt.Errorf("binance.LoadMarket: %s: symbol not listed", symbol)
	}

	s := info.Symbols[0]
	meta := domain.MarketMeta{
		Symbol:     symbol,
		BaseAsset:  base,
		QuoteAsset: quote,
		MinCost:    domain.DefaultMinCost,
	}
	if f := s.LotSizeFilter(); f != nil {
		meta.AmountStep = parseFloat(f.StepSize)
		meta.MinAmount = parseFloat(f.MinQuantity)
	}
	if f := s.PriceFilter(); f != nil {
		meta.PriceTick = parseFloat(f.TickSize)
	}
	if f := s.NotionalFilter(); f != nil && parseFloat(f.MinNotional) > 0 {
		meta.MinCost = parseFloat(f.MinNotional)
	} else if v := legacyMinNotional(s.Filters); v > 0 {
		meta.MinCost = v
	}
	return meta, nil
}

// legacyMinNotional lee el filtro MIN_NOTIONAL que algunos símbolos aún
// reportan en lugar de NOTIONAL. La librería no lo tipa.
func legacyMinNotional(filters []map[string]interface{}) float64 {
	for _, f := range filters {
		if f["filterType"] != "MIN_NOTIONAL" {
			continue
		}
		if v, ok := f["minNotional"].(string); ok {
			return parseFloat(v)
		}
	}
	return 0
}

// LastPrice devuelve el último precio negociado.
func (c *Client) LastPrice(ctx context.Context, symbol string) (float64, error) {
	var prices []*gobinance.SymbolPrice
	err := c.doWithRetry(ctx, "tickerPrice", func() error {
		var e error
		prices, e = c.api.NewListPricesService().Symbol(domain.ExchangeSymbol(symbol)).Do(ctx)
		return e
	})
	if err != nil {
		return 0, fmt.Errorf("binance.LastPrice: %s: %w", symbol, err)
	}
	for _, p := range prices {
		if p != nil && p.Symbol == domain.ExchangeSymbol(symbol) {
			return parseFloat(p.Price), nil
		}
	}
	return 0, fmt.Errorf("binance.LastPrice: %s: no ticker returned", symbol)
}

// FreeBalance devuelve el saldo libre de un asset. Un asset sin fila en la cuenta vale 0.
func (c *Client) FreeBalance(ctx context.Context, asset string) (float64, error) {
	var account *gobinance.Account
	err := c.doWithRetry(ctx, "account", func() error {
		var e error
		account, e = c.api.NewGetAccountService().Do(ctx)
		return e
	})
	if err != nil {
		return 0, fmt.Errorf("binance.FreeBalance: %s: %w", asset, err)
	}
	for _, b := range account.Balances {
		if strings.EqualFold(b.Asset, asset) {
			return parseFloat(b.Free), nil
		}
	}
	return 0, nil
}

// SubmitLimitOrder coloca una orden límite GTC. Los reintentos reutilizan el
// mismo clientOrderID: si el primer envío llegó pero su respuesta se perdió,
// Binance rechaza el reintento como duplicado y la orden se recupera por
// clientOrderID en lugar de darla por fallida.
func (c *Client) SubmitLimitOrder(ctx context.Context, symbol string, side domain.Side, amount, price float64) (domain.SubmittedOrder, error) {
	sideType := gobinance.SideTypeBuy
	if side == domain.SideSell {
		sideType = gobinance.SideTypeSell
	}
	clientID := "grid-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
	qty := strconv.FormatFloat(amount, 'f', -1, 64)
	px := strconv.FormatFloat(price, 'f', -1, 64)

	var resp *gobinance.CreateOrderResponse
	attempts := 0
	err := c.doWithRetry(ctx, "createOrder", func() error {
		attempts++
		var e error
		resp, e = c.api.NewCreateOrderService().
			Symbol(domain.ExchangeSymbol(symbol)).
			Side(sideType).
			Type(gobinance.OrderTypeLimit).
			TimeInForce(gobinance.TimeInForceTypeGTC).
			Quantity(qty).
			Price(px).
			NewClientOrderID(clientID).
			Do(ctx)
		return e
	})
	if err != nil && attempts > 1 && isDuplicateOrder(err) {
		order, lookupErr := c.orderByClientID(ctx, symbol, clientID)
		if lookupErr == nil {
			slog.Warn("binance: duplicate submit after retry, order recovered by client id",
				"client_order_id", clientID, "order_id", order.OrderID, "status", order.Status)
			return domain.SubmittedOrder{
				ExchangeOrderID: strconv.FormatInt(order.OrderID, 10),
				Status:          string(order.Status),
			}, nil
		}
		err = fmt.Errorf("%w (lookup by client id %s: %v)", err, clientID, lookupErr)
	}
	if err != nil {
		return domain.SubmittedOrder{}, fmt.Errorf("binance.SubmitLimitOrder: %s %s %s@%s: %w", side, symbol, qty, px, err)
	}
	return domain.SubmittedOrder{
		ExchangeOrderID: strconv.FormatInt(resp.OrderID, 10),
		Status:          string(resp.Status),
	}, nil
}

func (c *Client) orderByClientID(ctx context.Context, symbol, clientID string) (*gobinance.Order, error) {
	var order *gobinance.Order
	err := c.doWithRetry(ctx, "getOrderByClientID", func() error {
		var e error
		order, e = c.api.NewGetOrderService().
			Symbol(domain.ExchangeSymbol(symbol)).
			OrigClientOrderID(clientID).
			Do(ctx)
		return e
	})
	return order, err
}

// OrderStatus consulta la orden y, si está llena, agrega las comisiones de sus trades.
// Las comisiones cobradas en el asset base se convierten a unidades de quote.
func (c *Client) OrderStatus(ctx context.Context, symbol, exchangeOrderID string) (domain.OrderStatusReport, error) {
	id, err := strconv.ParseInt(exchangeOrderID, 10, 64)
	if err != nil {
		return domain.OrderStatusReport{}, fmt.Errorf("binance.OrderStatus: bad order id %q: %w", exchangeOrderID, err)
	}
	sym := domain.ExchangeSymbol(symbol)

	var order *gobinance.Order
	err = c.doWithRetry(ctx, "getOrder", func() error {
		var e error
		order, e = c.api.NewGetOrderService().Symbol(sym).OrderID(id).Do(ctx)
		return e
	})
	if err != nil {
		return domain.OrderStatusReport{}, fmt.Errorf("binance.OrderStatus: %s: %w", exchangeOrderID, err)
	}

	report := domain.OrderStatusReport{
		Status:       string(order.Status),
		FilledAmount: parseFloat(order.ExecutedQuantity),
		AvgPrice:     parseFloat(order.Price),
	}
	if quoteQty := parseFloat(order.CummulativeQuoteQuantity); report.FilledAmount > 0 && quoteQty > 0 {
		report.AvgPrice = quoteQty / report.FilledAmount
	}
	if !report.IsFilled() {
		return report, nil
	}

	var trades []*gobinance.TradeV3
	err = c.doWithRetry(ctx, "myTrades", func() error {
		var e error
		trades, e = c.api.NewListTradesService().Symbol(sym).OrderId(id).Do(ctx)
		return e
	})
	if err != nil {
		return domain.OrderStatusReport{}, fmt.Errorf("binance.OrderStatus: trades %s: %w", exchangeOrderID, err)
	}

	base, quote, _ := domain.SplitSymbol(symbol)
	for _, t := range trades {
		if t == nil {
			continue
		}
		fee := parseFloat(t.Commission)
		switch {
		case strings.EqualFold(t.CommissionAsset, base):
			fee *= parseFloat(t.Price)
			report.FeeCurrency = quote
		case report.FeeCurrency == "":
			report.FeeCurrency = strings.ToUpper(t.CommissionAsset)
		}
		report.Fee += fee
	}
	return report, nil
}

// CancelOrder cancela una orden abierta.
func (c *Client) CancelOrder(ctx context.Context, symbol, exchangeOrderID string) error {
	id, err := strconv.ParseInt(exchangeOrderID, 10, 64)
	if err != nil {
		return fmt.Errorf("binance.CancelOrder: bad order id %q: %w", exchangeOrderID, err)
	}
	err = c.doWithRetry(ctx, "cancelOrder", func() error {
		_, e := c.api.NewCancelOrderService().Symbol(domain.ExchangeSymbol(symbol)).OrderID(id).Do(ctx)
		return e
	})
	if err != nil {
		return fmt.Errorf("binance.CancelOrder: %s: %w", exchangeOrderID, err)
	}
	return nil
}
