package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MarketMeta describes the exchange rules of the traded symbol.
// AmountStep and PriceTick are the exchange-native precision (LOT_SIZE / PRICE_FILTER).
type MarketMeta struct {
	Symbol     string // "BTC/USDT"
	BaseAsset  string
	QuoteAsset string
	AmountStep float64
	PriceTick  float64
	MinAmount  float64
	MinCost    float64
}

// DefaultMinCost is used when the exchange does not report a notional minimum.
const DefaultMinCost = 10.0

// SplitSymbol splits "BASE/QUOTE" into its assets.
func SplitSymbol(symbol string) (base, quote string, err error) {
	parts := strings.Split(symbol, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed symbol %q: want BASE/QUOTE", symbol)
	}
	return strings.ToUpper(parts[0]), strings.ToUpper(parts[1]), nil
}

// ExchangeSymbol returns the concatenated form used by the exchange API ("BTCUSDT").
func ExchangeSymbol(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(symbol, "/", ""))
}

// RoundAmount floors amount to the lot step.
func (m MarketMeta) RoundAmount(amount float64) float64 {
	return floorToStep(amount, m.AmountStep)
}

// RoundPrice floors price to the tick size.
func (m MarketMeta) RoundPrice(price float64) float64 {
	return floorToStep(price, m.PriceTick)
}

// FormatAmount renders an already rounded amount without float noise.
func (m MarketMeta) FormatAmount(amount float64) string {
	return formatToStep(amount, m.AmountStep)
}

// FormatPrice renders an already rounded price without float noise.
func (m MarketMeta) FormatPrice(price float64) string {
	return formatToStep(price, m.PriceTick)
}

func floorToStep(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	d := decimal.NewFromFloat(v)
	s := decimal.NewFromFloat(step)
	return d.Div(s).Floor().Mul(s).InexactFloat64()
}

func formatToStep(v, step float64) string {
	d := decimal.NewFromFloat(v)
	if step <= 0 {
		return d.String()
	}
	places := -decimal.NewFromFloat(step).Exponent()
	if places < 0 {
		places = 0
	}
	return d.StringFixed(places)
}
