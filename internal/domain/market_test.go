package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarketMeta_Rounding(t *testing.T) {
	m := MarketMeta{AmountStep: 0.00001, PriceTick: 0.01}

	// 15 USDT / 58000 = 0.000258620...
	assert.InDelta(t, 0.00025, m.RoundAmount(15.0/58000), 1e-12)
	assert.InDelta(t, 58123.45, m.RoundPrice(58123.456), 1e-9)
	assert.Equal(t, "0.00025", m.FormatAmount(0.00025))
	assert.Equal(t, "58123.45", m.FormatPrice(58123.45))
}

func TestMarketMeta_RoundingWithoutStep(t *testing.T) {
	m := MarketMeta{}
	assert.InDelta(t, 1.23456, m.RoundAmount(1.23456), 1e-12)
}

func TestSplitSymbol(t *testing.T) {
	base, quote, err := SplitSymbol("btc/usdt")
	require.NoError(t, err)
	assert.Equal(t, "BTC", base)
	assert.Equal(t, "USDT", quote)

	_, _, err = SplitSymbol("BTCUSDT")
	assert.Error(t, err)
	_, _, err = SplitSymbol("/USDT")
	assert.Error(t, err)
}

func TestExchangeSymbol(t *testing.T) {
	assert.Equal(t, "BTCUSDT", ExchangeSymbol("BTC/USDT"))
}
