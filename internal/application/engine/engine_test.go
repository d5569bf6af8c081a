package engine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/gridbot/internal/application/engine"
	"github.com/alejandrodnm/gridbot/internal/domain"
	"github.com/alejandrodnm/gridbot/internal/ports"
)

func TestPriceThreshold(t *testing.T) {
	buy := domain.OrderRecord{Side: domain.SideBuy, Price: 58000, Amount: 0.00025}
	sell := domain.OrderRecord{Side: domain.SideSell, Price: 62000, Amount: 0.00024}
	ctx := context.Background()

	tests := []struct {
		name  string
		price float64
		order domain.OrderRecord
		want  bool
	}{
		{"buy above price stays open", 58000.01, buy, false},
		{"buy at price fills", 58000, buy, true},
		{"buy below price fills", 57000, buy, true},
		{"sell below price stays open", 61999.99, sell, false},
		{"sell at price fills", 62000, sell, true},
		{"sell above price fills", 63000, sell, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fill, ok, err := engine.PriceThreshold{Price: tt.price}.Check(ctx, "BTC/USDT", tt.order)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			if ok {
				assert.InDelta(t, tt.order.Price, fill.Price, 1e-9, "intended price, not market price")
				assert.InDelta(t, tt.order.Amount, fill.Amount, 1e-12)
				assert.Zero(t, fill.Fee)
			}
		})
	}
}

type statusStub struct {
	report domain.OrderStatusReport
	err    error
}

func (s statusStub) OrderStatus(context.Context, string, string) (domain.OrderStatusReport, error) {
	return s.report, s.err
}

func TestGatewayStatus(t *testing.T) {
	order := domain.OrderRecord{Side: domain.SideBuy, Price: 58000, Amount: 0.00025, ExchangeOrderID: "1"}
	ctx := context.Background()

	src := engine.GatewayStatus{Gateway: statusStub{report: domain.OrderStatusReport{
		Status: domain.ExchangeStatusFilled, AvgPrice: 57990, FilledAmount: 0.00025, Fee: 0.0145, FeeCurrency: "USDT",
	}}}
	fill, ok, err := src.Check(ctx, "BTC/USDT", order)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 57990.0, fill.Price, 1e-9)
	assert.InDelta(t, 0.0145, fill.Fee, 1e-12)
	assert.Equal(t, "USDT", fill.FeeCurrency)

	src = engine.GatewayStatus{Gateway: statusStub{report: domain.OrderStatusReport{Status: domain.ExchangeStatusPartiallyFilled}}}
	_, ok, err = src.Check(ctx, "BTC/USDT", order)
	require.NoError(t, err)
	assert.False(t, ok)

	src = engine.GatewayStatus{Gateway: statusStub{report: domain.OrderStatusReport{Status: domain.ExchangeStatusFilled}}}
	fill, ok, err = src.Check(ctx, "BTC/USDT", order)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 58000.0, fill.Price, 1e-9, "missing detail falls back to the order")
}

func TestWithFallback(t *testing.T) {
	order := domain.OrderRecord{Side: domain.SideBuy, Price: 58000, Amount: 0.00025}
	ctx := context.Background()

	src := engine.WithFallback(
		engine.GatewayStatus{Gateway: statusStub{err: ports.ErrStatusUnsupported}},
		engine.PriceThreshold{Price: 57000},
	)
	_, ok, err := src.Check(ctx, "BTC/USDT", order)
	require.NoError(t, err)
	assert.True(t, ok)

	boom := errors.New("timeout")
	src = engine.WithFallback(
		engine.GatewayStatus{Gateway: statusStub{err: boom}},
		engine.PriceThreshold{Price: 57000},
	)
	_, _, err = src.Check(ctx, "BTC/USDT", order)
	assert.ErrorIs(t, err, boom, "other errors are not masked")
}
