package grid_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/gridbot/internal/domain"
)

func TestRecover_ReplacesMissingCounterOrder(t *testing.T) {
	h := newHarness(t, newFakeGateway(59000), defaultConfig())
	ctx := context.Background()
	// Crash entre RecordFill y la contraorden.
	h.seedOrder(t, 4, domain.SideBuy, 58000, domain.StatusFilled, "b-4")

	res := h.engine.Recover(ctx, h.state)
	assert.Equal(t, 1, res.Scanned)
	assert.Equal(t, 1, res.Placed)

	sell, ok, err := h.ledger.FindOpenOrder(ctx, 5, domain.SideSell)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 60000.0, sell.Price, 1e-9)
	assert.Contains(t, h.notifier.msgs[len(h.notifier.msgs)-1], "Recovery: 1")
}

func TestRecover_IsIdempotent(t *testing.T) {
	h := newHarness(t, newFakeGateway(59000), defaultConfig())
	ctx := context.Background()
	h.seedOrder(t, 4, domain.SideBuy, 58000, domain.StatusFilled, "b-4")
	h.seedOrder(t, 7, domain.SideSell, 64000, domain.StatusFilled, "s-7")

	first := h.engine.Recover(ctx, h.state)
	assert.Equal(t, 2, first.Placed)
	openAfterFirst := openByLevel(h.open(t))

	second := h.engine.Recover(ctx, h.state)
	assert.Zero(t, second.Placed)
	assert.Equal(t, 2, second.Present)
	assert.Equal(t, openAfterFirst, openByLevel(h.open(t)))
	assert.Len(t, h.gateway.submitted, 2)
}

func TestRecover_CompletedCycleIsNotRearmed(t *testing.T) {
	h := newHarness(t, newFakeGateway(59000), defaultConfig())
	ctx := context.Background()
	// BUY@4 llenado, su SELL@5 también llenado, y la BUY@4 re-armada sigue abierta.
	h.seedOrder(t, 4, domain.SideBuy, 58000, domain.StatusFilled, "b-4")
	h.seedOrder(t, 5, domain.SideSell, 60000, domain.StatusFilled, "s-5")
	h.seedOrder(t, 4, domain.SideBuy, 58000, domain.StatusOpen, "b-4b")

	res := h.engine.Recover(ctx, h.state)
	assert.Zero(t, res.Placed)
	assert.Equal(t, 2, res.Present)
	assert.Empty(t, h.gateway.submitted)
}

func TestRecover_SameTargetPlacedOnce(t *testing.T) {
	h := newHarness(t, newFakeGateway(59000), defaultConfig())
	ctx := context.Background()
	h.seedOrder(t, 4, domain.SideBuy, 58000, domain.StatusFilled, "b-4")
	h.seedOrder(t, 4, domain.SideBuy, 58000, domain.StatusFilled, "b-4b")

	res := h.engine.Recover(ctx, h.state)
	assert.Equal(t, 1, res.Placed)
	assert.Equal(t, 1, res.Present)
	requireLevelInvariant(t, h.open(t))
}

func TestRecover_BoundaryFillsAreIgnored(t *testing.T) {
	h := newHarness(t, newFakeGateway(59000), defaultConfig())
	h.seedOrder(t, 10, domain.SideBuy, 70000, domain.StatusFilled, "b-10")
	h.seedOrder(t, 0, domain.SideSell, 50000, domain.StatusFilled, "s-0")

	res := h.engine.Recover(context.Background(), h.state)
	assert.Equal(t, 2, res.Boundary)
	assert.Zero(t, res.Placed)
	assert.Empty(t, h.gateway.submitted)
}

func TestRecover_SkippedPlacementIsCounted(t *testing.T) {
	gw := newFakeGateway(59000)
	gw.balances["BTC"] = 0
	h := newHarness(t, gw, defaultConfig())
	h.seedOrder(t, 4, domain.SideBuy, 58000, domain.StatusFilled, "b-4")

	res := h.engine.Recover(context.Background(), h.state)
	assert.Equal(t, 1, res.Skipped)
	assert.Zero(t, res.Placed)
}
