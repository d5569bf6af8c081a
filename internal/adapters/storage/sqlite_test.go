package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/alejandrodnm/gridbot/internal/adapters/storage"
	"github.com/alejandrodnm/gridbot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStorage(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func openOrder(level int, side domain.Side, price float64) domain.OrderRecord {
	return domain.OrderRecord{
		Level:           level,
		ExchangeOrderID: "ex-" + string(side),
		Price:           price,
		Side:            side,
		Amount:          0.001,
		Status:          domain.StatusOpen,
		UpdatedAt:       time.Now().UTC(),
	}
}

func TestSQLiteStorage_SchemaIsIdempotent(t *testing.T) {
	db := newStorage(t)
	require.NoError(t, db.ApplyGridSchema(context.Background()))
	require.NoError(t, db.ApplyGridSchema(context.Background()))
}

func TestSQLiteStorage_InsertAndFindOpenOrder(t *testing.T) {
	db := newStorage(t)
	ctx := context.Background()

	id, err := db.InsertOrder(ctx, openOrder(3, domain.SideBuy, 56000))
	require.NoError(t, err)
	assert.Positive(t, id)

	got, ok, err := db.FindOpenOrder(ctx, 3, domain.SideBuy)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, domain.SideBuy, got.Side)
	assert.InDelta(t, 56000.0, got.Price, 1e-9)
	assert.Equal(t, domain.StatusOpen, got.Status)

	_, ok, err = db.FindOpenOrder(ctx, 3, domain.SideSell)
	require.NoError(t, err)
	assert.False(t, ok, "same level, other side")
}

func fillOf(o domain.OrderRecord, at time.Time) domain.ExecutionRecord {
	return domain.ExecutionRecord{
		Level: o.Level, ExchangeOrderID: o.ExchangeOrderID, Side: o.Side,
		ExecPrice: o.Price, ExecAmount: o.Amount, ExecutedAt: at,
	}
}

func TestSQLiteStorage_RecordFillOnlyFromOpen(t *testing.T) {
	db := newStorage(t)
	ctx := context.Background()

	o := openOrder(1, domain.SideBuy, 52000)
	id, err := db.InsertOrder(ctx, o)
	require.NoError(t, err)

	filledAt := time.Now().UTC().Add(time.Minute)
	seq, err := db.RecordFill(ctx, id, fillOf(o, filledAt))
	require.NoError(t, err)
	assert.Positive(t, seq)

	_, err = db.RecordFill(ctx, id, fillOf(o, filledAt.Add(time.Hour)))
	require.ErrorIs(t, err, storage.ErrNotOpenOrder)

	filled, err := db.FilledOrders(ctx)
	require.NoError(t, err)
	require.Len(t, filled, 1)
	assert.Equal(t, domain.StatusFilled, filled[0].Status)
	assert.WithinDuration(t, filledAt, filled[0].UpdatedAt, time.Millisecond, "second fill is rejected")

	n, err := db.CountOpenOrders(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	// Una sola ejecución: el segundo intento no dejó fila.
	buy, ok, err := db.OldestUnconsumedBuy(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, seq, buy.Seq)
	require.NoError(t, db.CloseCycle(ctx, domain.ProfitCycle{SellOrderID: "s", Timestamp: filledAt}, seq))
	_, ok, err = db.OldestUnconsumedBuy(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteStorage_RecordFillWithoutTimestampWritesNothing(t *testing.T) {
	db := newStorage(t)
	ctx := context.Background()

	o := openOrder(2, domain.SideBuy, 54000)
	id, err := db.InsertOrder(ctx, o)
	require.NoError(t, err)

	// Sin timestamp la ejecución no se inserta y la orden debe seguir OPEN.
	_, err = db.RecordFill(ctx, id, fillOf(o, time.Time{}))
	require.ErrorIs(t, err, storage.ErrZeroTime)

	got, ok, err := db.FindOpenOrder(ctx, 2, domain.SideBuy)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id, got.ID)
	_, ok, err = db.OldestUnconsumedBuy(ctx, 2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteStorage_RejectsZeroTimestamps(t *testing.T) {
	db := newStorage(t)
	ctx := context.Background()

	o := openOrder(3, domain.SideBuy, 56000)
	o.UpdatedAt = time.Time{}
	_, err := db.InsertOrder(ctx, o)
	assert.ErrorIs(t, err, storage.ErrZeroTime)

	_, err = db.InsertExecution(ctx, domain.ExecutionRecord{Level: 3, ExchangeOrderID: "b", Side: domain.SideBuy})
	assert.ErrorIs(t, err, storage.ErrZeroTime)

	assert.ErrorIs(t, db.InsertLegacyProfit(ctx, 1.0, time.Time{}), storage.ErrZeroTime)

	n, err := db.CountOpenOrders(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLiteStorage_StaleOrders(t *testing.T) {
	db := newStorage(t)
	ctx := context.Background()

	old := openOrder(1, domain.SideBuy, 52000)
	old.UpdatedAt = time.Now().Add(-48 * time.Hour)
	oldID, err := db.InsertOrder(ctx, old)
	require.NoError(t, err)
	_, err = db.InsertOrder(ctx, openOrder(2, domain.SideBuy, 54000))
	require.NoError(t, err)

	stale, err := db.StaleOrders(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, oldID, stale[0].ID)

	require.NoError(t, db.DeleteOrder(ctx, oldID))
	open, err := db.OpenOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestSQLiteStorage_OrderPlacedAfter(t *testing.T) {
	db := newStorage(t)
	ctx := context.Background()

	buyID, err := db.InsertOrder(ctx, openOrder(3, domain.SideBuy, 56000))
	require.NoError(t, err)
	_, err = db.RecordFill(ctx, buyID, fillOf(openOrder(3, domain.SideBuy, 56000), time.Now()))
	require.NoError(t, err)

	placed, err := db.OrderPlacedAfter(ctx, 4, domain.SideSell, buyID)
	require.NoError(t, err)
	assert.False(t, placed)

	sellID, err := db.InsertOrder(ctx, openOrder(4, domain.SideSell, 58000))
	require.NoError(t, err)
	_, err = db.RecordFill(ctx, sellID, fillOf(openOrder(4, domain.SideSell, 58000), time.Now()))
	require.NoError(t, err)

	placed, err = db.OrderPlacedAfter(ctx, 4, domain.SideSell, buyID)
	require.NoError(t, err)
	assert.True(t, placed, "filled counter-orders count too")

	placed, err = db.OrderPlacedAfter(ctx, 4, domain.SideSell, sellID)
	require.NoError(t, err)
	assert.False(t, placed)
}

func TestSQLiteStorage_OldestUnconsumedBuyIsFIFO(t *testing.T) {
	db := newStorage(t)
	ctx := context.Background()

	first, err := db.InsertExecution(ctx, domain.ExecutionRecord{Level: 4, ExchangeOrderID: "b1", Side: domain.SideBuy, ExecPrice: 100, ExecAmount: 1, ExecutedAt: time.Now()})
	require.NoError(t, err)
	second, err := db.InsertExecution(ctx, domain.ExecutionRecord{Level: 4, ExchangeOrderID: "b2", Side: domain.SideBuy, ExecPrice: 101, ExecAmount: 1, ExecutedAt: time.Now()})
	require.NoError(t, err)
	// Un sell en el mismo nivel nunca es candidato.
	_, err = db.InsertExecution(ctx, domain.ExecutionRecord{Level: 4, ExchangeOrderID: "s1", Side: domain.SideSell, ExecPrice: 110, ExecAmount: 1, ExecutedAt: time.Now()})
	require.NoError(t, err)

	buy, ok, err := db.OldestUnconsumedBuy(ctx, 4)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first, buy.Seq)

	cycle := domain.MatchCycle(buy, domain.ExecutionRecord{ExecPrice: 110, ExecAmount: 1, ExchangeOrderID: "s1"}, time.Now())
	require.NoError(t, db.CloseCycle(ctx, cycle, buy.Seq))

	buy, ok, err = db.OldestUnconsumedBuy(ctx, 4)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, second, buy.Seq)

	_, ok, err = db.OldestUnconsumedBuy(ctx, 5)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteStorage_CloseCycleRejectsConsumedBuy(t *testing.T) {
	db := newStorage(t)
	ctx := context.Background()

	seq, err := db.InsertExecution(ctx, domain.ExecutionRecord{Level: 0, ExchangeOrderID: "b1", Side: domain.SideBuy, ExecPrice: 100, ExecAmount: 1, ExecutedAt: time.Now()})
	require.NoError(t, err)

	cycle := domain.ProfitCycle{BuyPrice: 100, SellPrice: 110, Amount: 1, GrossProfit: 10, NetProfit: 9.8, SellOrderID: "s1", Timestamp: time.Now()}
	require.NoError(t, db.CloseCycle(ctx, cycle, seq))
	require.Error(t, db.CloseCycle(ctx, cycle, seq), "a buy leg closes exactly one cycle")

	cycles, err := db.ProfitCycles(ctx)
	require.NoError(t, err)
	require.Len(t, cycles, 1)
	assert.InDelta(t, 9.8, cycles[0].NetProfit, 1e-9)
}

func TestSQLiteStorage_ProfitReport(t *testing.T) {
	db := newStorage(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, db.InsertLegacyProfit(ctx, 2.0, now.Add(-48*time.Hour)))
	require.NoError(t, db.InsertLegacyProfit(ctx, 2.0, now.Add(-time.Hour)))

	for i, net := range []float64{9.8, -1.0} {
		seq, err := db.InsertExecution(ctx, domain.ExecutionRecord{Level: i, ExchangeOrderID: "b", Side: domain.SideBuy, ExecPrice: 100, ExecAmount: 1, ExecutedAt: time.Now()})
		require.NoError(t, err)
		require.NoError(t, db.CloseCycle(ctx, domain.ProfitCycle{
			GrossProfit: net + 0.2, NetProfit: net, SellOrderID: "s", Timestamp: now.Add(-time.Hour),
		}, seq))
	}
	_, err := db.InsertOrder(ctx, openOrder(5, domain.SideSell, 60000))
	require.NoError(t, err)

	r, err := db.ProfitReport(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)

	assert.InDelta(t, 4.0, r.Gross.TotalProfit, 1e-9)
	assert.Equal(t, 2, r.Gross.TotalTrades)
	assert.InDelta(t, 2.0, r.Gross.Profit24h, 1e-9)
	assert.Equal(t, 1, r.Gross.Trades24h)

	assert.Equal(t, 2, r.Net.TotalTrades)
	assert.Equal(t, 2, r.Net.Trades24h)
	assert.InDelta(t, 8.8, r.Net.TotalNet, 1e-9)
	assert.InDelta(t, 9.2, r.Net.TotalGross, 1e-9)
	assert.InDelta(t, 9.8, r.Net.BestTrade, 1e-9)
	assert.InDelta(t, -1.0, r.Net.WorstTrade, 1e-9)
	assert.InDelta(t, 4.4, r.Net.AvgNet, 1e-9)
	assert.Equal(t, 1, r.OpenOrders)
}

func TestSQLiteStorage_ProfitReportEmpty(t *testing.T) {
	db := newStorage(t)

	r, err := db.ProfitReport(context.Background(), time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, r.Net.TotalTrades)
	assert.Zero(t, r.Gross.TotalProfit)
}

func TestSQLiteStorage_ClosedReturnsErrNotOpen(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = db.CountOpenOrders(context.Background())
	assert.ErrorIs(t, err, storage.ErrNotOpen)
}
