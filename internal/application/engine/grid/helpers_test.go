package grid_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/gridbot/internal/adapters/storage"
	"github.com/alejandrodnm/gridbot/internal/application/engine/grid"
	"github.com/alejandrodnm/gridbot/internal/domain"
	"github.com/alejandrodnm/gridbot/internal/ports"
)

var btcMeta = domain.MarketMeta{
	Symbol:     "BTC/USDT",
	BaseAsset:  "BTC",
	QuoteAsset: "USDT",
	AmountStep: 0.00001,
	PriceTick:  0.01,
	MinAmount:  0.00001,
	MinCost:    5,
}

type submission struct {
	Side   domain.Side
	Amount float64
	Price  float64
	ID     string
}

// fakeGateway simula el exchange. Con live=false no reporta estados de
// órdenes y el engine detecta fills por precio.
type fakeGateway struct {
	meta       domain.MarketMeta
	price      float64
	priceErr   error
	balances   map[string]float64
	balanceErr error
	submitErr  error
	cancelErr  error

	live      bool
	statuses  map[string]domain.OrderStatusReport
	statusErr map[string]error

	nextID    int
	submitted []submission
	cancelled []string
}

func newFakeGateway(price float64) *fakeGateway {
	return &fakeGateway{
		meta:      btcMeta,
		price:     price,
		balances:  map[string]float64{"USDT": 10_000, "BTC": 1},
		statuses:  map[string]domain.OrderStatusReport{},
		statusErr: map[string]error{},
	}
}

func (g *fakeGateway) LoadMarket(context.Context, string) (domain.MarketMeta, error) {
	return g.meta, nil
}

func (g *fakeGateway) LastPrice(context.Context, string) (float64, error) {
	return g.price, g.priceErr
}

func (g *fakeGateway) FreeBalance(_ context.Context, asset string) (float64, error) {
	if g.balanceErr != nil {
		return 0, g.balanceErr
	}
	return g.balances[asset], nil
}

func (g *fakeGateway) SubmitLimitOrder(_ context.Context, _ string, side domain.Side, amount, price float64) (domain.SubmittedOrder, error) {
	if g.submitErr != nil {
		return domain.SubmittedOrder{}, g.submitErr
	}
	g.nextID++
	id := fmt.Sprintf("%d", g.nextID)
	g.submitted = append(g.submitted, submission{Side: side, Amount: amount, Price: price, ID: id})
	return domain.SubmittedOrder{ExchangeOrderID: id, Status: domain.ExchangeStatusNew}, nil
}

func (g *fakeGateway) OrderStatus(_ context.Context, _ string, id string) (domain.OrderStatusReport, error) {
	if !g.live {
		return domain.OrderStatusReport{}, ports.ErrStatusUnsupported
	}
	if err := g.statusErr[id]; err != nil {
		return domain.OrderStatusReport{}, err
	}
	if r, ok := g.statuses[id]; ok {
		return r, nil
	}
	return domain.OrderStatusReport{Status: domain.ExchangeStatusNew}, nil
}

func (g *fakeGateway) CancelOrder(_ context.Context, _ string, id string) error {
	g.cancelled = append(g.cancelled, id)
	return g.cancelErr
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []string
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, msg string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	return n.err
}

type recordingMetrics struct {
	placed   int
	skipped  map[string]int
	filled   int
	cycles   int
	expired  int
	rebuilds int
	open     int
	errors   int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{skipped: map[string]int{}}
}

func (m *recordingMetrics) OrderPlaced(domain.Side) { m.placed++ }
func (m *recordingMetrics) OrderSkipped(reason string) { m.skipped[reason]++ }
func (m *recordingMetrics) OrderFilled(domain.Side) { m.filled++ }
func (m *recordingMetrics) ProfitRealized(float64, float64) { m.cycles++ }
func (m *recordingMetrics) OrdersExpired(n int) { m.expired += n }
func (m *recordingMetrics) GridRebuilt() { m.rebuilds++ }
func (m *recordingMetrics) OpenOrders(n int) { m.open = n }
func (m *recordingMetrics) LoopError() { m.errors++ }

type harness struct {
	engine   *grid.Engine
	state    *grid.EngineState
	gateway  *fakeGateway
	ledger   *storage.SQLiteStorage
	notifier *recordingNotifier
	metrics  *recordingMetrics
}

func defaultConfig() grid.Config {
	return grid.Config{
		Symbol:             "BTC/USDT",
		LowerPrice:         50000,
		UpperPrice:         70000,
		Levels:             10,
		InvestmentPerLevel: 15,
	}
}

func newHarness(t *testing.T, gw *fakeGateway, cfg grid.Config) *harness {
	t.Helper()
	ledger, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })

	n := &recordingNotifier{}
	m := newRecordingMetrics()
	eng := grid.New(gw, ledger, n, m, cfg)
	state, err := eng.NewState(context.Background())
	require.NoError(t, err)
	return &harness{engine: eng, state: state, gateway: gw, ledger: ledger, notifier: n, metrics: m}
}

// seedOrder escribe una orden directamente en el ledger.
func (h *harness) seedOrder(t *testing.T, level int, side domain.Side, price float64, status domain.OrderStatus, exchangeID string) int64 {
	t.Helper()
	id, err := h.ledger.InsertOrder(context.Background(), domain.OrderRecord{
		Level:           level,
		ExchangeOrderID: exchangeID,
		Price:           price,
		Side:            side,
		Amount:          0.00025,
		Status:          status,
		UpdatedAt:       time.Now(),
	})
	require.NoError(t, err)
	return id
}

func (h *harness) open(t *testing.T) []domain.OrderRecord {
	t.Helper()
	open, err := h.ledger.OpenOrders(context.Background())
	require.NoError(t, err)
	return open
}

type levelKey struct {
	level int
	side  domain.Side
}

func openByLevel(orders []domain.OrderRecord) map[levelKey]int {
	m := map[levelKey]int{}
	for _, o := range orders {
		m[levelKey{o.Level, o.Side}]++
	}
	return m
}

// requireLevelInvariant: como mucho una orden OPEN por (level, side).
func requireLevelInvariant(t *testing.T, orders []domain.OrderRecord) {
	t.Helper()
	for k, n := range openByLevel(orders) {
		require.LessOrEqual(t, n, 1, "level %d side %s has %d open orders", k.level, k.side, n)
	}
}

var errBoom = errors.New("boom")
