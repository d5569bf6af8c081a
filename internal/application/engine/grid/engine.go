package grid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/alejandrodnm/gridbot/internal/domain"
	"github.com/alejandrodnm/gridbot/internal/ports"
)

const (
	DefaultPollInterval = 10 * time.Second
	DefaultErrorBackoff = 5 * time.Second
	DefaultExpiryEvery  = 10 * time.Minute
	DefaultStaleAfter   = 24 * time.Hour
	DefaultStopFile     = "STOP_GRID"

	// initProximity: niveles a menos de 0.2% del precio actual no se siembran.
	initProximity = 0.002
	notifyTimeout = 10 * time.Second
)

// ErrOpenOrders is returned when recentering is attempted while the ledger
// still holds OPEN orders.
var ErrOpenOrders = errors.New("grid: open orders present")

// Config holds configuration for the grid engine.
type Config struct {
	Symbol             string
	LowerPrice         float64
	UpperPrice         float64
	Levels             int
	InvestmentPerLevel float64 // quote asset per level
	StaleAfter         time.Duration
	PollInterval       time.Duration
	ErrorBackoff       time.Duration
	ExpiryEvery        time.Duration
	StopFile           string
}

// EngineState is owned by the control loop and passed by pointer into every
// component call.
type EngineState struct {
	Grid            domain.GridConfig
	Market          domain.MarketMeta
	Initialized     bool
	LastExpiryCheck time.Time
	Iteration       int
}

// TickResult summarizes one control loop iteration.
type TickResult struct {
	Expired   int
	Rebuilt   bool
	Reconcile ReconcileResult
	OpenCount int
}

// Engine runs a single-symbol spot grid.
type Engine struct {
	gateway  ports.OrderGateway
	ledger   ports.Ledger
	notifier ports.Notifier
	metrics  ports.Metrics
	cfg      Config
	now      func() time.Time
}

// New creates a grid engine. notifier and metrics may be nil.
func New(gateway ports.OrderGateway, ledger ports.Ledger, notifier ports.Notifier, metrics ports.Metrics, cfg Config) *Engine {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = DefaultErrorBackoff
	}
	if cfg.ExpiryEvery <= 0 {
		cfg.ExpiryEvery = DefaultExpiryEvery
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Engine{
		gateway:  gateway,
		ledger:   ledger,
		notifier: notifier,
		metrics:  metrics,
		cfg:      cfg,
		now:      time.Now,
	}
}

// NewState builds the geometry from the configured bounds and loads the
// market rules from the gateway.
func (e *Engine) NewState(ctx context.Context) (*EngineState, error) {
	g, err := domain.NewGridConfig(e.cfg.LowerPrice, e.cfg.UpperPrice, e.cfg.Levels)
	if err != nil {
		return nil, fmt.Errorf("grid.NewState: %w", err)
	}
	meta, err := e.gateway.LoadMarket(ctx, e.cfg.Symbol)
	if err != nil {
		return nil, fmt.Errorf("grid.NewState: load market: %w", err)
	}
	slog.Info("grid: market loaded",
		"symbol", meta.Symbol,
		"amount_step", meta.AmountStep,
		"price_tick", meta.PriceTick,
		"min_amount", meta.MinAmount,
		"min_cost", meta.MinCost,
	)
	return &EngineState{Grid: g, Market: meta}, nil
}

// Recenter moves the grid bounds around anchor. Rejected with ErrOpenOrders
// while any OPEN record exists.
func (e *Engine) Recenter(ctx context.Context, state *EngineState, anchor float64) error {
	open, err := e.ledger.CountOpenOrders(ctx)
	if err != nil {
		return fmt.Errorf("grid.Recenter: %w", err)
	}
	if open > 0 {
		return fmt.Errorf("%w: %d", ErrOpenOrders, open)
	}
	state.Grid = state.Grid.Recenter(anchor)
	slog.Info("grid: recentered",
		"anchor", anchor,
		"lower", fmt.Sprintf("%.2f", state.Grid.Lower),
		"upper", fmt.Sprintf("%.2f", state.Grid.Upper),
		"step", fmt.Sprintf("%.2f", state.Grid.Step),
	)
	return nil
}

// Initialize seeds the grid when the ledger holds no OPEN orders: recenter
// around the last price, then a BUY at every level below it, skipping levels
// within 0.2% of the price. With OPEN orders present (a restart) it keeps the
// current bounds and leaves missing counter-orders to Recover.
func (e *Engine) Initialize(ctx context.Context, state *EngineState) (int, error) {
	open, err := e.ledger.CountOpenOrders(ctx)
	if err != nil {
		return 0, fmt.Errorf("grid.Initialize: count open: %w", err)
	}
	if open > 0 {
		slog.Info("grid: restarting with existing orders", "open", open)
		e.notify(ctx, "Restarting with %d existing orders...", open)
		state.Initialized = true
		return 0, nil
	}

	price, err := e.gateway.LastPrice(ctx, e.cfg.Symbol)
	if err != nil {
		return 0, fmt.Errorf("grid.Initialize: last price: %w", err)
	}
	if err := e.Recenter(ctx, state, price); err != nil {
		return 0, fmt.Errorf("grid.Initialize: %w", err)
	}
	e.metrics.GridRebuilt()
	e.notify(ctx, "🤖 GRID STARTED\nCurrent price: %s\nRange: %.2f - %.2f (%d levels, step %.2f)",
		state.Market.FormatPrice(price), state.Grid.Lower, state.Grid.Upper, state.Grid.LevelCount, state.Grid.Step)

	placed := e.seedBelow(ctx, state, price, nil)
	state.Initialized = true
	slog.Info("grid: initialized", "price", price, "placed", placed)
	return placed, nil
}

// Rebuild re-seeds the grid after an expiry pass. With no OPEN orders left
// it is a full Initialize. Otherwise the bounds are kept, since the surviving
// records are indexed against them, and every free level below the last
// price gets its BUY back.
func (e *Engine) Rebuild(ctx context.Context, state *EngineState) (int, error) {
	open, err := e.ledger.OpenOrders(ctx)
	if err != nil {
		return 0, fmt.Errorf("grid.Rebuild: %w", err)
	}
	if len(open) == 0 {
		return e.Initialize(ctx, state)
	}

	price, err := e.gateway.LastPrice(ctx, e.cfg.Symbol)
	if err != nil {
		return 0, fmt.Errorf("grid.Rebuild: last price: %w", err)
	}
	occupied := make(map[int]bool, len(open))
	for _, o := range open {
		occupied[o.Level] = true
	}
	e.metrics.GridRebuilt()

	placed := e.seedBelow(ctx, state, price, occupied)
	state.Initialized = true
	slog.Info("grid: rebuilt after expiry", "price", price, "kept", len(open), "placed", placed)
	e.notify(ctx, "🔁 GRID REBUILT\nCurrent price: %s\nKept %d open orders, re-seeded %d levels",
		state.Market.FormatPrice(price), len(open), placed)
	return placed, nil
}

// seedBelow coloca un BUY en cada nivel por debajo de price, salvo los que
// están a menos de initProximity y los ocupados.
func (e *Engine) seedBelow(ctx context.Context, state *EngineState, price float64, occupied map[int]bool) int {
	placed := 0
	for _, lvl := range state.Grid.Levels() {
		if lvl.Price >= price || occupied[lvl.Index] {
			continue
		}
		if math.Abs(lvl.Price-price)/price < initProximity {
			continue
		}
		if r := e.Place(ctx, state, lvl.Price, domain.SideBuy, lvl.Index); r.Outcome == OutcomePlaced {
			placed++
		}
	}
	return placed
}

// Run drives the control loop until ctx is cancelled or the stop file
// appears. Only a failure to build the initial state is returned.
func (e *Engine) Run(ctx context.Context) error {
	state, err := e.NewState(ctx)
	if err != nil {
		return err
	}

	if _, err := e.Initialize(ctx, state); err != nil {
		// Sin órdenes abiertas, el primer reconcile vuelve a inicializar.
		slog.Error("grid: initialization failed", "err", err)
		e.notify(ctx, "Grid initialization failed: %v", err)
	}
	e.Recover(ctx, state)

	slog.Info("grid: monitoring", "symbol", e.cfg.Symbol, "poll", e.cfg.PollInterval)
	e.notify(ctx, "Monitoring the grid...")

	for {
		if e.stopRequested() {
			slog.Info("grid: stop file detected, shutting down", "file", e.cfg.StopFile, "iterations", state.Iteration)
			os.Remove(e.cfg.StopFile)
			return nil
		}

		wait := e.cfg.PollInterval
		res, err := e.RunOnce(ctx, state)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			e.metrics.LoopError()
			slog.Error("grid: iteration failed", "iteration", state.Iteration, "err", err)
			e.notify(ctx, "Error in main loop: %v", err)
			wait = e.cfg.ErrorBackoff
		} else {
			slog.Debug("grid: tick",
				"iteration", state.Iteration,
				"open", res.OpenCount,
				"filled", res.Reconcile.Filled,
				"expired", res.Expired,
				"rebuilt", res.Rebuilt,
			)
		}

		select {
		case <-ctx.Done():
			slog.Info("grid: stopped (signal)", "iterations", state.Iteration)
			return nil
		case <-time.After(wait):
		}
	}
}

// RunOnce runs one iteration: the expiration check when due (with a single
// rebuild if anything expired) or otherwise fill reconciliation.
func (e *Engine) RunOnce(ctx context.Context, state *EngineState) (TickResult, error) {
	state.Iteration++
	var res TickResult

	now := e.now()
	if now.Sub(state.LastExpiryCheck) >= e.cfg.ExpiryEvery {
		state.LastExpiryCheck = now
		n, err := e.ExpireStale(ctx, state)
		if err != nil {
			return res, err
		}
		res.Expired = n
		if n > 0 {
			res.Rebuilt = true
			if _, err := e.Rebuild(ctx, state); err != nil {
				return res, fmt.Errorf("grid.RunOnce: %w", err)
			}
			return res, e.recordOpen(ctx, &res)
		}
	}

	rr, err := e.Reconcile(ctx, state)
	res.Reconcile = rr
	if err != nil {
		return res, err
	}
	return res, e.recordOpen(ctx, &res)
}

func (e *Engine) recordOpen(ctx context.Context, res *TickResult) error {
	n, err := e.ledger.CountOpenOrders(ctx)
	if err != nil {
		return fmt.Errorf("grid: count open: %w", err)
	}
	res.OpenCount = n
	e.metrics.OpenOrders(n)
	return nil
}

func (e *Engine) stopRequested() bool {
	if e.cfg.StopFile == "" {
		return false
	}
	_, err := os.Stat(e.cfg.StopFile)
	return err == nil
}

// notify envía el evento al operador. Un fallo de entrega solo se loguea.
func (e *Engine) notify(ctx context.Context, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := e.notifier.Notify(nctx, msg); err != nil {
		slog.Warn("grid: notification failed", "err", err)
	}
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string) error { return nil }

type nopMetrics struct{}

func (nopMetrics) OrderPlaced(domain.Side) {}
func (nopMetrics) OrderSkipped(string) {}
func (nopMetrics) OrderFilled(domain.Side) {}
func (nopMetrics) ProfitRealized(float64, float64) {}
func (nopMetrics) OrdersExpired(int) {}
func (nopMetrics) GridRebuilt() {}
func (nopMetrics) OpenOrders(int) {}
func (nopMetrics) LoopError() {}
