// Package metrics expone la actividad del grid en formato Prometheus.
//
// Series:
//   - gridbot_orders_placed_total{side}
//   - gridbot_orders_skipped_total{reason}
//   - gridbot_orders_filled_total{side}
//   - gridbot_orders_expired_total
//   - gridbot_profit_gross_total / gridbot_profit_net_total (quote asset)
//   - gridbot_profit_cycles_total
//   - gridbot_grid_rebuilds_total
//   - gridbot_open_orders
//   - gridbot_loop_errors_total
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alejandrodnm/gridbot/internal/domain"
)

// Recorder implementa ports.Metrics sobre un registry propio.
type Recorder struct {
	registry *prometheus.Registry

	placed   *prometheus.CounterVec
	skipped  *prometheus.CounterVec
	filled   *prometheus.CounterVec
	expired  prometheus.Counter
	gross    prometheus.Counter
	net      prometheus.Gauge
	cycles   prometheus.Counter
	rebuilds prometheus.Counter
	open     prometheus.Gauge
	errors   prometheus.Counter
}

// NewRecorder crea y registra todas las series.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		placed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridbot_orders_placed_total",
			Help: "Grid orders placed",
		}, []string{"side"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridbot_orders_skipped_total",
			Help: "Placement intents skipped by policy",
		}, []string{"reason"}),
		filled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridbot_orders_filled_total",
			Help: "Grid orders detected as filled",
		}, []string{"side"}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gridbot_orders_expired_total",
			Help: "Stale orders cancelled and removed",
		}),
		gross: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gridbot_profit_gross_total",
			Help: "Gross realized profit of closed cycles, in quote asset",
		}),
		// Net puede bajar (ciclos con pérdida), por eso es gauge acumulado.
		net: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gridbot_profit_net_total",
			Help: "Net realized profit of closed cycles after fees, in quote asset",
		}),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gridbot_profit_cycles_total",
			Help: "Closed buy/sell cycles",
		}),
		rebuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gridbot_grid_rebuilds_total",
			Help: "Full grid (re)initializations",
		}),
		open: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gridbot_open_orders",
			Help: "OPEN records in the ledger",
		}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gridbot_loop_errors_total",
			Help: "Control loop iterations that ended with an error",
		}),
	}
	r.registry.MustRegister(r.placed, r.skipped, r.filled, r.expired, r.gross, r.net,
		r.cycles, r.rebuilds, r.open, r.errors)
	return r
}

// Registry permite registrar collectors adicionales (runtime, proceso).
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler sirve /metrics para este registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) OrderPlaced(side domain.Side) { r.placed.WithLabelValues(string(side)).Inc() }
func (r *Recorder) OrderSkipped(reason string) { r.skipped.WithLabelValues(reason).Inc() }
func (r *Recorder) OrderFilled(side domain.Side) { r.filled.WithLabelValues(string(side)).Inc() }
func (r *Recorder) OrdersExpired(n int) { r.expired.Add(float64(n)) }
func (r *Recorder) GridRebuilt() { r.rebuilds.Inc() }
func (r *Recorder) OpenOrders(n int) { r.open.Set(float64(n)) }
func (r *Recorder) LoopError() { r.errors.Inc() }

// ProfitRealized suma un ciclo cerrado. Un gross negativo no se suma al counter.
func (r *Recorder) ProfitRealized(gross, net float64) {
	if gross > 0 {
		r.gross.Add(gross)
	}
	r.net.Add(net)
	r.cycles.Inc()
}

// Nop descarta todas las métricas.
type Nop struct{}

func (Nop) OrderPlaced(domain.Side) {}
func (Nop) OrderSkipped(string) {}
func (Nop) OrderFilled(domain.Side) {}
func (Nop) ProfitRealized(float64, float64) {}
func (Nop) OrdersExpired(int) {}
func (Nop) GridRebuilt() {}
func (Nop) OpenOrders(int) {}
func (Nop) LoopError() {}
