// Package metrics exports refresh and headline KPI metrics to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rewired-gh/eaanalyzer/internal/dashboard"
)

const namespace = "eaanalyzer"

// Metrics holds the collectors on their own registry.
type Metrics struct {
	registry *prometheus.Registry

	RefreshTotal    *prometheus.CounterVec
	RefreshDuration *prometheus.HistogramVec
	StaleResults    prometheus.Counter
	DealsFetched    prometheus.Gauge
	FilteredTrades  prometheus.Gauge
	NetProfit       prometheus.Gauge
	ProfitFactor    prometheus.Gauge
	WinRate         prometheus.Gauge
}

// New registers every collector, plus Go runtime and process collectors,
// on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RefreshTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_total",
			Help:      "Refresh attempts by trigger and result (applied, stale, error).",
		}, []string{"trigger", "result"}),
		RefreshDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Time from trigger to applied or discarded result.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"trigger"}),
		StaleResults: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_results_total",
			Help:      "Results discarded because a newer trigger had already applied.",
		}),
		DealsFetched: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "deals_fetched",
			Help:      "Deals in the last fetched window.",
		}),
		FilteredTrades: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "filtered_trades",
			Help:      "Trades remaining after filters in the current snapshot.",
		}),
		NetProfit: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "net_profit",
			Help:      "Net profit of the current snapshot.",
		}),
		ProfitFactor: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "profit_factor",
			Help:      "Profit factor of the current snapshot (999 when there are no losses).",
		}),
		WinRate: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "win_rate",
			Help:      "Win rate percentage of the current snapshot.",
		}),
	}
}

// ObserveRefresh records one refresh outcome.
func (m *Metrics) ObserveRefresh(trigger dashboard.Trigger, result string, elapsed time.Duration) {
	m.RefreshTotal.WithLabelValues(string(trigger), result).Inc()
	m.RefreshDuration.WithLabelValues(string(trigger)).Observe(elapsed.Seconds())
	if result == dashboard.ResultStale {
		m.StaleResults.Inc()
	}
}

// ObserveView updates the KPI gauges from an applied snapshot.
func (m *Metrics) ObserveView(v dashboard.View) {
	g := v.Snapshot.General
	m.DealsFetched.Set(float64(v.DealsFetched))
	m.FilteredTrades.Set(float64(g.TotalTrades))
	m.NetProfit.Set(g.NetProfit)
	m.ProfitFactor.Set(g.ProfitFactor)
	m.WinRate.Set(g.WinRate)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
