package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ProxyCollector holds the router's Prometheus metrics
type ProxyCollector struct {
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	RetriesTotal      *prometheus.CounterVec
	BothPoolsFailed   prometheus.Counter
	PoolSwitchesTotal prometheus.Counter
	UpstreamAvailable *prometheus.GaugeVec
	ActivePool        *prometheus.GaugeVec
}

// NewProxyCollector creates and registers the proxy metrics
func NewProxyCollector(reg prometheus.Registerer) *ProxyCollector {
	factory := promauto.With(reg)

	return &ProxyCollector{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "failsafe_requests_total",
				Help: "Total number of proxied requests",
			},
			[]string{"pool", "method", "status"},
		),

		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "failsafe_request_duration_seconds",
				Help:    "Total request duration including retries",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"pool"},
		),

		RetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "failsafe_retries_total",
				Help: "Total number of standby retries",
			},
			[]string{"reason"},
		),

		BothPoolsFailed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "failsafe_both_pools_failed_total",
				Help: "Requests that failed on both upstreams",
			},
		),

		PoolSwitchesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "failsafe_pool_switches_total",
				Help: "Explicit active-pool switches via the admin endpoint",
			},
		),

		UpstreamAvailable: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "failsafe_upstream_available",
				Help: "Upstream availability (1=eligible, 0=penalized)",
			},
			[]string{"pool"},
		),

		ActivePool: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "failsafe_active_pool",
				Help: "Which pool is designated primary (1 on the active pool)",
			},
			[]string{"pool"},
		),
	}
}

// WatcherCollector holds the log watcher's Prometheus metrics
type WatcherCollector struct {
	RecordsTotal     prometheus.Counter
	ParseErrorsTotal prometheus.Counter
	AlertsTotal      *prometheus.CounterVec
	WindowErrorRate  prometheus.Gauge
	WindowFill       prometheus.Gauge
	ObservedPool     *prometheus.GaugeVec
}

// NewWatcherCollector creates and registers the watcher metrics
func NewWatcherCollector(reg prometheus.Registerer) *WatcherCollector {
	factory := promauto.With(reg)

	return &WatcherCollector{
		RecordsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "failsafe_watcher_records_total",
				Help: "Access log records processed",
			},
		),

		ParseErrorsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "failsafe_watcher_parse_errors_total",
				Help: "Malformed access log lines dropped",
			},
		),

		AlertsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "failsafe_watcher_alerts_total",
				Help: "Alerts emitted, by kind",
			},
			[]string{"kind"},
		),

		WindowErrorRate: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "failsafe_watcher_window_error_rate_percent",
				Help: "Current sliding window error rate",
			},
		),

		WindowFill: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "failsafe_watcher_window_fill",
				Help: "Number of outcomes currently in the sliding window",
			},
		),

		ObservedPool: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "failsafe_watcher_observed_pool",
				Help: "Pool observed serving traffic (1 on the observed pool)",
			},
			[]string{"pool"},
		),
	}
}
