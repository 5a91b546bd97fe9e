package metrics

import (
	"context"
	"time"

	"github.com/Nash0810/failsafe/internal/upstream"
)

// Exporter periodically refreshes the proxy's gauge metrics from live state
type Exporter struct {
	collector *ProxyCollector
	pair      *upstream.Pair
	interval  time.Duration
}

// NewExporter creates a gauge exporter for the upstream pair
func NewExporter(collector *ProxyCollector, pair *upstream.Pair) *Exporter {
	return &Exporter{
		collector: collector,
		pair:      pair,
		interval:  5 * time.Second,
	}
}

// Start begins the export loop
func (e *Exporter) Start(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.export()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.export()
		}
	}
}

// export updates availability and designation gauges
func (e *Exporter) export() {
	now := time.Now()
	active := e.pair.ActivePool()

	for _, pool := range []upstream.Pool{upstream.Blue, upstream.Green} {
		target := e.pair.Get(pool)

		available := 0.0
		if target.Available(now) {
			available = 1
		}
		e.collector.UpstreamAvailable.WithLabelValues(string(pool)).Set(available)

		designated := 0.0
		if pool == active {
			designated = 1
		}
		e.collector.ActivePool.WithLabelValues(string(pool)).Set(designated)
	}
}
