package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Nash0810/failsafe/internal/accesslog"
	"github.com/Nash0810/failsafe/internal/analyzer"
	"github.com/Nash0810/failsafe/internal/config"
	"github.com/Nash0810/failsafe/internal/logging"
	"github.com/Nash0810/failsafe/internal/metrics"
	"github.com/Nash0810/failsafe/internal/notify"
	"github.com/Nash0810/failsafe/internal/tail"
)

func main() {
	configPath := flag.String("config", os.Getenv("FAILSAFE_CONFIG"), "optional YAML config file")
	flag.Parse()

	logger := logging.NewLogger("watcher")
	logger.Info("starting_log_watcher")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed_to_load_config", "error", err.Error())
		log.Fatal(err)
	}
	if err := cfg.ValidateWatcher(); err != nil {
		logger.Error("invalid_config", "error", err.Error())
		log.Fatal(err)
	}

	wc := cfg.Watcher
	logger.Info("watcher_configured",
		"log_file", wc.AccessLog,
		"window_size", wc.WindowSize,
		"min_window_fill", wc.MinWindowFill,
		"error_rate_threshold_percent", wc.ErrorRateThreshold,
		"failover_cooldown_sec", wc.FailoverCooldownSec,
		"error_cooldown_sec", wc.ErrorCooldownSec,
		"recovery_cooldown_sec", wc.RecoveryCooldownSec)

	collector := metrics.NewWatcherCollector(prometheus.DefaultRegisterer)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	notifier := notify.NewSlackNotifier(wc.WebhookURL, logger)
	dispatcher := notify.NewDispatcher(notifier, 16, logger)
	go dispatcher.Start(ctx)

	engine := analyzer.New(
		analyzer.Config{
			WindowSize:       wc.WindowSize,
			MinWindowFill:    wc.MinWindowFill,
			ThresholdPercent: wc.ErrorRateThreshold,
			Cooldowns: map[analyzer.Kind]time.Duration{
				analyzer.KindFailover:  time.Duration(wc.FailoverCooldownSec) * time.Second,
				analyzer.KindErrorRate: time.Duration(wc.ErrorCooldownSec) * time.Second,
				analyzer.KindRecovery:  time.Duration(wc.RecoveryCooldownSec) * time.Second,
			},
		},
		analyzer.SystemClock(),
		func(alert analyzer.Alert) {
			collector.AlertsTotal.WithLabelValues(string(alert.Kind)).Inc()
			logger.Warn("alert_raised",
				"kind", string(alert.Kind),
				"previous_pool", alert.PreviousPool,
				"current_pool", alert.CurrentPool,
				"rate_percent", alert.RatePercent)
			dispatcher.Enqueue(alert)
		},
	)

	go serveMetrics(ctx, wc.MetricsPort, logger)

	tailer := tail.New(wc.AccessLog, logger, tail.WithPollInterval(wc.PollInterval()))
	err = tailer.Run(ctx, func(line string) {
		rec, perr := accesslog.ParseLine(line)
		if perr != nil {
			// Malformed lines are dropped, counted, never fatal
			collector.ParseErrorsTotal.Inc()
			logger.Debug("dropped_malformed_line", "error", perr.Error())
			return
		}

		collector.RecordsTotal.Inc()
		engine.Process(rec)
		exportState(collector, engine.State())
	})
	if err != nil && err != context.Canceled {
		logger.Error("tailer_stopped", "error", err.Error())
		log.Fatal(err)
	}

	logger.Info("shutdown_complete")
}

// exportState refreshes the watcher gauges after each processed record
func exportState(collector *metrics.WatcherCollector, state analyzer.Snapshot) {
	collector.WindowErrorRate.Set(state.RatePercent)
	collector.WindowFill.Set(float64(state.WindowLen))
	for _, pool := range []string{"blue", "green"} {
		observed := 0.0
		if state.ObservedPool == pool {
			observed = 1
		}
		collector.ObservedPool.WithLabelValues(pool).Set(observed)
	}
}

// serveMetrics exposes /metrics for the watcher process
func serveMetrics(ctx context.Context, port int, logger *logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics_server_starting", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics_server_error", "error", err.Error())
	}
}
