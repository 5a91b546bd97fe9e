package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Nash0810/failsafe/internal/accesslog"
	"github.com/Nash0810/failsafe/internal/config"
	"github.com/Nash0810/failsafe/internal/logging"
	"github.com/Nash0810/failsafe/internal/metrics"
	"github.com/Nash0810/failsafe/internal/proxy"
	"github.com/Nash0810/failsafe/internal/upstream"
)

func main() {
	configPath := flag.String("config", os.Getenv("FAILSAFE_CONFIG"), "optional YAML config file")
	flag.Parse()

	logger := logging.NewLogger("failsafe")
	logger.Info("starting_proxy")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed_to_load_config", "error", err.Error())
		log.Fatal(err)
	}
	if err := cfg.ValidateProxy(); err != nil {
		logger.Error("invalid_config", "error", err.Error())
		log.Fatal(err)
	}

	blueURL, err := url.Parse(cfg.Pools.Blue)
	if err != nil {
		log.Fatal(err)
	}
	greenURL, err := url.Parse(cfg.Pools.Green)
	if err != nil {
		log.Fatal(err)
	}

	pair, err := upstream.NewPair(
		upstream.NewTarget(upstream.Blue, blueURL, cfg.Proxy.FailureThreshold, cfg.Proxy.PenaltyWindow()),
		upstream.NewTarget(upstream.Green, greenURL, cfg.Proxy.FailureThreshold, cfg.Proxy.PenaltyWindow()),
		upstream.Pool(cfg.Pools.Active),
	)
	if err != nil {
		logger.Error("failed_to_build_pair", "error", err.Error())
		log.Fatal(err)
	}
	logger.Info("pools_configured",
		"active", cfg.Pools.Active,
		"blue", cfg.Pools.Blue,
		"green", cfg.Pools.Green)

	logWriter, err := accesslog.OpenWriter(cfg.Proxy.AccessLog)
	if err != nil {
		logger.Error("failed_to_open_access_log", "error", err.Error())
		log.Fatal(err)
	}
	defer logWriter.Close()

	collector := metrics.NewProxyCollector(prometheus.DefaultRegisterer)
	router := proxy.NewRouter(pair, cfg.Proxy, logWriter, collector, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	exporter := metrics.NewExporter(collector, pair)
	go exporter.Start(ctx)

	mux := http.NewServeMux()
	mux.Handle("/", router)
	if cfg.Proxy.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
	}
	mux.HandleFunc("/lb-health", proxy.HealthHandler(pair))
	mux.HandleFunc("/admin/switch", proxy.SwitchHandler(pair, collector, logger))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Proxy.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("server_starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server_error", "error", err.Error())
			log.Fatal(err)
		}
	}()

	<-sigChan
	logger.Info("shutdown_signal_received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Proxy.ShutdownTimeoutSec)*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown_error", "error", err.Error())
	}

	cancel()
	logger.Info("shutdown_complete")
}
