package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"panel_exporter/internal/config"
	"panel_exporter/internal/logging"
	"panel_exporter/internal/publish"
	"panel_exporter/internal/service"
	"panel_exporter/remote"
	"panel_exporter/telemetry"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "Path to configuration file")
	testConn := flag.Bool("test", false, "Test the gateway connection and exit")
	once := flag.Bool("once", false, "Run a single export pass and exit (default mode)")
	watch := flag.Bool("watch", false, "Run continuous live diagnostics")
	output := flag.String("output", "", "Override the export output base path")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if *output != "" {
		cfg.Export.Output = *output
	}
	if *watch {
		cfg.Live.Enabled = true
	}

	logger, cleanup, err := logging.Setup(cfg.Logging)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to setup logger")
	}
	defer cleanup()
	log.Logger = logger

	collector, err := newTelemetryCollector(cfg.Telemetry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "telemetry disabled: %v\n", err)
		collector = telemetry.Noop()
	}
	if cfg.Telemetry.Enabled && cfg.Telemetry.Listen != "" {
		go serveMetrics(cfg.Telemetry.Listen)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	svc, err := service.New(cfg, logger, remote.NewTCPClientFactory(), collector)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create service")
	}
	defer svc.Close()

	switch {
	case *testConn:
		count, err := svc.TestConnection(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "connection test failed: %v\n", err)
			os.Exit(1)
		}
		if count == 0 {
			fmt.Println("Gateway reachable, no devices paired.")
			return
		}
		fmt.Printf("Gateway reachable, %d device(s) paired.\n", count)

	case cfg.Live.Enabled && !*once:
		publisher, err := publish.NewMQTT(cfg.Live.MQTT, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect mqtt broker")
		}
		defer publisher.Close()
		if err := svc.RunLive(ctx, publisher); err != nil && !errors.Is(err, context.Canceled) {
			logger.Fatal().Err(err).Msg("live diagnostics stopped with error")
		}

	default:
		if err := svc.ExportOnce(ctx); err != nil {
			logger.Fatal().Err(err).Msg("export failed")
		}
	}
}

func newTelemetryCollector(cfg config.TelemetryConfig) (telemetry.Collector, error) {
	if !cfg.Enabled {
		return telemetry.Noop(), nil
	}
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case "", "prometheus":
		collector, err := telemetry.NewPrometheusCollector(nil)
		if err != nil {
			return nil, err
		}
		return collector, nil
	default:
		return telemetry.Noop(), fmt.Errorf("unsupported telemetry provider %q", cfg.Provider)
	}
}

func serveMetrics(listen string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(listen, mux); err != nil {
		log.Warn().Err(err).Str("listen", listen).Msg("metrics listener stopped")
	}
}
