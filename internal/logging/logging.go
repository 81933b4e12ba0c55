package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/grafana/loki-client-go/loki"
	"github.com/prometheus/common/model"
	"github.com/rs/zerolog"

	"panel_exporter/internal/config"
)

// Setup builds the process logger from configuration. It writes to stdout in
// the configured format and, when Loki shipping is enabled, mirrors entries
// at or above the Loki level floor to the push endpoint. The returned cleanup
// flushes pending Loki batches and must be called on shutdown.
func Setup(cfg config.LoggingConfig) (zerolog.Logger, func(), error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return zerolog.Logger{}, nil, err
	}
	stdout, err := consoleWriter(cfg.Format)
	if err != nil {
		return zerolog.Logger{}, nil, err
	}

	writers := []io.Writer{stdout}
	cleanup := func() {}

	if cfg.Loki.Enabled {
		shipper, closer, err := newLokiWriter(cfg.Loki)
		if err != nil {
			return zerolog.Logger{}, nil, err
		}
		writers = append(writers, shipper)
		cleanup = closer
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().Timestamp().Logger().Level(level)
	return logger, cleanup, nil
}

// parseLevel maps the configured level name to a zerolog level. An empty
// name means info.
func parseLevel(name string) (zerolog.Level, error) {
	if name == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(name))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("parse log level: %w", err)
	}
	return level, nil
}

// consoleWriter selects the stdout encoding. "json" (and the empty default)
// keep zerolog's native stream, "text" renders for a terminal.
func consoleWriter(format string) (io.Writer, error) {
	switch strings.ToLower(format) {
	case "", "json":
		return os.Stdout, nil
	case "text":
		return zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}, nil
	default:
		return nil, fmt.Errorf("unsupported log format %q", format)
	}
}

func newLokiWriter(cfg config.LokiConfig) (io.Writer, func(), error) {
	if cfg.URL == "" {
		return nil, nil, fmt.Errorf("loki url is required")
	}
	floor, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("loki level: %w", err)
	}
	lokiCfg, err := loki.NewDefaultConfig(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("prepare loki config: %w", err)
	}
	client, err := loki.New(lokiCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create loki client: %w", err)
	}

	writer := &lokiWriter{client: client, labels: lokiLabels(cfg), minLevel: floor}
	return writer, client.Stop, nil
}

// lokiLabels builds the stream label set: the app name and host are always
// present, configured labels override them.
func lokiLabels(cfg config.LokiConfig) model.LabelSet {
	labels := model.LabelSet{"app": "panel-exporter"}
	if host, err := os.Hostname(); err == nil && host != "" {
		labels["host"] = model.LabelValue(host)
	}
	for k, v := range cfg.Labels {
		labels[model.LabelName(k)] = model.LabelValue(v)
	}
	return labels
}

type lokiWriter struct {
	client   *loki.Client
	labels   model.LabelSet
	minLevel zerolog.Level
}

func (l *lokiWriter) Write(p []byte) (int, error) {
	entry := strings.TrimSpace(string(p))
	if entry == "" {
		return len(p), nil
	}
	if entryLevel(p) < l.minLevel {
		return len(p), nil
	}
	err := l.client.Handle(l.labels, time.Now(), entry)
	return len(p), err
}

// entryLevel extracts the level field from an encoded zerolog entry. Entries
// without a parseable level count as info so they are never dropped by the
// default floor.
func entryLevel(p []byte) zerolog.Level {
	var fields struct {
		Level string `json:"level"`
	}
	if err := json.Unmarshal(p, &fields); err != nil || fields.Level == "" {
		return zerolog.InfoLevel
	}
	level, err := zerolog.ParseLevel(fields.Level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
