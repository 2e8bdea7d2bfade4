package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/grafana/loki-client-go/loki"
	"github.com/prometheus/common/model"
	"github.com/rs/zerolog"

	"github.com/dronm/fedds/config"
)

const appName = "fedexec"

// Setup builds the process logger for cfg. Every entry carries the backend
// provider and, for federated handles, the federation name. The returned
// cleanup flushes the Loki client when one is configured.
func Setup(cfg *config.Config) (zerolog.Logger, func(), error) {
	return setup(cfg, os.Stderr)
}

func setup(cfg *config.Config, out io.Writer) (zerolog.Logger, func(), error) {
	level, err := parseLevel(cfg.Logging.Level)
	if err != nil {
		return zerolog.Logger{}, nil, err
	}

	switch strings.ToLower(cfg.Logging.Format) {
	case "", "json":
	case "text":
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	default:
		return zerolog.Logger{}, nil, fmt.Errorf("unknown log format %q", cfg.Logging.Format)
	}

	var (
		w       io.Writer = out
		cleanup           = func() {}
	)
	if cfg.Logging.Loki.Enabled {
		lw, stop, err := newLokiWriter(cfg.Logging.Loki, baseLabels(cfg))
		if err != nil {
			return zerolog.Logger{}, nil, err
		}
		w = zerolog.MultiLevelWriter(out, lw)
		cleanup = stop
	}

	ctx := zerolog.New(w).Level(level).With().Timestamp().Str("provider", cfg.Database.Provider)
	if cfg.Federation.Name != "" {
		ctx = ctx.Str("federation", cfg.Federation.Name)
	}
	return ctx.Logger(), cleanup, nil
}

func parseLevel(s string) (zerolog.Level, error) {
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("parse log level: %w", err)
	}
	return level, nil
}

// baseLabels are the stream labels every Loki entry gets unless the
// configuration overrides them.
func baseLabels(cfg *config.Config) model.LabelSet {
	labels := model.LabelSet{
		"app":      appName,
		"provider": model.LabelValue(cfg.Database.Provider),
	}
	if cfg.Federation.Name != "" {
		labels["federation"] = model.LabelValue(cfg.Federation.Name)
	}
	for k, v := range cfg.Logging.Loki.Labels {
		labels[model.LabelName(k)] = model.LabelValue(v)
	}
	return labels
}

func newLokiWriter(cfg config.LokiConfig, labels model.LabelSet) (*lokiWriter, func(), error) {
	if cfg.URL == "" {
		return nil, nil, fmt.Errorf("loki url is required")
	}
	lokiCfg, err := loki.NewDefaultConfig(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("prepare loki config: %w", err)
	}
	client, err := loki.New(lokiCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create loki client: %w", err)
	}

	lw := &lokiWriter{labels: labels, send: client.Handle}
	return lw, func() { client.Stop() }, nil
}

// lokiWriter ships entries to Loki, one stream per level.
type lokiWriter struct {
	labels model.LabelSet
	send   func(model.LabelSet, time.Time, string) error
}

func (l *lokiWriter) Write(p []byte) (int, error) {
	return l.WriteLevel(zerolog.NoLevel, p)
}

func (l *lokiWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	entry := strings.TrimSpace(string(p))
	if entry == "" {
		return len(p), nil
	}
	labels := l.labels
	if level != zerolog.NoLevel {
		labels = labels.Clone()
		labels["level"] = model.LabelValue(level.String())
	}
	return len(p), l.send(labels, time.Now(), entry)
}
