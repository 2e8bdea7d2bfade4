package telemetry

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fedds"

// Collector captures events emitted while commands run.
//
// Hooks are called inline on every command, so implementations must be
// cheap.
type Collector interface {
	IncConnection(outcome string)
	IncRetry(operation string)
	ObserveCommand(operation, outcome string, elapsed time.Duration)
	IncFanoutMember(federation string)
}

// Outcome labels.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
	OutcomeSkip  = "skipped"
)

type noopCollector struct{}

// Noop returns a collector that discards all metrics.
func Noop() Collector {
	return noopCollector{}
}

func (noopCollector) IncConnection(string)                          {}
func (noopCollector) IncRetry(string)                               {}
func (noopCollector) ObserveCommand(string, string, time.Duration) {}
func (noopCollector) IncFanoutMember(string)                        {}

// PrometheusCollector exposes the events as Prometheus metrics.
type PrometheusCollector struct {
	connections   *prometheus.CounterVec
	retries       *prometheus.CounterVec
	commands      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	fanoutMembers *prometheus.CounterVec
}

// NewPrometheusCollector registers the metrics with reg, reusing metrics
// that are already registered there.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	connections, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "connections_opened_total",
		Help:      "Connection open attempts by final outcome, retries excluded.",
	}, []string{"outcome"}))
	if err != nil {
		return nil, err
	}
	retries, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "retries_total",
		Help:      "Attempts repeated after a transient failure, per operation.",
	}, []string{"operation"}))
	if err != nil {
		return nil, err
	}
	commands, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "commands_total",
		Help:      "Executed commands by operation and outcome.",
	}, []string{"operation", "outcome"}))
	if err != nil {
		return nil, err
	}
	duration, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "command_duration_seconds",
		Help:      "Command latency including retries.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"}))
	if err != nil {
		return nil, err
	}
	fanout, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fanout_members_total",
		Help:      "Federation members visited by fan-out commands.",
	}, []string{"federation"}))
	if err != nil {
		return nil, err
	}

	return &PrometheusCollector{
		connections:   connections,
		retries:       retries,
		commands:      commands,
		duration:      duration,
		fanoutMembers: fanout,
	}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, err
	}
	return c, nil
}

func (p *PrometheusCollector) IncConnection(outcome string) {
	if p == nil {
		return
	}
	p.connections.WithLabelValues(outcome).Inc()
}

func (p *PrometheusCollector) IncRetry(operation string) {
	if p == nil {
		return
	}
	p.retries.WithLabelValues(operation).Inc()
}

// ObserveCommand counts the command and records its latency.
func (p *PrometheusCollector) ObserveCommand(operation, outcome string, elapsed time.Duration) {
	if p == nil {
		return
	}
	p.commands.WithLabelValues(operation, outcome).Inc()
	p.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (p *PrometheusCollector) IncFanoutMember(federation string) {
	if p == nil {
		return
	}
	p.fanoutMembers.WithLabelValues(federation).Inc()
}
