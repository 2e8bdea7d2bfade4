package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dronm/fedds"
	"github.com/dronm/fedds/config"
	"github.com/dronm/fedds/internal/logging"
	"github.com/dronm/fedds/telemetry"
)

type request struct {
	exec    string
	scalar  string
	query   string
	metrics bool
}

func main() {
	cfgPath := flag.String("config", "fedds.yaml", "Path to configuration file")
	execSQL := flag.String("exec", "", "Run a statement that returns no rows and print the rows affected")
	scalarSQL := flag.String("scalar", "", "Run a statement and print the first column of the first row")
	querySQL := flag.String("query", "", "Run a statement and print every row")
	metrics := flag.Bool("metrics", false, "Print Prometheus metrics after the run (implied by telemetry.enabled)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to setup logger")
	}
	log.Logger = logger

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	req := request{exec: *execSQL, scalar: *scalarSQL, query: *querySQL, metrics: *metrics}
	err = run(ctx, cfg, logger, req, os.Stdout)
	cancel()
	cleanup()
	if err != nil {
		logger.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger, req request, out io.Writer) error {
	cmd, mode, err := req.command()
	if err != nil {
		return err
	}

	printMetrics := cfg.Telemetry.Enabled || req.metrics
	reg := prometheus.NewRegistry()
	collector := telemetry.Noop()
	if printMetrics {
		pc, err := telemetry.NewPrometheusCollector(reg)
		if err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
		collector = pc
	}

	prov, err := newProvider(cfg.Database)
	if err != nil {
		return err
	}
	defer prov.Close()

	target, err := cfg.FederationTarget()
	if err != nil {
		return err
	}
	policy, err := fedds.NewRetryPolicy(cfg.RetryConfig())
	if err != nil {
		return err
	}

	db, err := fedds.New(prov,
		fedds.WithFederation(target),
		fedds.WithRetryPolicy(policy.ForBackend(prov)),
		fedds.WithLogger(logger),
		fedds.WithCollector(collector),
	)
	if err != nil {
		return err
	}

	switch mode {
	case "exec":
		n, err := db.Exec(ctx, cmd)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d rows affected\n", n)
	case "scalar":
		v, err := db.Scalar(ctx, cmd)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, formatValue(v))
	case "query":
		rows, err := db.Query(ctx, cmd)
		if err != nil {
			return err
		}
		err = writeRows(out, rows)
		if cerr := rows.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
	}

	if printMetrics {
		return writeMetrics(out, reg)
	}
	return nil
}

func (r request) command() (fedds.Command, string, error) {
	var (
		mode string
		text string
		n    int
	)
	for _, c := range []struct{ mode, text string }{
		{"exec", r.exec},
		{"scalar", r.scalar},
		{"query", r.query},
	} {
		if c.text != "" {
			mode, text = c.mode, c.text
			n++
		}
	}
	if n != 1 {
		return fedds.Command{}, "", errors.New("exactly one of -exec, -scalar or -query is required")
	}
	return fedds.NewCommand(text), mode, nil
}

func writeRows(out io.Writer, rows fedds.Rows) error {
	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for i, c := range cols {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, c)
	}
	fmt.Fprintln(tw)

	values := make([]any, len(cols))
	dest := make([]any, len(cols))
	for i := range values {
		dest[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return err
		}
		for i, v := range values {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprint(tw, formatValue(v))
		}
		fmt.Fprintln(tw)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return tw.Flush()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

func writeMetrics(out io.Writer, reg prometheus.Gatherer) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(out, mf); err != nil {
			return err
		}
	}
	return nil
}
