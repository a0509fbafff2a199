package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"riskadvisor/pkg/config"
	"riskadvisor/pkg/eventlog"
	"riskadvisor/pkg/logx"
	"riskadvisor/pkg/metrics"
	"riskadvisor/pkg/riskapi"
	"riskadvisor/pkg/session"
	"riskadvisor/pkg/workflow"
)

const defaultMetricsFile = "metrics.prom"

// app holds the wired components of one run.
type app struct {
	orch        *workflow.Orchestrator
	store       session.Store
	journal     *eventlog.Writer
	recorder    *metrics.PrometheusRecorder
	metricsPath string
	closers     []io.Closer
}

// newApp wires client, store, journal and metrics from the config.
func newApp(projectDir string, cfg *config.Config, opts options) (*app, error) {
	logger := logx.NewLogger("riskadvisor")
	a := &app{}

	var recorder metrics.Recorder = metrics.Nop()
	if cfg.Metrics.Enabled || opts.metricsOut != "" {
		a.recorder = metrics.NewPrometheusRecorder(cfg.Metrics.Namespace)
		recorder = a.recorder
		a.metricsPath = opts.metricsOut
		if a.metricsPath == "" {
			a.metricsPath = filepath.Join(projectDir, config.ProjectConfigDir, defaultMetricsFile)
		}
	}

	var base riskapi.Client
	if opts.mock {
		logger.Info("using mock analysis backend")
		base = riskapi.NewMockClient()
	} else {
		base = riskapi.NewHTTPClient(riskapi.OptionsFromConfig(cfg.API))
	}
	client := riskapi.Chain(base,
		riskapi.MetricsMiddleware(recorder),
		riskapi.LoggingMiddleware(logx.NewLogger("riskapi")),
	)

	switch cfg.Store.Backend {
	case config.StoreMemory:
		a.store = session.NewMemoryStore()
	default:
		store, err := session.OpenSQLite(config.ResolvePath(projectDir, cfg.Store.Path))
		if err != nil {
			return nil, logx.Wrap(err, "failed to open session store")
		}
		a.store = store
		a.closers = append(a.closers, store)
	}

	wfOpts := []workflow.Option{
		workflow.WithAutoFetchQuestions(cfg.AutoFetchQuestions()),
		workflow.WithRecorder(recorder),
		workflow.WithBudgetFormat(workflow.BudgetFormatFromConfig(cfg.Budget)),
	}
	if cfg.Events.Enabled {
		journal, err := eventlog.NewWriter(config.ResolvePath(projectDir, cfg.Events.Dir))
		if err != nil {
			a.Close()
			return nil, logx.Wrap(err, "failed to open event log")
		}
		a.journal = journal
		a.closers = append(a.closers, journal)
		wfOpts = append(wfOpts, workflow.WithJournal(journal))
	}

	orch, err := workflow.New(client, a.store, wfOpts...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}
	a.orch = orch
	return a, nil
}

// Close shuts the orchestrator down before the resources it writes to.
func (a *app) Close() {
	if a.orch != nil {
		_ = a.orch.Close()
	}
	if a.journal != nil {
		if path := a.journal.GetCurrentLogFile(); path != "" {
			logx.NewLogger("riskadvisor").Info("transition journal: %s", path)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			logx.Warnf("close failed: %v", err)
		}
	}
	a.closers = nil
}

// writeMetrics dumps the Prometheus registry when metrics are enabled.
func (a *app) writeMetrics() error {
	if a.recorder == nil || a.metricsPath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(a.metricsPath), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	return metrics.WriteTextFile(a.metricsPath, a.recorder.Registry()) //nolint:wrapcheck // already wrapped
}

func (a *app) printHistory(ctx context.Context, w io.Writer, limit int) error {
	archiver, ok := a.store.(session.Archiver)
	if !ok {
		return errors.New("the configured store keeps no report archive")
	}
	reports, err := archiver.ListReports(ctx, limit)
	if err != nil {
		return err //nolint:wrapcheck // already wrapped by the store
	}
	if len(reports) == 0 {
		fmt.Fprintln(w, "No archived reports.")
		return nil
	}
	for i := range reports {
		renderArchived(w, &reports[i])
	}
	return nil
}
