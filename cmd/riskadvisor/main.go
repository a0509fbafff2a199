// Command riskadvisor runs the risk analysis workflow in a terminal: it asks for the
// project brief, answers the generated questions and prints the report.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"golang.org/x/term"

	"riskadvisor/pkg/config"
	"riskadvisor/pkg/logx"
	"riskadvisor/pkg/version"
	"riskadvisor/pkg/workflow"
)

func main() {
	var (
		projectDir  = flag.String("projectdir", ".", "Project directory holding .riskadvisor/")
		mock        = flag.Bool("mock", false, "Use canned questions and report instead of the backend")
		resume      = flag.Bool("resume", false, "Resume the session left by an interrupted run")
		fresh       = flag.Bool("new", false, "Discard any stored session before starting")
		history     = flag.Int("history", 0, "List the N most recent archived reports and exit")
		metricsOut  = flag.String("metrics-out", "", "Write Prometheus text metrics to this file on exit")
		logToStderr = flag.Bool("log-stderr", false, "Log to stderr instead of .riskadvisor/logs/riskadvisor.log")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("riskadvisor %s\n", version.Version)
		fmt.Printf("  commit: %s\n", version.Commit)
		fmt.Printf("  built:  %s\n", version.Date)
		os.Exit(0)
	}

	closeLog, err := setupLogging(*projectDir, *logToStderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize log file: %v\n", err)
		os.Exit(1)
	}

	exitCode := run(*projectDir, options{
		mock:       *mock,
		resume:     *resume,
		fresh:      *fresh,
		history:    *history,
		metricsOut: *metricsOut,
	})

	closeLog()
	os.Exit(exitCode)
}

type options struct {
	mock       bool
	resume     bool
	fresh      bool
	history    int
	metricsOut string
}

// run contains the main application logic and returns an exit code so defers run before os.Exit.
func run(projectDir string, opts options) int {
	if err := config.Load(projectDir); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	cfg, err := config.Get()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read config: %v\n", err)
		return 1
	}
	if cfg.Debug != nil && cfg.Debug.Enabled {
		logx.SetDebug(true)
		logx.SetDebugDomains(cfg.Debug.Domains)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(projectDir, &cfg, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Setup failed: %v\n", err)
		return 1
	}
	defer app.Close()

	if opts.history > 0 {
		if err := app.printHistory(ctx, os.Stdout, opts.history); err != nil {
			fmt.Fprintf(os.Stderr, "History failed: %v\n", err)
			return 1
		}
		return 0
	}

	if opts.fresh {
		if err := app.orch.StartNewWorkflow(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to reset workflow: %v\n", err)
			return 1
		}
	}

	r := newRunner(app.orch, os.Stdin, os.Stdout, term.IsTerminal(int(os.Stdin.Fd())))
	r.budget = workflow.BudgetFormatFromConfig(cfg.Budget)
	runErr := r.run(ctx, opts.resume)

	if err := app.writeMetrics(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to write metrics: %v\n", err)
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "riskadvisor: %v\n", runErr)
		return 1
	}
	return 0
}

// setupLogging sends log output to a file under the project directory unless toStderr is set.
func setupLogging(projectDir string, toStderr bool) (func(), error) {
	if toStderr {
		return func() {}, nil
	}
	logsDir := filepath.Join(projectDir, config.ProjectConfigDir, "logs")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(logsDir, "riskadvisor.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logx.SetOutput(f)
	return func() {
		logx.SetOutput(nil)
		if err := f.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
		}
	}, nil
}
