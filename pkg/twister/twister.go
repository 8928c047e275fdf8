// Package twister is the public entry point for running embedded test
// suites: single runs, whole suites loaded from a YAML descriptor, the
// runnable check and exit-code mapping.
package twister

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/antmicro/warp-pipe/internal/config"
	"github.com/antmicro/warp-pipe/internal/harness"
	"github.com/antmicro/warp-pipe/internal/metrics"
	"github.com/antmicro/warp-pipe/internal/model"
	"github.com/antmicro/warp-pipe/internal/output"
	"github.com/antmicro/warp-pipe/internal/runner"
	"github.com/antmicro/warp-pipe/internal/supervisor"
)

type (
	TestRun       = model.TestRun
	HarnessConfig = model.HarnessConfig
	HarnessKind   = model.HarnessKind
	RunResult     = model.RunResult
	CaseResult    = model.CaseResult
	Verdict       = model.Verdict
	Suite         = config.Suite
	Settings      = config.Settings
	Report        = runner.Report
)

const (
	VerdictUndetermined     = model.VerdictUndetermined
	VerdictPassed           = model.VerdictPassed
	VerdictFailed           = model.VerdictFailed
	VerdictBlockedByFixture = model.VerdictBlockedByFixture
	VerdictTimeout          = model.VerdictTimeout
	VerdictError            = model.VerdictError
)

// Options configure Run and RunSuite. The zero value is usable.
type Options struct {
	// Logger receives structured logs. Defaults to slog.Default().
	Logger *slog.Logger
	// Registerer receives the execution metrics. Nil disables metrics.
	Registerer prometheus.Registerer
	// Stdout and Stderr receive the per-run status lines and the suite
	// summary from RunSuite. They default to os.Stdout and os.Stderr.
	Stdout, Stderr io.Writer
	// Quiet suppresses status lines for passing runs.
	Quiet bool
	// Color forces colored output on or off when set.
	Color *bool
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o Options) writer() *output.Writer {
	var w *output.Writer
	if o.Stdout == nil && o.Stderr == nil && o.Color == nil {
		w = output.New()
	} else {
		stdout, stderr := o.Stdout, o.Stderr
		if stdout == nil {
			stdout = os.Stdout
		}
		if stderr == nil {
			stderr = os.Stderr
		}
		useColor := false
		if o.Color != nil {
			useColor = *o.Color
		}
		w = output.NewWithWriters(stdout, stderr, useColor)
	}
	w.SetQuiet(o.Quiet)
	return w
}

func (o Options) supervisor(cfg supervisor.Config) *supervisor.Supervisor {
	opts := []supervisor.Option{
		supervisor.WithConfig(cfg),
		supervisor.WithLogger(o.logger()),
	}
	if o.Registerer != nil {
		opts = append(opts, supervisor.WithMetrics(metrics.New(o.Registerer)))
	}
	return supervisor.New(opts...)
}

// Run executes a single test run with the default supervisor settings.
// It always returns exactly one result.
func Run(ctx context.Context, run TestRun, opts Options) RunResult {
	return opts.supervisor(supervisor.DefaultConfig()).Run(ctx, run)
}

// LoadSuite reads and validates a suite descriptor.
func LoadSuite(path string) (*Suite, error) {
	return config.LoadSuite(path)
}

// RunSuite executes every run in suite and prints a summary. fixtures are
// added to the fixtures named in the suite settings.
func RunSuite(ctx context.Context, suite *Suite, fixtures []string, opts Options) Report {
	settings := suite.Settings
	sup := opts.supervisor(supervisor.Config{
		DefaultTimeout: settings.DefaultTimeout,
		TerminateGrace: settings.TerminateGrace,
		KillWait:       settings.KillWait,
	})

	out := opts.writer()
	available := harness.NewFixtureSet(append(append([]string(nil), settings.Fixtures...), fixtures...)...)
	report := runner.New(sup, settings, out, opts.logger()).Run(ctx, suite.Runs, available)
	runner.PrintSummary(out, report)
	return report
}

// Runnable reports whether run would be executed when the given fixtures
// are available: its harness must be recognized and its fixture
// requirement, if any, supplied.
func Runnable(run TestRun, fixtures ...string) bool {
	return harness.IsRunnable(run, harness.NewFixtureSet(fixtures...))
}
