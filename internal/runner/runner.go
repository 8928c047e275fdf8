// Package runner drives a suite of test runs through a supervisor with
// bounded parallelism and fixture gating.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"

	"github.com/antmicro/warp-pipe/internal/config"
	runerrors "github.com/antmicro/warp-pipe/internal/errors"
	"github.com/antmicro/warp-pipe/internal/harness"
	"github.com/antmicro/warp-pipe/internal/model"
	"github.com/antmicro/warp-pipe/internal/output"
	"github.com/antmicro/warp-pipe/internal/supervisor"
)

const (
	// minParallelWorkers keeps the pool usable even if runtime.NumCPU()
	// reports 0 in a restricted container.
	minParallelWorkers = 1
	maxParallelWorkers = config.MaxParallel
)

// Runner executes suites. It owns no per-suite state.
type Runner struct {
	sup      *supervisor.Supervisor
	settings config.Settings
	out      *output.Writer
	logger   *slog.Logger
}

// New creates a Runner. out and logger may be nil.
func New(sup *supervisor.Supervisor, settings config.Settings, out *output.Writer, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{sup: sup, settings: settings, out: out, logger: logger}
}

// SkippedRun is a suite entry that was not executed.
type SkippedRun struct {
	Name   string
	Reason harness.Runnability
}

// Report is the outcome of one suite invocation.
type Report struct {
	// Results holds one result per executed or blocked run, in input order.
	Results []model.RunResult
	// Skipped lists build-only entries whose harness is not runnable.
	Skipped []SkippedRun

	Passed       int
	Failed       int
	Blocked      int
	TimedOut     int
	Errored      int
	Undetermined int
	Leaked       int

	Elapsed time.Duration
}

// OK reports whether no run failed. Blocked runs do not fail a suite.
func (r Report) OK() bool {
	return r.Failed == 0 && r.TimedOut == 0 && r.Errored == 0 && r.Undetermined == 0
}

// Total returns the number of results.
func (r Report) Total() int { return len(r.Results) }

func (r *Report) tally(res model.RunResult) {
	switch res.Verdict {
	case model.VerdictPassed:
		r.Passed++
	case model.VerdictFailed:
		r.Failed++
	case model.VerdictBlockedByFixture:
		r.Blocked++
	case model.VerdictTimeout:
		r.TimedOut++
	case model.VerdictError:
		r.Errored++
	default:
		r.Undetermined++
	}
	if res.ProcessLeaked {
		r.Leaked++
	}
}

// Run classifies every run, executes the runnable ones on a bounded pool
// and returns the report. Results keep the input order.
func (r *Runner) Run(ctx context.Context, runs []model.TestRun, fixtures harness.FixtureSet) Report {
	start := time.Now()
	registry := r.sup.Registry()

	var report Report
	slots := make([]*model.RunResult, len(runs))
	p := pool.New().WithMaxGoroutines(r.workers())

	for i, run := range runs {
		run := run
		switch registry.Classify(run, fixtures) {
		case harness.UnknownHarness:
			report.Skipped = append(report.Skipped, SkippedRun{Name: run.Label(), Reason: harness.UnknownHarness})
			r.logger.Debug("skipping build-only entry", "run", run.Label(), "harness", string(run.Harness))
			if r.out != nil {
				r.out.RunSkipped(run.Label(), harness.UnknownHarness.String())
			}
		case harness.MissingFixture:
			res := blockedResult(run)
			slots[i] = &res
			if r.out != nil {
				r.out.RunResult(res)
			}
		default:
			slot := new(model.RunResult)
			slots[i] = slot
			p.Go(func() {
				*slot = r.runOne(ctx, run)
			})
		}
	}
	p.Wait()

	for _, slot := range slots {
		if slot == nil {
			continue
		}
		report.Results = append(report.Results, *slot)
		report.tally(*slot)
	}
	report.Elapsed = time.Since(start)

	r.logger.Info("suite finished",
		"passed", report.Passed,
		"failed", report.Failed,
		"blocked", report.Blocked,
		"timeout", report.TimedOut,
		"error", report.Errored,
		"undetermined", report.Undetermined,
		"skipped", len(report.Skipped),
	)
	return report
}

// runOne supervises a single run. A panic anywhere in the run becomes an
// Error result so one run never takes the suite down.
func (r *Runner) runOne(ctx context.Context, run model.TestRun) model.RunResult {
	if r.out != nil {
		r.out.RunStart(run)
	}

	var res model.RunResult
	var catcher panics.Catcher
	catcher.Try(func() { res = r.sup.Run(ctx, run) })
	if rec := catcher.Recovered(); rec != nil {
		r.logger.Error("run panicked", "run", run.Label(), "panic", rec.Value)
		err := runerrors.HarnessFault(run.Label(), rec.AsError())
		res = model.RunResult{
			RunID:   uuid.NewString(),
			Name:    run.Label(),
			Harness: run.Harness,
			Verdict: model.VerdictError,
			LogPath: run.LogPath,
			Reason:  "panic",
			Err:     err,
		}
	}

	if r.out != nil {
		r.out.RunResult(res)
	}
	return res
}

func blockedResult(run model.TestRun) model.RunResult {
	return model.RunResult{
		RunID:   uuid.NewString(),
		Name:    run.Label(),
		Harness: run.Harness,
		Verdict: model.VerdictBlockedByFixture,
		LogPath: run.LogPath,
		Reason:  fmt.Sprintf("missing fixture %s", run.FixtureRequirement()),
	}
}

// workers returns the pool size: the configured parallelism clamped to
// [1, 256], or runtime.NumCPU() when unset.
func (r *Runner) workers() int {
	n := r.settings.Parallel
	if n <= 0 {
		n = defaultWorkerCount()
	}
	return min(max(n, minParallelWorkers), maxParallelWorkers)
}

// defaultWorkerCount returns the default number of parallel workers based on CPU count.
func defaultWorkerCount() int {
	return max(minParallelWorkers, runtime.NumCPU())
}

// PrintSummary writes the suite summary to out.
func PrintSummary(out *output.Writer, report Report) {
	out.SummaryHeader("Suite Summary")

	out.SummaryPassed("Passed", fmt.Sprintf("%d", report.Passed))
	if report.Failed > 0 {
		out.SummaryFailed("Failed", fmt.Sprintf("%d", report.Failed))
	}
	if report.TimedOut > 0 {
		out.SummaryFailed("Timeout", fmt.Sprintf("%d", report.TimedOut))
	}
	if report.Errored > 0 {
		out.SummaryFailed("Error", fmt.Sprintf("%d", report.Errored))
	}
	if report.Undetermined > 0 {
		out.SummaryFailed("Undetermined", fmt.Sprintf("%d", report.Undetermined))
	}
	if report.Blocked > 0 {
		out.SummaryItem("Blocked", fmt.Sprintf("%d", report.Blocked))
	}
	if len(report.Skipped) > 0 {
		out.SummaryItem("Skipped", fmt.Sprintf("%d", len(report.Skipped)))
	}
	out.SummaryItem("Total", fmt.Sprintf("%d", report.Total()))

	if !report.OK() {
		out.Println("")
		var rows [][]string
		for _, res := range report.Results {
			if res.OK() || res.Verdict == model.VerdictBlockedByFixture {
				continue
			}
			rows = append(rows, []string{res.Name, out.VerdictTitle(res.Verdict), res.Reason})
		}
		out.Table([]string{"RUN", "VERDICT", "REASON"}, rows)
		for _, res := range report.Results {
			if res.Verdict == model.VerdictFailed {
				out.CaseTable(res)
			}
		}
	}

	if report.Leaked > 0 {
		out.Warning("%d process(es) may have leaked", report.Leaked)
	}

	failed := report.Total() - report.Passed - report.Blocked
	if report.OK() {
		out.FinalSuccess("All %d runs passed.", report.Passed)
	} else {
		out.FinalFailure("%d of %d runs failed.", failed, report.Total())
	}
}
