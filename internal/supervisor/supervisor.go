// Package supervisor runs a single test to a verdict.
//
// A run moves through NotStarted, Running, one of Completed, TimedOut,
// KillFailed or Canceled, and finally Finalized. The auxiliary process, when
// the harness asks for one, is started before the primary and stopped after
// the primary's output stream has closed or the primary has been killed.
// Every wait is bounded, so Run returns even if a process cannot be killed.
package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/google/uuid"

	"github.com/antmicro/warp-pipe/internal/coprocess"
	runerrors "github.com/antmicro/warp-pipe/internal/errors"
	"github.com/antmicro/warp-pipe/internal/harness"
	"github.com/antmicro/warp-pipe/internal/metrics"
	"github.com/antmicro/warp-pipe/internal/model"
	"github.com/antmicro/warp-pipe/internal/process"
	"github.com/antmicro/warp-pipe/internal/pump"
)

// Default timing values.
const (
	DefaultTimeout        = 60 * time.Second
	DefaultTerminateGrace = 500 * time.Millisecond
	DefaultKillWait       = 5 * time.Second
)

// AuxiliaryLogSuffix is appended to a run's log path to name the auxiliary log.
const AuxiliaryLogSuffix = ".aux.log"

// Config holds the timing policy of a Supervisor.
type Config struct {
	// DefaultTimeout applies to runs without a timeout.
	DefaultTimeout time.Duration
	// TerminateGrace is how long a process group gets to exit after SIGTERM
	// before it is sent SIGKILL.
	TerminateGrace time.Duration
	// KillWait bounds each wait after SIGKILL.
	KillWait time.Duration
}

// DefaultConfig returns the default timing policy.
func DefaultConfig() Config {
	return Config{
		DefaultTimeout: DefaultTimeout,
		TerminateGrace: DefaultTerminateGrace,
		KillWait:       DefaultKillWait,
	}
}

func (c Config) withDefaults() Config {
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = DefaultTimeout
	}
	if c.TerminateGrace <= 0 {
		c.TerminateGrace = DefaultTerminateGrace
	}
	if c.KillWait <= 0 {
		c.KillWait = DefaultKillWait
	}
	return c
}

// Observer receives lifecycle events. Observe may be called concurrently
// for different runs.
type Observer interface {
	Observe(e model.Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(e model.Event)

// Observe calls f(e).
func (f ObserverFunc) Observe(e model.Event) { f(e) }

// Supervisor runs tests. It holds no per-run state and is safe for
// concurrent use.
type Supervisor struct {
	cfg      Config
	registry *harness.Registry
	aux      *coprocess.Manager
	clock    clock.Clock
	metrics  *metrics.Metrics
	observer Observer
	logger   *slog.Logger
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithConfig sets the timing policy.
func WithConfig(cfg Config) Option {
	return func(s *Supervisor) { s.cfg = cfg.withDefaults() }
}

// WithRegistry sets the harness registry.
func WithRegistry(r *harness.Registry) Option {
	return func(s *Supervisor) { s.registry = r }
}

// WithClock sets the clock used for timeouts and elapsed time.
func WithClock(c clock.Clock) Option {
	return func(s *Supervisor) { s.clock = c }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Supervisor) { s.metrics = m }
}

// WithObserver sets the lifecycle observer.
func WithObserver(o Observer) Option {
	return func(s *Supervisor) { s.observer = o }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Supervisor) { s.logger = l }
}

// New creates a Supervisor.
func New(opts ...Option) *Supervisor {
	s := &Supervisor{
		cfg:      DefaultConfig(),
		registry: harness.Default(),
		clock:    clock.NewClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.aux == nil {
		s.aux = coprocess.New(s.logger)
		s.aux.ReapWait = s.cfg.KillWait
	}
	return s
}

// Registry returns the harness registry used to select variants.
func (s *Supervisor) Registry() *harness.Registry { return s.registry }

// Config returns the timing policy.
func (s *Supervisor) Config() Config { return s.cfg }

type state int

const (
	stateCompleted state = iota
	stateTimedOut
	stateKillFailed
	stateCanceled
)

func (s state) String() string {
	switch s {
	case stateCompleted:
		return "completed"
	case stateTimedOut:
		return "timed out"
	case stateKillFailed:
		return "kill failed"
	case stateCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

type pumpOutcome struct {
	res pump.Result
	err error
}

// execution is the per-run state owned by one call to Run.
type execution struct {
	s       *Supervisor
	run     model.TestRun
	label   string
	runID   string
	logger  *slog.Logger
	timeout time.Duration

	harness harness.Harness
	aux     *process.Handle
	primary *process.Handle

	pumpDone chan pumpOutcome
	pumped   *pumpOutcome
}

// Run executes run and returns its result. It never panics on harness
// faults and always returns within the run timeout plus the termination
// bounds, leaking the primary process only if SIGKILL did not stop it.
func (s *Supervisor) Run(ctx context.Context, run model.TestRun) model.RunResult {
	start := s.clock.Now()
	e := &execution{
		s:       s,
		run:     run,
		label:   run.Label(),
		runID:   uuid.NewString(),
		timeout: run.Timeout,
	}
	if e.timeout <= 0 {
		e.timeout = s.cfg.DefaultTimeout
	}
	e.logger = s.logger.With("run", e.label, "run_id", e.runID, "harness", string(run.Harness))

	s.metrics.RunStarted()
	res := e.execute(ctx)
	res.Elapsed = s.clock.Since(start)
	s.metrics.RecordRun(run.Harness, res.Verdict, res.Elapsed)

	attrs := []any{"verdict", res.Verdict.String(), "elapsed", res.Elapsed, "reason", res.Reason}
	if res.ExitCode != nil {
		attrs = append(attrs, "exit_code", *res.ExitCode)
	}
	e.logger.Info("run finished", attrs...)
	return res
}

func (e *execution) result() model.RunResult {
	return model.RunResult{
		RunID:   e.runID,
		Name:    e.label,
		Harness: e.run.Harness,
		LogPath: e.run.LogPath,
	}
}

func (e *execution) fail(res model.RunResult, err *runerrors.RunError) model.RunResult {
	res.Verdict = err.Verdict()
	res.Err = err
	if res.Reason == "" {
		res.Reason = err.Message
	}
	return res
}

func (e *execution) execute(ctx context.Context) model.RunResult {
	res := e.result()

	if err := ctx.Err(); err != nil {
		return e.fail(res, runerrors.Canceled(e.label, err))
	}

	h, err := e.s.registry.New(e.run)
	if err != nil {
		return e.fail(res, runerrors.WrapConfig(err, "cannot create harness"))
	}
	e.harness = h

	// The auxiliary is stopped on every path once it started, including
	// spawn failures of the primary.
	defer e.stopAuxiliary()
	if err := e.startAuxiliary(ctx); err != nil {
		return e.fail(res, err)
	}

	primary, err := process.Start(process.Spec{
		Command: e.run.Command,
		Dir:     e.run.WorkingDirectory,
		Env:     e.run.Environment,
		Output:  process.OutputPipe,
	})
	if err != nil {
		e.logger.Error("failed to start primary process", "command", e.run.Command, "error", err)
		return e.fail(res, runerrors.Spawn(e.label, err))
	}
	e.primary = primary
	defer func() { _ = primary.CloseOutput() }()
	e.emit(model.EventPrimaryStarted, primary.Pid())
	e.logger.Debug("primary started", "pid", primary.Pid(), "timeout", e.timeout)

	e.pumpDone = make(chan pumpOutcome, 1)
	p := &pump.Pump{Label: e.label, Harness: h, LogPath: e.run.LogPath, Logger: e.logger}
	go func() {
		r, err := p.Run(primary.Output())
		e.pumpDone <- pumpOutcome{res: r, err: err}
	}()

	st := e.supervise(ctx)
	return e.finalize(ctx, res, st)
}

// supervise waits for the primary to finish within the timeout and applies
// the kill policy otherwise.
func (e *execution) supervise(ctx context.Context) state {
	timer := e.s.clock.NewTimer(e.timeout)
	defer timer.Stop()

	st := stateCompleted
	select {
	case o := <-e.pumpDone:
		e.pumped = &o
		e.emit(model.EventStreamClosed, e.primary.Pid())

		// The stream can close before the process exits; the exit must
		// still happen within the same timeout.
		select {
		case <-e.primary.Done():
		case <-timer.C():
			e.logger.Warn("output closed but process did not exit", "pid", e.primary.Pid())
			st = stateTimedOut
		case <-ctx.Done():
			st = stateCanceled
		}
	case <-timer.C():
		st = stateTimedOut
	case <-ctx.Done():
		st = stateCanceled
	}

	if st == stateCompleted {
		e.emit(model.EventPrimaryExited, e.primary.Pid())
		return st
	}

	if st == stateTimedOut {
		e.logger.Warn("run timed out, terminating", "pid", e.primary.Pid(), "timeout", e.timeout)
	} else {
		e.logger.Warn("run canceled, terminating", "pid", e.primary.Pid())
	}
	if !e.kill() {
		return stateKillFailed
	}
	return st
}

// kill terminates the primary's process group, escalating to SIGKILL, and
// reports whether both the process and the pump finished afterwards.
func (e *execution) kill() bool {
	pid := e.primary.Pid()
	descendants := process.Descendants(int32(pid))

	if err := e.primary.Terminate(); err != nil {
		e.logger.Warn("failed to send SIGTERM", "pid", pid, "error", err)
	}
	e.waitClosed(e.primary.Done(), e.s.cfg.TerminateGrace)

	if err := errors.Join(e.primary.Kill(), process.KillTree(descendants)); err != nil {
		e.logger.Warn("failed to send SIGKILL", "pid", pid, "error", err)
	}
	e.emit(model.EventPrimaryKilled, pid)

	exited := e.waitClosed(e.primary.Done(), e.s.cfg.KillWait)
	if e.pumped == nil {
		if o, ok := e.waitPump(e.s.cfg.KillWait); ok {
			e.pumped = &o
			e.emit(model.EventStreamClosed, pid)
		}
	}
	if exited && e.pumped != nil {
		return true
	}

	e.s.metrics.RecordLeak()
	e.logger.Error("process did not exit after termination, possible leaked process",
		"pid", pid, "exited", exited, "stream_closed", e.pumped != nil)

	// Unblock the pump so the partial transcript reaches the log.
	if e.pumped == nil {
		_ = e.primary.CloseOutput()
		if o, ok := e.waitPump(e.s.cfg.KillWait); ok {
			e.pumped = &o
			e.emit(model.EventStreamClosed, pid)
		}
	}
	return false
}

func (e *execution) finalize(ctx context.Context, res model.RunResult, st state) model.RunResult {
	res.ExitCode = e.primary.ExitCode()

	if e.pumped != nil {
		if e.pumped.err != nil {
			e.logger.Error("failed to write run log", "error", e.pumped.err)
		}
		if st == stateCompleted {
			e.harness.OnExit(res.ExitCode)
		}
		res.Cases = e.harness.Cases()
		res.Reason = e.harness.Reason()
	}

	// A verdict the harness reached before the deadline stands; the process
	// only lingered after reporting.
	if (st == stateTimedOut || st == stateCanceled) && e.pumped != nil && e.pumped.res.Fault == nil {
		if v := e.harness.Verdict(); v.Terminal() {
			e.logger.Info("keeping harness verdict reached before termination", "verdict", v.String(), "state", st.String())
			res.Verdict = v
			return res
		}
	}

	switch st {
	case stateTimedOut:
		res.Reason = "Timeout"
		return e.fail(res, runerrors.Timeout(e.label, "no completion within %s", e.timeout))
	case stateCanceled:
		res.Reason = "canceled"
		return e.fail(res, runerrors.Canceled(e.label, context.Cause(ctx)))
	case stateKillFailed:
		res.ProcessLeaked = true
		res.Reason = "possible leaked process"
		return e.fail(res, runerrors.Termination(e.label, e.primary.Pid(), e.primary.WaitErr()))
	}

	if fault := e.pumped.res.Fault; fault != nil {
		e.s.metrics.RecordHarnessFault(e.run.Harness)
		res.Reason = "harness fault"
		if re, ok := fault.(*runerrors.RunError); ok {
			return e.fail(res, re)
		}
		return e.fail(res, runerrors.HarnessFault(e.label, fault))
	}

	res.Verdict = e.harness.Verdict()
	if res.Verdict == model.VerdictUndetermined {
		res.Err = runerrors.Undetermined(e.label)
		if res.Reason == "" {
			res.Reason = "no completion signal"
		}
	}
	return res
}

func (e *execution) startAuxiliary(ctx context.Context) *runerrors.RunError {
	provider, ok := e.harness.(harness.AuxiliaryProvider)
	if !ok {
		return nil
	}
	argv := provider.AuxiliaryCommandFor(e.run)
	if len(argv) == 0 {
		return nil
	}

	opts := coprocess.Options{
		Command:          argv,
		WorkingDirectory: e.run.WorkingDirectory,
		Environment:      e.run.Environment,
	}
	if e.run.LogPath != "" {
		opts.LogPath = e.run.LogPath + AuxiliaryLogSuffix
	}

	h, err := e.s.aux.Start(ctx, opts)
	if err != nil {
		e.logger.Error("failed to start auxiliary process", "command", argv, "error", err)
		return runerrors.AuxiliarySpawn(e.label, err)
	}
	e.aux = h
	e.emit(model.EventAuxiliaryStarted, h.Pid())
	return nil
}

func (e *execution) stopAuxiliary() {
	if e.aux == nil {
		return
	}
	if e.aux.Exited() && e.primary != nil {
		e.logger.Warn("auxiliary process exited before the run finished", "pid", e.aux.Pid())
	}
	if err := e.s.aux.Stop(e.aux); err != nil {
		e.s.metrics.RecordAuxiliaryFailure()
		e.logger.Error("failed to stop auxiliary process", "pid", e.aux.Pid(),
			"error", runerrors.Auxiliary(e.label, err))
	}
	e.emit(model.EventAuxiliaryStopped, e.aux.Pid())
}

func (e *execution) waitClosed(ch <-chan struct{}, d time.Duration) bool {
	t := e.s.clock.NewTimer(d)
	defer t.Stop()
	select {
	case <-ch:
		return true
	case <-t.C():
		return false
	}
}

func (e *execution) waitPump(d time.Duration) (pumpOutcome, bool) {
	t := e.s.clock.NewTimer(d)
	defer t.Stop()
	select {
	case o := <-e.pumpDone:
		return o, true
	case <-t.C():
		return pumpOutcome{}, false
	}
}

func (e *execution) emit(kind model.EventKind, pid int) {
	if e.s.observer == nil {
		return
	}
	e.s.observer.Observe(model.Event{
		Kind:  kind,
		Run:   e.label,
		RunID: e.runID,
		PID:   pid,
		At:    e.s.clock.Now(),
	})
}
