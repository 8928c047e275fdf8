// Package mocks provides shared test doubles for warp-pipe packages.
package mocks

import (
	"sync"

	"github.com/antmicro/warp-pipe/internal/model"
)

// Harness implements harness.Harness for testing.
// Use NewHarness() to create instances with a fluent builder API.
//
// By default it passes as soon as it sees a line equal to the pass token and
// stays Undetermined otherwise.
type Harness struct {
	name      string
	passToken string
	panicOn   string
	auxiliary []string

	// FeedFunc is called by FeedLine after recording the line.
	FeedFunc func(line string)

	mu       sync.Mutex
	lines    []string
	exitCode *int
	exited   bool
	verdict  model.Verdict
	reason   string
}

// NewHarness creates a new mock harness with the given name.
func NewHarness(name string) *Harness {
	return &Harness{name: name, passToken: "PASS"}
}

// WithPassToken sets the line that makes the harness pass.
func (m *Harness) WithPassToken(token string) *Harness {
	m.passToken = token
	return m
}

// WithPanicOn makes FeedLine panic when it sees line.
func (m *Harness) WithPanicOn(line string) *Harness {
	m.panicOn = line
	return m
}

// WithVerdict sets a fixed starting verdict.
func (m *Harness) WithVerdict(v model.Verdict) *Harness {
	m.verdict = v
	return m
}

// WithAuxiliary makes the mock an auxiliary provider returning argv.
func (m *Harness) WithAuxiliary(argv ...string) *Harness {
	m.auxiliary = argv
	return m
}

// WithFeedFunc sets the function called by FeedLine.
func (m *Harness) WithFeedFunc(fn func(line string)) *Harness {
	m.FeedFunc = fn
	return m
}

// harness.Harness interface implementation

func (m *Harness) Name() string { return m.name }

func (m *Harness) FeedLine(line string) {
	m.mu.Lock()
	m.lines = append(m.lines, line)
	if m.passToken != "" && line == m.passToken {
		m.verdict = model.VerdictPassed
		m.reason = "token seen"
	}
	m.mu.Unlock()

	if m.panicOn != "" && line == m.panicOn {
		panic("mock harness: " + line)
	}
	if m.FeedFunc != nil {
		m.FeedFunc(line)
	}
}

func (m *Harness) OnExit(code *int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exited = true
	if code != nil {
		c := *code
		m.exitCode = &c
	}
}

func (m *Harness) Verdict() model.Verdict {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.verdict
}

func (m *Harness) Reason() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reason
}

func (m *Harness) Cases() []model.CaseResult { return nil }

// AuxiliaryCommandFor returns the argv set by WithAuxiliary.
func (m *Harness) AuxiliaryCommandFor(model.TestRun) []string {
	return m.auxiliary
}

// Test inspection methods

// Lines returns the lines fed so far.
func (m *Harness) Lines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]string, len(m.lines))
	copy(result, m.lines)
	return result
}

// ExitCode returns the code passed to OnExit and whether OnExit was called.
func (m *Harness) ExitCode() (*int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exitCode, m.exited
}
