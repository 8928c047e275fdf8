// Package model provides the data types shared by the harness, supervisor and
// suite runner packages. It exists to break import cycles between them.
package model

import (
	"maps"
	"slices"
	"time"
)

// HarnessKind names the strategy used to classify a run.
type HarnessKind string

const (
	HarnessConsole   HarnessKind = "console"
	HarnessZtest     HarnessKind = "ztest"
	HarnessPytest    HarnessKind = "pytest"
	HarnessGtest     HarnessKind = "gtest"
	HarnessRobot     HarnessKind = "robot"
	HarnessCoProcess HarnessKind = "coprocess"
)

// HarnessConfig carries the per-test harness settings found under
// harness_config in a test descriptor.
type HarnessConfig struct {
	// Type is the console matching mode ("one_line" or "multi_line") for the
	// console harness, or the mock device type for the coprocess harness.
	Type    string   `yaml:"type"`
	Regex   []string `yaml:"regex"`
	Ordered bool     `yaml:"ordered"`
	Fixture string   `yaml:"fixture"`
}

// TestRun describes one test execution request. It is built once by the
// caller and must not be mutated after it is handed to a supervisor.
type TestRun struct {
	Name             string
	Command          []string
	AuxiliaryCommand []string
	WorkingDirectory string
	SourceDirectory  string
	Harness          HarnessKind
	HarnessConfig    HarnessConfig
	Fixture          string
	Timeout          time.Duration
	LogPath          string
	Environment      map[string]string
}

// FixtureRequirement returns the fixture the run needs, preferring the
// explicit Fixture field over the one in HarnessConfig.
func (r TestRun) FixtureRequirement() string {
	if r.Fixture != "" {
		return r.Fixture
	}
	return r.HarnessConfig.Fixture
}

// Label returns a human-readable identifier for logs.
func (r TestRun) Label() string {
	if r.Name != "" {
		return r.Name
	}
	if len(r.Command) > 0 {
		return r.Command[0]
	}
	return "<unnamed>"
}

// Clone returns a deep copy of the run so callers can derive variants
// without sharing slices or maps.
func (r TestRun) Clone() TestRun {
	c := r
	c.Command = slices.Clone(r.Command)
	c.AuxiliaryCommand = slices.Clone(r.AuxiliaryCommand)
	c.HarnessConfig.Regex = slices.Clone(r.HarnessConfig.Regex)
	c.Environment = maps.Clone(r.Environment)
	return c
}

// CaseStatus is the outcome of a single test case reported by a framework.
type CaseStatus string

const (
	CasePassed  CaseStatus = "passed"
	CaseFailed  CaseStatus = "failed"
	CaseSkipped CaseStatus = "skipped"
	CaseBlocked CaseStatus = "blocked"
)

// CaseResult holds a single test case parsed from framework output.
type CaseResult struct {
	Name     string
	Status   CaseStatus
	Duration time.Duration
}

// RunResult is produced exactly once per TestRun.
type RunResult struct {
	RunID    string
	Name     string
	Harness  HarnessKind
	Verdict  Verdict
	ExitCode *int
	Elapsed  time.Duration
	LogPath  string

	// Reason is a short explanation of the verdict (e.g. "Timeout",
	// "ZEPHYR FATAL ERROR", "exited with 3").
	Reason string
	// ProcessLeaked is set when the primary process could not be confirmed
	// dead after termination.
	ProcessLeaked bool
	// Err is the underlying error for Error and Timeout verdicts.
	Err   error
	Cases []CaseResult
}

// OK reports whether the run passes the gate.
func (r RunResult) OK() bool {
	return r.Verdict.OK()
}
