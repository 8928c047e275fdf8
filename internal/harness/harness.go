// Package harness provides pass/fail classification strategies for the
// output conventions of embedded test frameworks.
//
// A Harness consumes output lines one at a time and, optionally, the exit
// code of the process that produced them. It never guesses: until a variant
// observes its completion signal the verdict stays Undetermined.
package harness

import (
	"fmt"
	"strings"
	"time"

	"github.com/acarl005/stripansi"

	"github.com/antmicro/warp-pipe/internal/model"
)

// Harness classifies the output of one run. A Harness is created fresh for
// each TestRun and is driven from a single goroutine.
type Harness interface {
	// Name returns the harness name (e.g. "ztest").
	Name() string
	// FeedLine consumes one output line without its line terminator.
	FeedLine(line string)
	// OnExit records the exit code of the primary process.
	// code is nil when the process was killed or never exited.
	OnExit(code *int)
	// Verdict returns the current verdict.
	Verdict() model.Verdict
	// Reason explains the current verdict.
	Reason() string
	// Cases returns the test cases observed so far.
	Cases() []model.CaseResult
}

// AuxiliaryProvider is implemented by harnesses that need a second process
// running alongside the primary one.
type AuxiliaryProvider interface {
	// AuxiliaryCommandFor returns the argv of the auxiliary process for run,
	// or nil if no auxiliary process is needed.
	AuxiliaryCommandFor(run model.TestRun) []string
}

// Markers printed by Zephyr applications and recognized by several variants.
const (
	markerSuccess = "PROJECT EXECUTION SUCCESSFUL"
	markerFailure = "PROJECT EXECUTION FAILED"
	markerFault   = "ZEPHYR FATAL ERROR"
)

// normalizeLine strips color escapes and a trailing carriage return so that
// patterns match regardless of how the device terminal was configured.
func normalizeLine(line string) string {
	return strings.TrimRight(stripansi.Strip(line), "\r")
}

// state holds the verdict bookkeeping shared by all variants.
type state struct {
	verdict  model.Verdict
	reason   string
	exitCode *int
	cases    []model.CaseResult
	caseIdx  map[string]int
}

func (s *state) Verdict() model.Verdict { return s.verdict }
func (s *state) Reason() string         { return s.reason }

func (s *state) Cases() []model.CaseResult {
	out := make([]model.CaseResult, len(s.cases))
	copy(out, s.cases)
	return out
}

func (s *state) pass(reason string) {
	s.verdict = model.VerdictPassed
	s.reason = reason
}

func (s *state) fail(reason string) {
	s.verdict = model.VerdictFailed
	s.reason = reason
}

func (s *state) recordExit(code *int) {
	if code == nil {
		return
	}
	c := *code
	s.exitCode = &c
}

// failOnNonZeroExit downgrades a pass to a failure if the process reported
// success but then exited with an error status.
func (s *state) failOnNonZeroExit() {
	if s.exitCode == nil || *s.exitCode == 0 {
		return
	}
	if s.verdict == model.VerdictPassed {
		s.fail(fmt.Sprintf("exited with %d", *s.exitCode))
	}
}

// setCase records or updates the status of a named case, preserving first-seen order.
func (s *state) setCase(name string, status model.CaseStatus, d time.Duration) {
	if s.caseIdx == nil {
		s.caseIdx = make(map[string]int)
	}
	if i, ok := s.caseIdx[name]; ok {
		s.cases[i].Status = status
		if d > 0 {
			s.cases[i].Duration = d
		}
		return
	}
	s.caseIdx[name] = len(s.cases)
	s.cases = append(s.cases, model.CaseResult{Name: name, Status: status, Duration: d})
}

func (s *state) hasCase(name string) bool {
	_, ok := s.caseIdx[name]
	return ok
}

func (s *state) countCases(status model.CaseStatus) int {
	n := 0
	for _, c := range s.cases {
		if c.Status == status {
			n++
		}
	}
	return n
}

// parseSeconds converts a "0.123" or "0,123" seconds value to a duration.
func parseSeconds(v string) time.Duration {
	v = strings.Replace(v, ",", ".", 1)
	if v == "" || v == "." {
		return 0
	}
	d, err := time.ParseDuration(v + "s")
	if err != nil {
		return 0
	}
	return d
}
