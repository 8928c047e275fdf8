package harness

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/antmicro/warp-pipe/internal/model"
)

// Static regexes for ztest console output.
// Compiled once at package init for performance.
var (
	ztestSuiteStartRegex = regexp.MustCompile(`Running TESTSUITE (\S+)`)
	ztestCaseStartRegex  = regexp.MustCompile(`START - (?:test_)?([A-Za-z0-9_.-]+)`)
	ztestCaseResultRegex = regexp.MustCompile(`(PASS|FAIL|SKIP|BLOCK) - (?:test_)?(\S+) in (\d*[.,]?\d*) seconds`)
	ztestSuiteEndRegex   = regexp.MustCompile(`TESTSUITE (\S+) (succeeded|failed)`)
)

// Ztest classifies output of the Zephyr ztest framework:
//
//	Running TESTSUITE pcie_basic
//	===================================================================
//	START - test_scan
//	 PASS - test_scan in 0.002 seconds
//	===================================================================
//	TESTSUITE pcie_basic succeeded
//	PROJECT EXECUTION SUCCESSFUL
type Ztest struct {
	state
	suites       []string
	failedSuites []string
	running      string
}

// NewZtest creates a ztest harness.
func NewZtest() *Ztest {
	return &Ztest{}
}

// Name returns the harness name.
func (z *Ztest) Name() string { return string(model.HarnessZtest) }

// FeedLine consumes one output line.
func (z *Ztest) FeedLine(line string) {
	line = normalizeLine(line)

	if strings.Contains(line, markerFault) {
		if z.running != "" {
			z.setCase(z.running, model.CaseFailed, 0)
			z.running = ""
		}
		z.fail(markerFault)
		return
	}
	if z.verdict.Terminal() {
		return
	}

	if m := ztestCaseResultRegex.FindStringSubmatch(line); m != nil {
		z.setCase(m[2], ztestStatus(m[1]), parseSeconds(m[3]))
		if z.running == m[2] {
			z.running = ""
		}
		return
	}
	if m := ztestCaseStartRegex.FindStringSubmatch(line); m != nil {
		z.running = m[1]
		if !z.hasCase(m[1]) {
			z.setCase(m[1], model.CaseBlocked, 0)
		}
		return
	}
	if m := ztestSuiteStartRegex.FindStringSubmatch(line); m != nil {
		z.suites = append(z.suites, m[1])
		return
	}
	if m := ztestSuiteEndRegex.FindStringSubmatch(line); m != nil {
		if m[2] == "failed" {
			z.failedSuites = append(z.failedSuites, m[1])
		}
		return
	}

	switch {
	case strings.Contains(line, markerSuccess):
		if n := z.countCases(model.CaseFailed); n > 0 {
			z.fail(fmt.Sprintf("%d test case(s) failed", n))
			return
		}
		if len(z.failedSuites) > 0 {
			z.fail(fmt.Sprintf("test suite %s failed", z.failedSuites[0]))
			return
		}
		z.pass(markerSuccess)
	case strings.Contains(line, markerFailure):
		z.fail(markerFailure)
	}
}

// OnExit records the exit code and fails a passed run on non-zero exit.
func (z *Ztest) OnExit(code *int) {
	z.recordExit(code)
	z.failOnNonZeroExit()
}

// Suites returns the names of the test suites that started.
func (z *Ztest) Suites() []string {
	return append([]string(nil), z.suites...)
}

func ztestStatus(s string) model.CaseStatus {
	switch s {
	case "PASS":
		return model.CasePassed
	case "SKIP":
		return model.CaseSkipped
	case "BLOCK":
		return model.CaseBlocked
	default:
		return model.CaseFailed
	}
}
