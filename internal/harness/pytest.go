package harness

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/antmicro/warp-pipe/internal/model"
)

// Static regexes for pytest output parsing.
// Compiled once at package init for performance.
var (
	pytestSummaryRegex = regexp.MustCompile(`^=+ .*\bin \d+(?:\.\d+)?s.*=+$`)
	pytestPassedRegex  = regexp.MustCompile(`(\d+) passed`)
	pytestFailedRegex  = regexp.MustCompile(`(\d+) failed`)
	pytestSkippedRegex = regexp.MustCompile(`(\d+) skipped`)
	pytestErrorRegex   = regexp.MustCompile(`(\d+) errors?\b`)
	pytestCaseRegex    = regexp.MustCompile(`^(\S+::\S+) (PASSED|FAILED|SKIPPED|ERROR)`)
)

// pytestNoTestsCollected is the pytest exit status for an empty collection.
const pytestNoTestsCollected = 5

// Pytest classifies pytest console output from its final summary line:
//
//	tests/test_pcie.py::test_scan PASSED
//	======= 30 passed, 2 failed, 3 skipped in 0.12s =======
type Pytest struct {
	state
	summary bool
	passed  int
	failed  int
	skipped int
	errors  int
}

// NewPytest creates a pytest harness.
func NewPytest() *Pytest {
	return &Pytest{}
}

// Name returns the harness name.
func (p *Pytest) Name() string { return string(model.HarnessPytest) }

// FeedLine consumes one output line.
func (p *Pytest) FeedLine(line string) {
	line = normalizeLine(line)

	if m := pytestCaseRegex.FindStringSubmatch(line); m != nil {
		p.setCase(m[1], pytestStatus(m[2]), 0)
		return
	}
	if !pytestSummaryRegex.MatchString(line) {
		return
	}

	p.summary = true
	p.passed = firstCount(pytestPassedRegex, line)
	p.failed = firstCount(pytestFailedRegex, line)
	p.skipped = firstCount(pytestSkippedRegex, line)
	p.errors = firstCount(pytestErrorRegex, line)
	p.classify()
}

func (p *Pytest) classify() {
	switch {
	case p.failed > 0 || p.errors > 0:
		p.fail(fmt.Sprintf("%d failed, %d errors", p.failed, p.errors))
	case p.passed > 0:
		p.pass(fmt.Sprintf("%d passed, %d skipped", p.passed, p.skipped))
	case p.skipped > 0:
		p.pass(fmt.Sprintf("all %d skipped", p.skipped))
	default:
		p.fail("no tests passed")
	}
}

// OnExit records the exit code. Exit status 5 means no tests were collected.
func (p *Pytest) OnExit(code *int) {
	p.recordExit(code)
	if code == nil {
		return
	}
	if *code == pytestNoTestsCollected {
		p.fail("no tests collected")
		return
	}
	if p.summary {
		p.failOnNonZeroExit()
	}
}

// Counts returns the passed, failed, skipped and error counts from the summary.
func (p *Pytest) Counts() (passed, failed, skipped, errors int) {
	return p.passed, p.failed, p.skipped, p.errors
}

func firstCount(re *regexp.Regexp, line string) int {
	m := re.FindStringSubmatch(line)
	if len(m) < 2 {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

func pytestStatus(s string) model.CaseStatus {
	switch s {
	case "PASSED":
		return model.CasePassed
	case "SKIPPED":
		return model.CaseSkipped
	default:
		return model.CaseFailed
	}
}
