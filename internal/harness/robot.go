package harness

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/antmicro/warp-pipe/internal/model"
)

var (
	robotStatusRegex  = regexp.MustCompile(`^(.+?)\s+\| (PASS|FAIL|SKIP) \|`)
	robotSummaryRegex = regexp.MustCompile(`^(\d+) tests?, (\d+) passed, (\d+) failed(?:, (\d+) skipped)?`)
)

// Robot classifies Robot Framework console output:
//
//	Scan Bus                                                  | PASS |
//	------------------------------------------------------------------
//	Pcie                                                      | PASS |
//	1 test, 1 passed, 0 failed
//
// A status line directly followed by a summary belongs to a suite rather
// than a test case. The exit code of the robot process is authoritative; the
// summary is used only when the process did not report one.
type Robot struct {
	state
	summary bool
	passed  int
	failed  int
	pending *model.CaseResult
}

// NewRobot creates a robot harness.
func NewRobot() *Robot {
	return &Robot{}
}

// Name returns the harness name.
func (r *Robot) Name() string { return string(model.HarnessRobot) }

// FeedLine consumes one output line.
func (r *Robot) FeedLine(line string) {
	line = normalizeLine(line)

	if m := robotSummaryRegex.FindStringSubmatch(line); m != nil {
		// Nested suites print one summary each; the last one is the total.
		r.pending = nil
		r.summary = true
		r.passed, _ = strconv.Atoi(m[2])
		r.failed, _ = strconv.Atoi(m[3])
		return
	}

	r.commitPending()
	if m := robotStatusRegex.FindStringSubmatch(line); m != nil {
		r.pending = &model.CaseResult{Name: strings.TrimSpace(m[1]), Status: robotStatus(m[2])}
	}
}

func (r *Robot) commitPending() {
	if r.pending == nil {
		return
	}
	r.setCase(r.pending.Name, r.pending.Status, 0)
	r.pending = nil
}

// OnExit decides the verdict. Robot returns the number of failed tests as
// its exit status, so 0 means every test passed.
func (r *Robot) OnExit(code *int) {
	r.commitPending()
	r.recordExit(code)
	if code != nil {
		if *code == 0 {
			r.pass("robot exited with 0")
		} else {
			r.fail(fmt.Sprintf("robot exited with %d", *code))
		}
		return
	}
	if !r.summary {
		return
	}
	if r.failed > 0 {
		r.fail(fmt.Sprintf("%d test(s) failed", r.failed))
		return
	}
	r.pass(fmt.Sprintf("%d test(s) passed", r.passed))
}

func robotStatus(s string) model.CaseStatus {
	switch s {
	case "PASS":
		return model.CasePassed
	case "SKIP":
		return model.CaseSkipped
	default:
		return model.CaseFailed
	}
}
