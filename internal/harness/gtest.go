package harness

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/antmicro/warp-pipe/internal/model"
)

// Static regexes for googletest output.
var (
	gtestRunRegex      = regexp.MustCompile(`^\[ RUN      \] (\S+)`)
	gtestOKRegex       = regexp.MustCompile(`^\[       OK \] (\S+)(?: \((\d+) ms\))?`)
	gtestFailedRegex   = regexp.MustCompile(`^\[  FAILED  \] ([^\s,]+\.[^\s,]+)(?: \((\d+) ms\))?`)
	gtestSkippedRegex  = regexp.MustCompile(`^\[  SKIPPED \] ([^\s,]+\.[^\s,]+)`)
	gtestFinishedRegex = regexp.MustCompile(`^\[==========\] (?:\d+ tests? from .* ran\.|Done running all tests\.)`)
)

// Gtest classifies googletest output. The run is complete once the final
// "[==========] N tests from M test suites ran." line is printed.
type Gtest struct {
	state
	finished bool
}

// NewGtest creates a gtest harness.
func NewGtest() *Gtest {
	return &Gtest{}
}

// Name returns the harness name.
func (g *Gtest) Name() string { return string(model.HarnessGtest) }

// FeedLine consumes one output line.
func (g *Gtest) FeedLine(line string) {
	line = strings.TrimLeft(normalizeLine(line), " ")

	if strings.Contains(line, markerFault) {
		g.fail(markerFault)
		return
	}
	if g.verdict.Terminal() {
		return
	}

	if m := gtestRunRegex.FindStringSubmatch(line); m != nil {
		g.setCase(m[1], model.CaseBlocked, 0)
		return
	}
	if m := gtestOKRegex.FindStringSubmatch(line); m != nil {
		g.setCase(m[1], model.CasePassed, millis(m[2]))
		return
	}
	if m := gtestFailedRegex.FindStringSubmatch(line); m != nil {
		g.setCase(m[1], model.CaseFailed, millis(m[2]))
		return
	}
	if m := gtestSkippedRegex.FindStringSubmatch(line); m != nil {
		g.setCase(m[1], model.CaseSkipped, 0)
		return
	}
	if gtestFinishedRegex.MatchString(line) {
		g.finished = true
		g.classify()
	}
}

func (g *Gtest) classify() {
	failed := g.countCases(model.CaseFailed)
	unfinished := g.countCases(model.CaseBlocked)
	switch {
	case failed > 0:
		g.fail(fmt.Sprintf("%d test(s) failed", failed))
	case unfinished > 0:
		g.fail(fmt.Sprintf("%d test(s) did not finish", unfinished))
	default:
		g.pass(fmt.Sprintf("%d test(s) passed", g.countCases(model.CasePassed)))
	}
}

// OnExit records the exit code and fails a passed run on non-zero exit.
func (g *Gtest) OnExit(code *int) {
	g.recordExit(code)
	if g.finished {
		g.failOnNonZeroExit()
	}
}

func millis(v string) time.Duration {
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return time.Duration(n) * time.Millisecond
}
