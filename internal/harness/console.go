package harness

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/antmicro/warp-pipe/internal/model"
)

// Console matching modes.
const (
	ConsoleOneLine   = "one_line"
	ConsoleMultiLine = "multi_line"
)

// Console passes when configured regular expressions are seen in the output.
//
// In one_line mode a single match of any pattern is enough. In multi_line
// mode every pattern must match at least once; with Ordered set, patterns must
// first appear in the order they were declared. Without patterns the harness
// falls back to the PROJECT EXECUTION markers.
type Console struct {
	state
	mode     string
	ordered  bool
	patterns []*regexp.Regexp
	seen     []bool
	order    []int
}

// NewConsole creates a console harness from cfg.
func NewConsole(cfg model.HarnessConfig) (*Console, error) {
	mode := strings.ToLower(cfg.Type)
	if mode == "" {
		mode = ConsoleOneLine
	}
	if mode != ConsoleOneLine && mode != ConsoleMultiLine {
		return nil, fmt.Errorf("console harness: unknown type %q (want %s or %s)", cfg.Type, ConsoleOneLine, ConsoleMultiLine)
	}

	c := &Console{mode: mode, ordered: cfg.Ordered}
	for _, expr := range cfg.Regex {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("console harness: invalid regex %q: %w", expr, err)
		}
		c.patterns = append(c.patterns, re)
	}
	c.seen = make([]bool, len(c.patterns))
	return c, nil
}

// Name returns the harness name.
func (c *Console) Name() string { return string(model.HarnessConsole) }

// FeedLine consumes one output line.
func (c *Console) FeedLine(line string) {
	line = normalizeLine(line)

	// A fault overrides anything matched before it.
	if strings.Contains(line, markerFault) {
		c.fail(markerFault)
		return
	}
	if c.verdict.Terminal() {
		return
	}

	if len(c.patterns) == 0 {
		switch {
		case strings.Contains(line, markerSuccess):
			c.pass(markerSuccess)
		case strings.Contains(line, markerFailure):
			c.fail(markerFailure)
		}
		return
	}

	for i, re := range c.patterns {
		if c.seen[i] || !re.MatchString(line) {
			continue
		}
		c.seen[i] = true
		c.order = append(c.order, i)
		if c.mode == ConsoleOneLine {
			c.pass(fmt.Sprintf("matched %q", re.String()))
			return
		}
	}

	if len(c.order) == len(c.patterns) {
		c.finishMultiLine()
	}
}

func (c *Console) finishMultiLine() {
	if c.ordered {
		for i, idx := range c.order {
			if i != idx {
				c.fail(fmt.Sprintf("pattern %q matched out of order", c.patterns[idx].String()))
				return
			}
		}
	}
	c.pass(fmt.Sprintf("matched all %d patterns", len(c.patterns)))
}

// OnExit records the exit code. Console verdicts depend only on output.
func (c *Console) OnExit(code *int) {
	c.recordExit(code)
}
