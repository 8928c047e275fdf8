// Package output prints per-run status lines and suite summaries.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/antmicro/warp-pipe/internal/model"
)

// Writer handles console output formatting. It is safe for concurrent use;
// each call writes whole lines.
type Writer struct {
	mu    sync.Mutex
	out   io.Writer
	err   io.Writer
	color bool
	quiet bool

	green  *color.Color
	red    *color.Color
	yellow *color.Color
	cyan   *color.Color
	bold   *color.Color
	dim    *color.Color
}

// New creates a new Writer with default settings. Colors follow the
// terminal detection of fatih/color (NO_COLOR, non-TTY output).
func New() *Writer {
	return NewWithWriters(os.Stdout, os.Stderr, !color.NoColor)
}

// NewWithWriters creates a Writer with custom io.Writers (for testing).
func NewWithWriters(out, err io.Writer, useColor bool) *Writer {
	w := &Writer{
		out:    out,
		err:    err,
		color:  useColor,
		green:  color.New(color.FgGreen),
		red:    color.New(color.FgRed),
		yellow: color.New(color.FgYellow),
		cyan:   color.New(color.FgCyan, color.Bold),
		bold:   color.New(color.Bold),
		dim:    color.New(color.Faint),
	}
	for _, c := range []*color.Color{w.green, w.red, w.yellow, w.cyan, w.bold, w.dim} {
		if useColor {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return w
}

// SetQuiet enables or disables quiet mode.
func (w *Writer) SetQuiet(quiet bool) {
	w.mu.Lock()
	w.quiet = quiet
	w.mu.Unlock()
}

// Println writes a line to stdout.
func (w *Writer) Println(format string, args ...interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out, format+"\n", args...)
}

// Errorln writes a line to stderr.
func (w *Writer) Errorln(format string, args ...interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.err, format+"\n", args...)
}

func (w *Writer) isQuiet() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.quiet
}

// Info prints an info message (skipped in quiet mode).
func (w *Writer) Info(format string, args ...interface{}) {
	if w.isQuiet() {
		return
	}
	w.Println(format, args...)
}

// Warning prints a warning message.
func (w *Writer) Warning(format string, args ...interface{}) {
	w.Errorln("%s %s", w.yellow.Sprint("warning:"), fmt.Sprintf(format, args...))
}

// VerdictTitle returns the display form of a verdict, e.g. "Passed".
func (w *Writer) VerdictTitle(v model.Verdict) string {
	if v == model.VerdictBlockedByFixture {
		return "Blocked"
	}
	// Casers keep state, so each call gets its own.
	return cases.Title(language.English).String(v.String())
}

func (w *Writer) verdictColor(v model.Verdict) *color.Color {
	switch v {
	case model.VerdictPassed:
		return w.green
	case model.VerdictBlockedByFixture, model.VerdictUndetermined:
		return w.yellow
	default:
		return w.red
	}
}

// RunStart prints the start of a run.
func (w *Writer) RunStart(run model.TestRun) {
	if w.isQuiet() {
		return
	}
	w.Println("%s %s", w.cyan.Sprintf("[%s]", run.Label()), w.dim.Sprintf("%s: %s", run.Harness, strings.Join(run.Command, " ")))
}

// RunResult prints the outcome of a run. Failures go to stderr.
func (w *Writer) RunResult(res model.RunResult) {
	status := w.verdictColor(res.Verdict).Sprint(w.VerdictTitle(res.Verdict))
	line := fmt.Sprintf("%s %s %s", w.cyan.Sprintf("[%s]", res.Name), status, w.dim.Sprintf("(%s)", formatElapsed(res.Elapsed)))
	if res.Reason != "" && !res.OK() {
		line += " " + res.Reason
	}
	if res.ProcessLeaked {
		line += " " + w.red.Sprint("[leaked process]")
	}

	if res.OK() {
		if !w.isQuiet() {
			w.Println("%s", line)
		}
		return
	}
	w.Errorln("%s", line)
	if res.LogPath != "" {
		w.Errorln("  %s %s", w.dim.Sprint("log:"), res.LogPath)
	}
}

// RunSkipped prints a run that was not executed.
func (w *Writer) RunSkipped(name, reason string) {
	if w.isQuiet() {
		return
	}
	w.Println("%s %s %s", w.cyan.Sprintf("[%s]", name), w.yellow.Sprint("Skipped"), w.dim.Sprint(reason))
}

// SummaryHeader prints a summary section header.
func (w *Writer) SummaryHeader(title string) {
	w.Println("")
	w.Println("%s", w.bold.Sprintf("=== %s ===", title))
	w.Println("")
}

// SummaryItem prints a labeled summary item with value.
func (w *Writer) SummaryItem(label, value string) {
	w.Println("  %s %s", w.dim.Sprintf("%s:", label), value)
}

// SummaryPassed prints a passed/success items summary.
func (w *Writer) SummaryPassed(label, value string) {
	w.Println("  %s %s", w.dim.Sprintf("%s:", label), w.green.Sprint(value))
}

// SummaryFailed prints a failed items summary.
func (w *Writer) SummaryFailed(label, value string) {
	w.Println("  %s %s", w.dim.Sprintf("%s:", label), w.red.Sprint(value))
}

// FinalSuccess prints a final success message.
func (w *Writer) FinalSuccess(format string, args ...interface{}) {
	w.Println("")
	w.Println("%s", w.green.Sprintf(format, args...))
}

// FinalFailure prints a final failure message.
func (w *Writer) FinalFailure(format string, args ...interface{}) {
	w.Println("")
	w.Println("%s", w.red.Sprintf(format, args...))
}

// Table prints a simple table.
func (w *Writer) Table(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var headerParts []string
	for i, h := range headers {
		headerParts = append(headerParts, fmt.Sprintf("%-*s", widths[i], h))
	}
	w.Println("%s", strings.TrimRight(strings.Join(headerParts, "  "), " "))

	var sepParts []string
	for _, width := range widths {
		sepParts = append(sepParts, strings.Repeat("-", width))
	}
	w.Println("%s", strings.Join(sepParts, "  "))

	for _, row := range rows {
		var rowParts []string
		for i, cell := range row {
			if i < len(widths) {
				rowParts = append(rowParts, fmt.Sprintf("%-*s", widths[i], cell))
			}
		}
		w.Println("%s", strings.TrimRight(strings.Join(rowParts, "  "), " "))
	}
}

// CaseTable prints the test cases reported for a run. Runs without cases
// print nothing.
func (w *Writer) CaseTable(res model.RunResult) {
	if len(res.Cases) == 0 {
		return
	}
	t := table.NewWriter()
	t.SetTitle(res.Name)
	t.AppendHeader(table.Row{"Case", "Status", "Duration"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Case", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
	})
	for _, c := range res.Cases {
		t.AppendRow(table.Row{c.Name, string(c.Status), formatElapsed(c.Duration)})
	}
	t.SetStyle(table.StyleLight)
	w.Println("%s", t.Render())
}

func formatElapsed(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(10 * time.Millisecond).String()
}
