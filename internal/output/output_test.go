package output

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/antmicro/warp-pipe/internal/model"
)

// newTestWriter creates a Writer with captured output for testing.
func newTestWriter() (*Writer, *bytes.Buffer, *bytes.Buffer) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	return NewWithWriters(stdout, stderr, false), stdout, stderr
}

func TestNew(t *testing.T) {
	w := New()
	if w == nil {
		t.Fatal("New() returned nil")
	}
	if w.out == nil {
		t.Error("out writer is nil")
	}
	if w.err == nil {
		t.Error("err writer is nil")
	}
}

func TestWriter_Println(t *testing.T) {
	t.Parallel()
	w, stdout, _ := newTestWriter()

	w.Println("hello %s", "world")

	if got := stdout.String(); got != "hello world\n" {
		t.Errorf("Println() = %q, want %q", got, "hello world\n")
	}
}

func TestWriter_Info(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		quiet  bool
		expect string
	}{
		{"normal mode", false, "info message\n"},
		{"quiet mode", true, ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w, stdout, _ := newTestWriter()
			w.SetQuiet(tt.quiet)

			w.Info("info %s", "message")

			if got := stdout.String(); got != tt.expect {
				t.Errorf("Info() = %q, want %q", got, tt.expect)
			}
		})
	}
}

func TestWriter_Warning(t *testing.T) {
	t.Parallel()
	w, _, stderr := newTestWriter()

	w.Warning("unknown field %q", "jobs")

	if got, want := stderr.String(), "warning: unknown field \"jobs\"\n"; got != want {
		t.Errorf("Warning() = %q, want %q", got, want)
	}
}

func TestWriter_VerdictTitle(t *testing.T) {
	t.Parallel()
	w, _, _ := newTestWriter()

	tests := map[model.Verdict]string{
		model.VerdictPassed:           "Passed",
		model.VerdictFailed:           "Failed",
		model.VerdictTimeout:          "Timeout",
		model.VerdictError:            "Error",
		model.VerdictUndetermined:     "Undetermined",
		model.VerdictBlockedByFixture: "Blocked",
	}
	for v, want := range tests {
		if got := w.VerdictTitle(v); got != want {
			t.Errorf("VerdictTitle(%v) = %q, want %q", v, got, want)
		}
	}
}

func TestWriter_RunResult(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		res        model.RunResult
		wantStdout string
		wantStderr string
	}{
		{
			name:       "passed",
			res:        model.RunResult{Name: "hello", Verdict: model.VerdictPassed, Elapsed: 1500 * time.Millisecond, Reason: "ignored"},
			wantStdout: "[hello] Passed (1.5s)\n",
		},
		{
			name:       "timeout with log",
			res:        model.RunResult{Name: "hang", Verdict: model.VerdictTimeout, Elapsed: 200 * time.Millisecond, Reason: "Timeout", LogPath: "/tmp/handler.log"},
			wantStderr: "[hang] Timeout (200ms) Timeout\n  log: /tmp/handler.log\n",
		},
		{
			name:       "leaked",
			res:        model.RunResult{Name: "leak", Verdict: model.VerdictError, Reason: "possible leaked process", ProcessLeaked: true},
			wantStderr: "[leak] Error (0s) possible leaked process [leaked process]\n",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w, stdout, stderr := newTestWriter()

			w.RunResult(tt.res)

			if got := stdout.String(); got != tt.wantStdout {
				t.Errorf("stdout = %q, want %q", got, tt.wantStdout)
			}
			if got := stderr.String(); got != tt.wantStderr {
				t.Errorf("stderr = %q, want %q", got, tt.wantStderr)
			}
		})
	}
}

func TestWriter_RunStartAndSkipped(t *testing.T) {
	t.Parallel()
	w, stdout, _ := newTestWriter()

	w.RunStart(model.TestRun{Name: "scan", Harness: model.HarnessZtest, Command: []string{"./zephyr.exe", "-seed=1"}})
	w.RunSkipped("build_only", "unknown harness")

	want := "[scan] ztest: ./zephyr.exe -seed=1\n[build_only] Skipped unknown harness\n"
	if got := stdout.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestWriter_QuietSuppressesPasses(t *testing.T) {
	t.Parallel()
	w, stdout, stderr := newTestWriter()
	w.SetQuiet(true)

	w.RunStart(model.TestRun{Name: "a"})
	w.RunResult(model.RunResult{Name: "a", Verdict: model.VerdictPassed})
	w.RunResult(model.RunResult{Name: "b", Verdict: model.VerdictFailed})

	if stdout.Len() != 0 {
		t.Errorf("stdout = %q, want empty in quiet mode", stdout.String())
	}
	if !strings.Contains(stderr.String(), "[b] Failed") {
		t.Errorf("stderr = %q, want failure line", stderr.String())
	}
}

func TestWriter_Color(t *testing.T) {
	t.Parallel()
	stdout := &bytes.Buffer{}
	w := NewWithWriters(stdout, &bytes.Buffer{}, true)

	w.RunResult(model.RunResult{Name: "a", Verdict: model.VerdictPassed})

	if !strings.Contains(stdout.String(), "\x1b[32m") {
		t.Errorf("output = %q, want green escape", stdout.String())
	}
}

func TestWriter_Summary(t *testing.T) {
	t.Parallel()
	w, stdout, _ := newTestWriter()

	w.SummaryHeader("Suite Summary")
	w.SummaryPassed("Passed", "3")
	w.SummaryFailed("Failed", "1")
	w.SummaryItem("Total", "4")
	w.FinalFailure("%d of %d runs failed.", 1, 4)

	want := "\n=== Suite Summary ===\n\n  Passed: 3\n  Failed: 1\n  Total: 4\n\n1 of 4 runs failed.\n"
	if got := stdout.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestWriter_Table(t *testing.T) {
	t.Parallel()
	w, stdout, _ := newTestWriter()

	w.Table([]string{"RUN", "VERDICT"}, [][]string{{"pcie_scan", "Passed"}, {"a", "Timeout"}})

	want := "RUN        VERDICT\n---------  -------\npcie_scan  Passed\na          Timeout\n"
	if got := stdout.String(); got != want {
		t.Errorf("Table() = %q, want %q", got, want)
	}
}

func TestWriter_CaseTable(t *testing.T) {
	t.Parallel()
	w, stdout, _ := newTestWriter()

	w.CaseTable(model.RunResult{Name: "empty"})
	if stdout.Len() != 0 {
		t.Fatalf("CaseTable() without cases wrote %q", stdout.String())
	}

	w.CaseTable(model.RunResult{
		Name: "kernel.common",
		Cases: []model.CaseResult{
			{Name: "atomic", Status: model.CasePassed},
			{Name: "bitfield", Status: model.CaseFailed},
		},
	})
	got := stdout.String()
	for _, want := range []string{"kernel.common", "atomic", "passed", "bitfield", "failed"} {
		if !strings.Contains(got, want) {
			t.Errorf("CaseTable() output missing %q:\n%s", want, got)
		}
	}
}

func TestWriter_ConcurrentLines(t *testing.T) {
	t.Parallel()
	w, stdout, _ := newTestWriter()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.RunResult(model.RunResult{Name: "same", Verdict: model.VerdictPassed})
		}()
	}
	wg.Wait()

	for _, line := range strings.Split(strings.TrimSuffix(stdout.String(), "\n"), "\n") {
		if line != "[same] Passed (0s)" {
			t.Fatalf("interleaved line %q", line)
		}
	}
}
