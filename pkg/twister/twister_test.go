package twister_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	runerrors "github.com/antmicro/warp-pipe/internal/errors"
	"github.com/antmicro/warp-pipe/pkg/twister"
)

func TestExitCodeValues(t *testing.T) {
	tests := []struct {
		name     string
		constant int
		expected int
	}{
		{"ExitSuccess", twister.ExitSuccess, 0},
		{"ExitFailure", twister.ExitFailure, 1},
		{"ExitConfigError", twister.ExitConfigError, 2},
		{"ExitLeakedProcess", twister.ExitLeakedProcess, 3},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if tt.constant != tt.expected {
				t.Errorf("twister.%s = %d, want %d", tt.name, tt.constant, tt.expected)
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		report twister.Report
		want   int
	}{
		{"empty", twister.Report{}, twister.ExitSuccess},
		{"passed", twister.Report{Passed: 2}, twister.ExitSuccess},
		{"blocked only", twister.Report{Blocked: 1}, twister.ExitSuccess},
		{"failed", twister.Report{Passed: 1, Failed: 1}, twister.ExitFailure},
		{"undetermined", twister.Report{Undetermined: 1}, twister.ExitFailure},
		{"timeout", twister.Report{TimedOut: 1}, twister.ExitFailure},
		{"leaked", twister.Report{Errored: 1, Leaked: 1}, twister.ExitLeakedProcess},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := twister.ExitCode(tt.report); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExitCodeForError(t *testing.T) {
	t.Parallel()

	assert.Equal(t, twister.ExitSuccess, twister.ExitCodeForError(nil))
	assert.Equal(t, twister.ExitConfigError, twister.ExitCodeForError(runerrors.Config("bad")))
}

func TestRunnable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		run      twister.TestRun
		fixtures []string
		want     bool
	}{
		{"ztest", twister.TestRun{Harness: "ztest"}, nil, true},
		{"unknown harness", twister.TestRun{Harness: "keyboard"}, nil, false},
		{"empty harness", twister.TestRun{}, nil, false},
		{"missing fixture", twister.TestRun{Harness: "console", Fixture: "board"}, nil, false},
		{"supplied fixture", twister.TestRun{Harness: "console", Fixture: "board"}, []string{"board"}, true},
		{
			"fixture from harness config",
			twister.TestRun{Harness: "pytest", HarnessConfig: twister.HarnessConfig{Fixture: "usb"}},
			[]string{"board"},
			false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := twister.Runnable(tt.run, tt.fixtures...); got != tt.want {
				t.Errorf("Runnable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	run := twister.TestRun{
		Name:             "hello",
		Command:          []string{"/bin/sh", "-c", "echo 'Running TESTSUITE hello'; echo 'PROJECT EXECUTION SUCCESSFUL'"},
		WorkingDirectory: dir,
		Harness:          "ztest",
		Timeout:          10 * time.Second,
		LogPath:          filepath.Join(dir, "handler.log"),
	}

	reg := prometheus.NewRegistry()
	res := twister.Run(context.Background(), run, twister.Options{Registerer: reg})

	assert.Equal(t, twister.VerdictPassed, res.Verdict)
	assert.FileExists(t, run.LogPath)
	assert.Equal(t, 1, testutil.CollectAndCount(reg, "warppipe_runs_total"))
}

func TestRunSuite(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	descriptor := `
settings:
  parallel: 2
  default_timeout: 10s
  terminate_grace: 200ms
  kill_wait: 2s
runs:
  - name: passes
    harness: ztest
    log_path: passes.log
    command: ["/bin/sh", "-c", "echo 'PROJECT EXECUTION SUCCESSFUL'"]
  - name: needs-board
    harness: ztest
    fixture: board
    log_path: needs-board.log
    command: ["/bin/sh", "-c", "echo 'PROJECT EXECUTION SUCCESSFUL'"]
  - name: build-only
    harness: keyboard
    command: ["/bin/true"]
    log_path: build-only.log
`
	path := filepath.Join(dir, "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(descriptor), 0o644))

	suite, err := twister.LoadSuite(path)
	require.NoError(t, err)

	var stdout bytes.Buffer
	color := false
	report := twister.RunSuite(context.Background(), suite, nil, twister.Options{
		Stdout: &stdout,
		Stderr: &bytes.Buffer{},
		Color:  &color,
	})

	require.Len(t, report.Results, 2)
	assert.Equal(t, twister.VerdictPassed, report.Results[0].Verdict)
	assert.Equal(t, twister.VerdictBlockedByFixture, report.Results[1].Verdict)
	assert.Len(t, report.Skipped, 1)
	assert.Equal(t, twister.ExitSuccess, twister.ExitCode(report))
	assert.Contains(t, stdout.String(), "Suite Summary")

	report = twister.RunSuite(context.Background(), suite, []string{"board"}, twister.Options{
		Stdout: &bytes.Buffer{},
		Stderr: &bytes.Buffer{},
		Quiet:  true,
	})
	require.Len(t, report.Results, 2)
	assert.Equal(t, twister.VerdictPassed, report.Results[1].Verdict)
}

func TestLoadSuite_Invalid(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte("runs:\n  - name: no-command\n"), 0o644))

	_, err := twister.LoadSuite(path)
	require.Error(t, err)
	assert.Equal(t, twister.ExitConfigError, twister.ExitCodeForError(err))
}
