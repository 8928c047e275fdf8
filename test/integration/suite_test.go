// Package integration runs whole suite descriptors end to end through the
// public API.
package integration

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antmicro/warp-pipe/pkg/twister"
)

var (
	fixturesDirOnce sync.Once
	fixturesDirPath string
)

// fixturesDir returns the path to the test fixtures directory.
func fixturesDir() string {
	fixturesDirOnce.Do(func() {
		_, filename, _, _ := runtime.Caller(0)
		fixturesDirPath = filepath.Join(filepath.Dir(filename), "..", "fixtures")
	})
	return fixturesDirPath
}

// copyFixture copies a fixture into a temporary directory so that run logs
// never land in the source tree. It returns the copied descriptor path.
func copyFixture(t *testing.T, name string) string {
	t.Helper()
	src := filepath.Join(fixturesDir(), name)
	dst := t.TempDir()

	entries, err := os.ReadDir(src)
	require.NoError(t, err)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(src, e.Name()))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dst, e.Name()), data, 0o644))
	}
	return filepath.Join(dst, "suite.yaml")
}

func quietOptions() twister.Options {
	return twister.Options{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}, Quiet: true}
}

func resultsByName(report twister.Report) map[string]twister.RunResult {
	m := make(map[string]twister.RunResult, len(report.Results))
	for _, r := range report.Results {
		m[r.Name] = r
	}
	return m
}

func TestMixedSuite(t *testing.T) {
	t.Parallel()
	path := copyFixture(t, "mixed")

	suite, err := twister.LoadSuite(path)
	require.NoError(t, err)
	require.Len(t, suite.Runs, 7)

	report := twister.RunSuite(context.Background(), suite, nil, quietOptions())
	results := resultsByName(report)

	tests := []struct {
		name   string
		want   twister.Verdict
		reason string
	}{
		{"kernel.common", twister.VerdictPassed, ""},
		{"kernel.fatal", twister.VerdictFailed, "ZEPHYR FATAL ERROR"},
		{"cpp.vector", twister.VerdictPassed, ""},
		{"hello_world", twister.VerdictPassed, ""},
		{"hangs", twister.VerdictTimeout, "Timeout"},
		{"needs.board", twister.VerdictBlockedByFixture, "missing fixture gpio_loopback"},
	}
	for _, tt := range tests {
		res, ok := results[tt.name]
		if !ok {
			t.Errorf("no result for %q", tt.name)
			continue
		}
		if res.Verdict != tt.want {
			t.Errorf("%s: verdict = %v, want %v (reason %q)", tt.name, res.Verdict, tt.want, res.Reason)
		}
		if tt.reason != "" && !strings.Contains(res.Reason, tt.reason) {
			t.Errorf("%s: reason = %q, want it to contain %q", tt.name, res.Reason, tt.reason)
		}
	}

	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "build.only", report.Skipped[0].Name)
	assert.Equal(t, twister.ExitFailure, twister.ExitCode(report))
	assert.Equal(t, 0, report.Leaked)

	common := results["kernel.common"]
	require.Len(t, common.Cases, 2)
	log, err := os.ReadFile(common.LogPath)
	require.NoError(t, err)
	assert.Contains(t, string(log), "PROJECT EXECUTION SUCCESSFUL")

	hangs, err := os.ReadFile(results["hangs"].LogPath)
	require.NoError(t, err)
	assert.Equal(t, "booting\n", string(hangs))

	assert.NoFileExists(t, results["needs.board"].LogPath)
}

func TestMixedSuite_WithFixture(t *testing.T) {
	t.Parallel()
	path := copyFixture(t, "mixed")

	suite, err := twister.LoadSuite(path)
	require.NoError(t, err)

	report := twister.RunSuite(context.Background(), suite, []string{"gpio_loopback"}, quietOptions())

	res := resultsByName(report)["needs.board"]
	assert.Equal(t, twister.VerdictPassed, res.Verdict)
	assert.Equal(t, 0, report.Blocked)
}

func TestCoProcessSuite(t *testing.T) {
	t.Parallel()
	path := copyFixture(t, "coprocess")

	suite, err := twister.LoadSuite(path)
	require.NoError(t, err)

	report := twister.RunSuite(context.Background(), suite, nil, quietOptions())

	require.Len(t, report.Results, 1)
	res := report.Results[0]
	assert.Equal(t, twister.VerdictPassed, res.Verdict, "reason: %s", res.Reason)
	assert.Equal(t, twister.ExitSuccess, twister.ExitCode(report))

	aux, err := os.ReadFile(res.LogPath + ".aux.log")
	require.NoError(t, err)
	assert.Contains(t, string(aux), "memory mock listening")
}

func TestInvalidSuite(t *testing.T) {
	t.Parallel()
	path := copyFixture(t, "invalid")

	_, err := twister.LoadSuite(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicates runs[0]")
	assert.Equal(t, twister.ExitConfigError, twister.ExitCodeForError(err))
}

func TestMissingSuite(t *testing.T) {
	t.Parallel()

	_, err := twister.LoadSuite(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, twister.ExitConfigError, twister.ExitCodeForError(err))
}
