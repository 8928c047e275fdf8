package pump

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	runerrors "github.com/antmicro/warp-pipe/internal/errors"
	"github.com/antmicro/warp-pipe/internal/harness"
	"github.com/antmicro/warp-pipe/internal/model"
	"github.com/antmicro/warp-pipe/internal/testing/mocks"
)

func TestPump_FeedsLinesWithoutTerminator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", []string{}},
		{"single terminated", "a\n", []string{"a"}},
		{"unterminated last line", "a\nb", []string{"a", "b"}},
		{"blank lines kept", "a\n\n\nb\n", []string{"a", "", "", "b"}},
		{"carriage return left to harness", "a\r\n", []string{"a\r"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := mocks.NewHarness("mock")
			p := &Pump{Label: tt.name, Harness: h}

			res, err := p.Run(strings.NewReader(tt.input))
			require.NoError(t, err)

			if diff := cmp.Diff(tt.want, h.Lines()); diff != "" {
				t.Errorf("fed lines mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, tt.input, string(res.Transcript))
			assert.Equal(t, len(tt.want), res.Lines)
		})
	}
}

func TestPump_TenThousandLines(t *testing.T) {
	t.Parallel()

	lines := make([]string, 10000)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %05d \x1b[32mok\x1b[0m", i)
	}
	input := strings.Join(lines, "\n") + "\n"
	logPath := filepath.Join(t.TempDir(), "handler.log")

	h := mocks.NewHarness("mock")
	transcript, err := Run(strings.NewReader(input), h, logPath)
	require.NoError(t, err)

	assert.Equal(t, input, transcript)
	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, input, string(data))

	if diff := cmp.Diff(lines, h.Lines()); diff != "" {
		t.Errorf("fed lines mismatch (-want +got):\n%s", diff)
	}
}

func TestPump_LongLine(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 1<<20)
	h := mocks.NewHarness("mock")
	res, err := (&Pump{Harness: h}).Run(strings.NewReader(long + "\nPASS\n"))
	require.NoError(t, err)

	got := h.Lines()
	require.Len(t, got, 2)
	assert.Len(t, got[0], 1<<20)
	assert.Equal(t, model.VerdictPassed, h.Verdict())
	assert.Equal(t, 2, res.Lines)
}

func TestPump_HarnessPanicKeepsDraining(t *testing.T) {
	t.Parallel()

	logPath := filepath.Join(t.TempDir(), "handler.log")
	h := mocks.NewHarness("mock").WithPanicOn("boom")
	p := &Pump{Label: "faulty", Harness: h, LogPath: logPath}

	input := "first\nboom\nafter\nPASS\n"
	res, err := p.Run(strings.NewReader(input))
	require.NoError(t, err)

	require.Error(t, res.Fault)
	kind, ok := runerrors.KindOf(res.Fault)
	require.True(t, ok)
	assert.Equal(t, runerrors.KindHarnessFault, kind)

	assert.Equal(t, []string{"first", "boom"}, h.Lines(), "no lines fed after the panic")
	assert.Equal(t, model.VerdictUndetermined, h.Verdict())
	assert.Equal(t, input, string(res.Transcript))

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, input, string(data))
}

func TestRun_ReturnsFault(t *testing.T) {
	t.Parallel()

	_, err := Run(strings.NewReader("boom\n"), mocks.NewHarness("mock").WithPanicOn("boom"), "")
	assert.ErrorIs(t, err, &runerrors.RunError{Kind: runerrors.KindHarnessFault})
}

type failingReader struct {
	data string
	err  error
	done bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.done {
		return 0, r.err
	}
	r.done = true
	return copy(p, r.data), nil
}

func TestPump_ReadErrorKeepsPartialTranscript(t *testing.T) {
	t.Parallel()

	logPath := filepath.Join(t.TempDir(), "handler.log")
	closed := errors.New("read |0: file already closed")
	r := &failingReader{data: "booting\npartial", err: closed}

	h := mocks.NewHarness("mock")
	res, err := (&Pump{Harness: h, LogPath: logPath}).Run(r)
	require.NoError(t, err)

	assert.ErrorIs(t, res.ReadErr, closed)
	assert.Equal(t, []string{"booting", "partial"}, h.Lines())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, "booting\npartial", string(data))
}

func TestPump_WithRealHarness(t *testing.T) {
	t.Parallel()

	h := harness.NewZtest()
	input := "*** Booting Zephyr OS ***\n" +
		"Running TESTSUITE pcie\n" +
		"START - test_scan\n" +
		" PASS - test_scan in 0.010 seconds\n" +
		"TESTSUITE pcie succeeded\n" +
		"PROJECT EXECUTION SUCCESSFUL\n"

	_, err := Run(strings.NewReader(input), h, "")
	require.NoError(t, err)
	assert.Equal(t, model.VerdictPassed, h.Verdict())
}

func TestWriteFileAtomic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "handler.log")

	require.NoError(t, WriteFileAtomic(path, []byte("first")))
	require.NoError(t, WriteFileAtomic(path, []byte("second")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestPump_LogWriteFailure(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	_, err := (&Pump{LogPath: filepath.Join(file, "handler.log")}).Run(io.LimitReader(strings.NewReader("x\n"), 2))
	assert.Error(t, err)
}
