// Package process spawns and terminates the OS processes of a test run.
//
// Every process is started in its own process group so that termination
// reaches helpers it forked. A Handle is reaped by a background goroutine as
// soon as the process exits, so callers only ever wait with a bound.
package process

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"sort"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// OutputMode selects where the combined stdout/stderr of a process goes.
type OutputMode int

const (
	// OutputDiscard sends output to the null device.
	OutputDiscard OutputMode = iota
	// OutputPipe exposes output through Handle.Output.
	OutputPipe
	// OutputFile writes output to Spec.OutputPath.
	OutputFile
)

// Spec describes a process to start.
type Spec struct {
	Command    []string
	Dir        string
	Env        map[string]string
	Output     OutputMode
	OutputPath string
}

// ErrEmptyCommand is returned by Start for a spec without argv.
var ErrEmptyCommand = errors.New("empty command")

// Handle owns one spawned OS process.
type Handle struct {
	cmd    *exec.Cmd
	pid    int
	output *os.File
	sink   *os.File

	done    chan struct{}
	waitErr error
}

// Start spawns the process described by spec.
func Start(spec Spec) (*Handle, error) {
	if len(spec.Command) == 0 || spec.Command[0] == "" {
		return nil, ErrEmptyCommand
	}

	cmd := exec.Command(spec.Command[0], spec.Command[1:]...)
	cmd.Dir = spec.Dir
	cmd.Env = Environ(spec.Env)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	h := &Handle{cmd: cmd, done: make(chan struct{})}

	// Both streams share one pipe so the transcript keeps the interleaving
	// the process produced.
	var writeEnd *os.File
	switch spec.Output {
	case OutputPipe:
		r, w, err := os.Pipe()
		if err != nil {
			return nil, fmt.Errorf("create output pipe: %w", err)
		}
		h.output, writeEnd = r, w
		cmd.Stdout, cmd.Stderr = w, w
	case OutputFile:
		if err := os.MkdirAll(filepath.Dir(spec.OutputPath), 0o755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
		f, err := os.Create(spec.OutputPath)
		if err != nil {
			return nil, fmt.Errorf("create output file: %w", err)
		}
		h.sink = f
		cmd.Stdout, cmd.Stderr = f, f
	}

	if err := cmd.Start(); err != nil {
		if writeEnd != nil {
			_ = writeEnd.Close()
			_ = h.output.Close()
		}
		if h.sink != nil {
			_ = h.sink.Close()
		}
		return nil, err
	}
	// The child holds its own copy; keeping ours would prevent EOF.
	if writeEnd != nil {
		_ = writeEnd.Close()
	}

	h.pid = cmd.Process.Pid
	go h.reap()
	return h, nil
}

func (h *Handle) reap() {
	h.waitErr = h.cmd.Wait()
	if h.sink != nil {
		_ = h.sink.Close()
	}
	close(h.done)
}

// Pid returns the process ID, which is also its process group ID.
func (h *Handle) Pid() int { return h.pid }

// Output returns the read end of the combined output pipe, or nil if the
// process was not started with OutputPipe.
func (h *Handle) Output() io.ReadCloser {
	if h.output == nil {
		return nil
	}
	return h.output
}

// CloseOutput closes the read end of the output pipe. A reader blocked on it
// returns immediately.
func (h *Handle) CloseOutput() error {
	if h.output == nil {
		return nil
	}
	return h.output.Close()
}

// Done is closed once the process has exited and been reaped.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Exited reports whether the process has been reaped.
func (h *Handle) Exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the process exits or timeout elapses and reports
// whether it exited.
func (h *Handle) Wait(timeout time.Duration) bool {
	if h.Exited() {
		return true
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-h.done:
		return true
	case <-t.C:
		return false
	}
}

// ExitCode returns the exit status of a reaped process. It is nil while
// the process runs and when it was terminated by a signal.
func (h *Handle) ExitCode() *int {
	if !h.Exited() || h.cmd.ProcessState == nil {
		return nil
	}
	code := h.cmd.ProcessState.ExitCode()
	if code < 0 {
		return nil
	}
	return &code
}

// WaitErr returns the error from reaping the process, nil while running.
func (h *Handle) WaitErr() error {
	if !h.Exited() {
		return nil
	}
	return h.waitErr
}

// Terminate asks the process group to exit with SIGTERM.
func (h *Handle) Terminate() error {
	return h.signalGroup(unix.SIGTERM)
}

// Kill sends SIGKILL to the process group and to every descendant that left
// the group.
func (h *Handle) Kill() error {
	// Collect descendants first: once the leader dies they are reparented
	// and can no longer be found through it.
	var descendants []int32
	if !h.Exited() {
		descendants = Descendants(int32(h.pid))
	}

	return errors.Join(h.signalGroup(unix.SIGKILL), KillTree(descendants))
}

func (h *Handle) signalGroup(sig unix.Signal) error {
	err := unix.Kill(-h.pid, sig)
	if err == nil || errors.Is(err, unix.ESRCH) {
		// The group may be gone while the leader is still unreaped.
		if !h.Exited() {
			if perr := unix.Kill(h.pid, sig); perr != nil && !errors.Is(perr, unix.ESRCH) {
				return fmt.Errorf("signal %d: %w", h.pid, perr)
			}
		}
		return nil
	}
	return fmt.Errorf("signal process group %d: %w", h.pid, err)
}

// Environ returns the current process environment overlaid with env.
// Keys from env are appended in sorted order so later duplicates win.
func Environ(env map[string]string) []string {
	result := slices.Clone(os.Environ())
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		result = append(result, k+"="+env[k])
	}
	return result
}
