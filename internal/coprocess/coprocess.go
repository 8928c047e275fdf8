// Package coprocess manages the auxiliary process that some runs need next
// to the test binary, such as a PCIe memory mock.
//
// The auxiliary has no graceful shutdown protocol: Stop kills its process
// group and reaps it within a bound.
package coprocess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/antmicro/warp-pipe/internal/process"
)

// ErrNotReaped is returned by Stop when the auxiliary survived SIGKILL.
var ErrNotReaped = errors.New("auxiliary process not reaped")

// DefaultReapWait bounds how long Stop waits for a killed auxiliary to exit.
const DefaultReapWait = 5 * time.Second

// Options configures an auxiliary process.
type Options struct {
	Command          []string
	WorkingDirectory string
	Environment      map[string]string
	// LogPath receives the auxiliary's combined output. Empty discards it.
	LogPath string
}

// Manager starts and stops auxiliary processes.
type Manager struct {
	// ReapWait bounds the wait after SIGKILL in Stop.
	ReapWait time.Duration
	Logger   *slog.Logger
}

// New creates a Manager with default settings.
func New(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{ReapWait: DefaultReapWait, Logger: logger}
}

// Start spawns the auxiliary process. It returns once the process has been
// created; it does not wait for the auxiliary to become ready.
func (m *Manager) Start(ctx context.Context, opts Options) (*process.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	spec := process.Spec{
		Command: opts.Command,
		Dir:     opts.WorkingDirectory,
		Env:     opts.Environment,
	}
	if opts.LogPath != "" {
		spec.Output = process.OutputFile
		spec.OutputPath = opts.LogPath
	}

	h, err := process.Start(spec)
	if err != nil {
		return nil, err
	}
	m.Logger.DebugContext(ctx, "auxiliary started", "pid", h.Pid(), "command", opts.Command)
	return h, nil
}

// Stop kills the auxiliary's process group and reaps it. A nil handle is a
// no-op. An error means the auxiliary may still be running.
func (m *Manager) Stop(h *process.Handle) error {
	if h == nil {
		return nil
	}

	killErr := h.Kill()
	wait := m.ReapWait
	if wait <= 0 {
		wait = DefaultReapWait
	}
	if !h.Wait(wait) {
		return fmt.Errorf("process %d after %s: %w", h.Pid(), wait, errors.Join(ErrNotReaped, killErr))
	}
	m.Logger.Debug("auxiliary stopped", "pid", h.Pid())
	return nil
}
