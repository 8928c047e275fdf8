package config

import (
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/antmicro/warp-pipe/internal/model"
)

// Default configuration values.
const (
	DefaultTimeout        = 60 * time.Second
	DefaultTerminateGrace = 500 * time.Millisecond
	DefaultKillWait       = 5 * time.Second
	DefaultLogName        = "handler.log"
)

// DefaultParallel returns the default number of concurrent runs.
func DefaultParallel() int {
	return runtime.NumCPU()
}

// ApplyDefaults fills in default values for unset fields. Relative paths are
// resolved against baseDir, the directory of the descriptor.
func ApplyDefaults(f *File, baseDir string) {
	applySettingsDefaults(&f.Settings)
	for i := range f.Runs {
		applyRunDefaults(&f.Runs[i], f.Settings, baseDir)
	}
}

func applySettingsDefaults(s *SettingsConfig) {
	if s.Parallel <= 0 {
		s.Parallel = DefaultParallel()
	}
	if s.DefaultTimeout <= 0 {
		s.DefaultTimeout = Duration(DefaultTimeout)
	}
	if s.TerminateGrace <= 0 {
		s.TerminateGrace = Duration(DefaultTerminateGrace)
	}
	if s.KillWait <= 0 {
		s.KillWait = Duration(DefaultKillWait)
	}
}

func applyRunDefaults(r *RunConfig, s SettingsConfig, baseDir string) {
	r.WorkingDirectory = resolvePath(baseDir, r.WorkingDirectory)
	if r.WorkingDirectory == "" {
		r.WorkingDirectory = baseDir
	}
	if r.SourceDirectory != "" {
		r.SourceDirectory = resolvePath(baseDir, r.SourceDirectory)
	}
	if r.LogPath == "" {
		r.LogPath = filepath.Join(r.WorkingDirectory, DefaultLogName)
	} else {
		r.LogPath = resolvePath(baseDir, r.LogPath)
	}
	if r.Timeout <= 0 {
		r.Timeout = s.DefaultTimeout
	}
	// Binaries given as relative paths live in the working directory; bare
	// names are left for PATH lookup.
	if len(r.Command) > 0 {
		r.Command[0] = resolveExecutable(r.WorkingDirectory, r.Command[0])
	}
	if len(r.AuxiliaryCommand) > 0 {
		r.AuxiliaryCommand[0] = resolveExecutable(r.WorkingDirectory, r.AuxiliaryCommand[0])
	}
}

func resolvePath(baseDir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}

func resolveExecutable(dir, name string) string {
	if filepath.IsAbs(name) || !strings.ContainsRune(name, filepath.Separator) {
		return name
	}
	return filepath.Join(dir, name)
}

// Suite converts a descriptor with defaults applied into runs.
func (f *File) Suite() *Suite {
	suite := &Suite{
		Settings: Settings{
			Parallel:       f.Settings.Parallel,
			DefaultTimeout: f.Settings.DefaultTimeout.Std(),
			TerminateGrace: f.Settings.TerminateGrace.Std(),
			KillWait:       f.Settings.KillWait.Std(),
			Fixtures:       slices.Clone(f.Settings.Fixtures),
		},
		Runs: make([]model.TestRun, 0, len(f.Runs)),
	}
	for _, r := range f.Runs {
		suite.Runs = append(suite.Runs, model.TestRun{
			Name:             r.Name,
			Command:          slices.Clone(r.Command),
			AuxiliaryCommand: slices.Clone(r.AuxiliaryCommand),
			WorkingDirectory: r.WorkingDirectory,
			SourceDirectory:  r.SourceDirectory,
			Harness:          model.HarnessKind(strings.ToLower(strings.TrimSpace(r.Harness))),
			HarnessConfig:    r.HarnessConfig,
			Fixture:          r.Fixture,
			Timeout:          r.Timeout.Std(),
			LogPath:          r.LogPath,
			Environment:      r.Environment,
		}.Clone())
	}
	return suite
}
