package harness

import (
	"path/filepath"
	"slices"

	"github.com/antmicro/warp-pipe/internal/model"
)

// CoProcess classifies ztest output of an application that talks to an
// auxiliary process, such as a PCIe memory mock reached over warp-pipe.
type CoProcess struct {
	*Ztest
}

var _ AuxiliaryProvider = (*CoProcess)(nil)

// NewCoProcess creates a coprocess harness.
func NewCoProcess() *CoProcess {
	return &CoProcess{Ztest: NewZtest()}
}

// Name returns the harness name.
func (c *CoProcess) Name() string { return string(model.HarnessCoProcess) }

// AuxiliaryCommandFor returns the explicit auxiliary command of run if one
// is set. Otherwise harness_config.type names a mock executable located in
// the run's source directory.
func (c *CoProcess) AuxiliaryCommandFor(run model.TestRun) []string {
	if len(run.AuxiliaryCommand) > 0 {
		return slices.Clone(run.AuxiliaryCommand)
	}
	mock := run.HarnessConfig.Type
	if mock == "" {
		return nil
	}
	if filepath.IsAbs(mock) || run.SourceDirectory == "" {
		return []string{mock}
	}
	return []string{filepath.Join(run.SourceDirectory, mock)}
}
