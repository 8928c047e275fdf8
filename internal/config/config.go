package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	runerrors "github.com/antmicro/warp-pipe/internal/errors"
	"github.com/antmicro/warp-pipe/internal/model"
	"github.com/antmicro/warp-pipe/internal/schema"
)

// Settings are the resolved suite-wide execution settings.
type Settings struct {
	// Parallel is the maximum number of concurrent runs.
	Parallel       int
	DefaultTimeout time.Duration
	TerminateGrace time.Duration
	KillWait       time.Duration
	// Fixtures are the fixtures available to this suite invocation.
	Fixtures []string
}

// Suite is a loaded suite descriptor.
type Suite struct {
	// Path is the absolute path of the descriptor.
	Path     string
	Settings Settings
	Runs     []model.TestRun
}

// Parse decodes a suite descriptor without validating it.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse suite descriptor: %w", err)
	}
	return &f, nil
}

// LoadSuite reads a suite descriptor, validates it against the suite schema
// and returns it with defaults and environment overrides applied.
func LoadSuite(path string) (*Suite, error) {
	suite, _, err := LoadWithWarnings(path)
	return suite, err
}

// LoadWithWarnings is LoadSuite that also returns warnings for unknown fields.
func LoadWithWarnings(path string) (*Suite, []string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, nil, runerrors.WrapConfig(err, "failed to resolve suite path")
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, nil, runerrors.WrapConfig(err, "failed to read suite descriptor")
	}

	if err := schema.ValidateSuite(data); err != nil {
		return nil, nil, runerrors.WrapConfig(err, abs)
	}

	f, err := Parse(data)
	if err != nil {
		return nil, nil, runerrors.WrapConfig(err, abs)
	}
	warnings := detectUnknownFields(data)

	ApplyDefaults(f, filepath.Dir(abs))
	suite := f.Suite()
	suite.Path = abs
	ApplyEnv(&suite.Settings, os.Getenv)

	if err := Validate(suite); err != nil {
		return nil, warnings, runerrors.WrapConfig(err, abs)
	}
	return suite, warnings, nil
}
