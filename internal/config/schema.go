// Package config loads YAML suite descriptors into test runs.
package config

import (
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/antmicro/warp-pipe/internal/model"
)

// File is the raw structure of a suite descriptor.
type File struct {
	Settings SettingsConfig `yaml:"settings"`
	Runs     []RunConfig    `yaml:"runs"`
}

// SettingsConfig holds suite-wide execution settings.
type SettingsConfig struct {
	Parallel       int      `yaml:"parallel"`
	DefaultTimeout Duration `yaml:"default_timeout"`
	TerminateGrace Duration `yaml:"terminate_grace"`
	KillWait       Duration `yaml:"kill_wait"`
	Fixtures       []string `yaml:"fixtures"`
}

// RunConfig describes one test run.
type RunConfig struct {
	Name             string              `yaml:"name"`
	Harness          string              `yaml:"harness"`
	Command          []string            `yaml:"command"`
	AuxiliaryCommand []string            `yaml:"auxiliary_command"`
	WorkingDirectory string              `yaml:"working_directory"`
	SourceDirectory  string              `yaml:"source_directory"`
	HarnessConfig    model.HarnessConfig `yaml:"harness_config"`
	Fixture          string              `yaml:"fixture"`
	Timeout          Duration            `yaml:"timeout"`
	LogPath          string              `yaml:"log_path"`
	Environment      map[string]string   `yaml:"environment"`
}

// Duration is a time.Duration that decodes from a Go duration string
// ("1m30s") or a number of seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", value.Line)
	}
	if value.Tag == "!!int" || value.Tag == "!!float" {
		secs, err := strconv.ParseFloat(value.Value, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid duration %q: %w", value.Line, value.Value, err)
		}
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", value.Line, value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }
