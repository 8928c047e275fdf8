package config

import (
	"fmt"
	"regexp"
)

// Run names end up in log file names and metric labels.
var runNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:/@+-]*$`)

// ValidationError represents a suite validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks a resolved suite for errors the schema cannot express.
func Validate(s *Suite) error {
	if s.Settings.Parallel < 1 || s.Settings.Parallel > MaxParallel {
		return &ValidationError{
			Field:   "settings.parallel",
			Message: fmt.Sprintf("must be between 1 and %d", MaxParallel),
		}
	}

	names := make(map[string]int, len(s.Runs))
	logs := make(map[string]string, len(s.Runs))
	for i, run := range s.Runs {
		field := fmt.Sprintf("runs[%d]", i)

		if err := ValidateRunName(run.Name); err != nil {
			err.Field = field + ".name"
			return err
		}
		if prev, ok := names[run.Name]; ok {
			return &ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("duplicates runs[%d]", prev),
			}
		}
		names[run.Name] = i

		if len(run.Command) == 0 || run.Command[0] == "" {
			return &ValidationError{Field: field + ".command", Message: "is required"}
		}

		if other, ok := logs[run.LogPath]; ok {
			return &ValidationError{
				Field:   field + ".log_path",
				Message: fmt.Sprintf("%s is also used by run %q", run.LogPath, other),
			}
		}
		logs[run.LogPath] = run.Name

		for _, expr := range run.HarnessConfig.Regex {
			if _, err := regexp.Compile(expr); err != nil {
				return &ValidationError{
					Field:   field + ".harness_config.regex",
					Message: fmt.Sprintf("invalid pattern %q: %v", expr, err),
				}
			}
		}
	}
	return nil
}

// ValidateRunName checks if a run name is valid.
func ValidateRunName(name string) *ValidationError {
	if name == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}
	if !runNamePattern.MatchString(name) {
		return &ValidationError{
			Field:   "name",
			Message: "must start with a letter or digit and contain no whitespace",
		}
	}
	return nil
}
