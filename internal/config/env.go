package config

import (
	"slices"
	"strconv"
	"strings"
)

// Environment variables that override descriptor settings.
const (
	EnvParallel = "WARPPIPE_PARALLEL"
	EnvFixtures = "WARPPIPE_FIXTURES"
)

// MaxParallel caps the number of concurrent runs.
const MaxParallel = 256

// ApplyEnv applies environment overrides to s. getenv is usually os.Getenv.
//
// WARPPIPE_PARALLEL replaces the parallelism when it is a positive integer
// (capped at MaxParallel); invalid values are ignored. WARPPIPE_FIXTURES is
// a comma-separated list added to the declared fixtures.
func ApplyEnv(s *Settings, getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvParallel)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			s.Parallel = min(n, MaxParallel)
		}
	}
	if v := getenv(EnvFixtures); v != "" {
		for _, name := range strings.Split(v, ",") {
			name = strings.TrimSpace(name)
			if name != "" && !slices.Contains(s.Fixtures, name) {
				s.Fixtures = append(s.Fixtures, name)
			}
		}
	}
}
