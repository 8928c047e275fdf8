package harness

import (
	"slices"

	"github.com/antmicro/warp-pipe/internal/model"
)

// FixtureSet is the set of fixtures supplied for a whole suite invocation.
type FixtureSet map[string]struct{}

// NewFixtureSet creates a fixture set from names.
func NewFixtureSet(names ...string) FixtureSet {
	s := make(FixtureSet, len(names))
	for _, n := range names {
		if n != "" {
			s[n] = struct{}{}
		}
	}
	return s
}

// Has reports whether the fixture is supplied.
func (s FixtureSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Names returns the fixtures in sorted order.
func (s FixtureSet) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Runnability is the outcome of the pre-spawn gating decision.
type Runnability int

const (
	Runnable Runnability = iota
	// UnknownHarness: the entry can only be built, never run.
	UnknownHarness
	// MissingFixture: the entry needs a fixture that was not supplied.
	MissingFixture
)

func (r Runnability) String() string {
	switch r {
	case Runnable:
		return "runnable"
	case UnknownHarness:
		return "unknown harness"
	case MissingFixture:
		return "missing fixture"
	default:
		return "unknown"
	}
}

// Classify decides whether run may be spawned. It has no side effects.
func (r *Registry) Classify(run model.TestRun, fixtures FixtureSet) Runnability {
	if !r.Recognized(run.Harness) {
		return UnknownHarness
	}
	// A fixture that is also supplied on the command line means the test
	// must run rather than only build.
	if fixture := run.FixtureRequirement(); fixture != "" && !fixtures.Has(fixture) {
		return MissingFixture
	}
	return Runnable
}

// IsRunnable reports whether run's harness is recognized and its fixture
// requirement, if any, is satisfied by fixtures.
func (r *Registry) IsRunnable(run model.TestRun, fixtures FixtureSet) bool {
	return r.Classify(run, fixtures) == Runnable
}

// IsRunnable checks run against the built-in variants.
func IsRunnable(run model.TestRun, fixtures FixtureSet) bool {
	return defaultRegistry.IsRunnable(run, fixtures)
}
