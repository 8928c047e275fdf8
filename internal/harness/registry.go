package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/antmicro/warp-pipe/internal/model"
)

// Factory creates a fresh harness for run.
type Factory func(run model.TestRun) (Harness, error)

// Registry maps harness kinds to their factories.
type Registry struct {
	factories map[model.HarnessKind]Factory
	aliases   map[string]model.HarnessKind
}

// NewRegistry creates a new harness registry with all built-in variants.
func NewRegistry() *Registry {
	r := &Registry{
		factories: make(map[model.HarnessKind]Factory),
		aliases:   make(map[string]model.HarnessKind),
	}

	r.Register(model.HarnessConsole, func(run model.TestRun) (Harness, error) {
		return NewConsole(run.HarnessConfig)
	})
	r.Register(model.HarnessZtest, func(model.TestRun) (Harness, error) {
		return NewZtest(), nil
	})
	r.Register(model.HarnessPytest, func(model.TestRun) (Harness, error) {
		return NewPytest(), nil
	})
	r.Register(model.HarnessGtest, func(model.TestRun) (Harness, error) {
		return NewGtest(), nil
	})
	r.Register(model.HarnessRobot, func(model.TestRun) (Harness, error) {
		return NewRobot(), nil
	})
	r.Register(model.HarnessCoProcess, func(model.TestRun) (Harness, error) {
		return NewCoProcess(), nil
	})

	// Names used by twister testcase.yaml files.
	r.Alias("test", model.HarnessZtest)
	r.Alias("warppipe", model.HarnessCoProcess)

	return r
}

// Register adds or replaces the factory for kind.
func (r *Registry) Register(kind model.HarnessKind, f Factory) {
	r.factories[model.HarnessKind(strings.ToLower(string(kind)))] = f
}

// Alias makes name resolve to kind.
func (r *Registry) Alias(name string, kind model.HarnessKind) {
	r.aliases[strings.ToLower(name)] = kind
}

// Resolve returns the canonical kind for a harness name or alias.
func (r *Registry) Resolve(name string) (model.HarnessKind, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if kind, ok := r.aliases[key]; ok {
		return kind, true
	}
	if _, ok := r.factories[model.HarnessKind(key)]; ok {
		return model.HarnessKind(key), true
	}
	return "", false
}

// Recognized reports whether kind (or an alias of it) has a factory.
func (r *Registry) Recognized(kind model.HarnessKind) bool {
	_, ok := r.Resolve(string(kind))
	return ok
}

// Kinds returns the canonical kinds in sorted order.
func (r *Registry) Kinds() []model.HarnessKind {
	kinds := make([]model.HarnessKind, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// New creates a harness for run.
func (r *Registry) New(run model.TestRun) (Harness, error) {
	kind, ok := r.Resolve(string(run.Harness))
	if !ok {
		return nil, fmt.Errorf("unknown harness %q", run.Harness)
	}
	h, err := r.factories[kind](run)
	if err != nil {
		return nil, err
	}
	return h, nil
}

var defaultRegistry = NewRegistry()

// Default returns the registry with the built-in variants.
func Default() *Registry {
	return defaultRegistry
}
