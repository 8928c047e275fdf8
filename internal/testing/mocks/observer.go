package mocks

import (
	"sync"

	"github.com/antmicro/warp-pipe/internal/model"
)

// Observer records lifecycle events. It is safe for concurrent use.
type Observer struct {
	mu     sync.Mutex
	events []model.Event
}

// NewObserver creates an empty recording observer.
func NewObserver() *Observer {
	return &Observer{}
}

// Observe records e.
func (o *Observer) Observe(e model.Event) {
	o.mu.Lock()
	o.events = append(o.events, e)
	o.mu.Unlock()
}

// Events returns all recorded events in arrival order.
func (o *Observer) Events() []model.Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	result := make([]model.Event, len(o.events))
	copy(result, o.events)
	return result
}

// Kinds returns the kinds of the events recorded for run, in order.
func (o *Observer) Kinds(run string) []model.EventKind {
	o.mu.Lock()
	defer o.mu.Unlock()
	var kinds []model.EventKind
	for _, e := range o.events {
		if e.Run == run {
			kinds = append(kinds, e.Kind)
		}
	}
	return kinds
}

// Index returns the position of the first event of kind for run, or -1.
func (o *Observer) Index(run string, kind model.EventKind) int {
	for i, k := range o.Kinds(run) {
		if k == kind {
			return i
		}
	}
	return -1
}
