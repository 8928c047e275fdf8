package model

import "time"

// EventKind names a step in the lifecycle of a run.
type EventKind string

const (
	EventAuxiliaryStarted EventKind = "auxiliary-started"
	EventPrimaryStarted   EventKind = "primary-started"
	EventStreamClosed     EventKind = "stream-closed"
	EventPrimaryExited    EventKind = "primary-exited"
	EventPrimaryKilled    EventKind = "primary-killed"
	EventAuxiliaryStopped EventKind = "auxiliary-stopped"
)

// Event is emitted by the supervisor as a run progresses.
type Event struct {
	Kind  EventKind
	Run   string
	RunID string
	// PID is the process the event refers to, 0 when not applicable.
	PID int
	At  time.Time
}
