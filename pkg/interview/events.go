package interview

import (
	"time"

	"github.com/harunnryd/mockinterview/pkg/adapters/transcriber"
)

// EventType distinguishes controller notifications.
type EventType string

const (
	EventPhase  EventType = "phase"
	EventTick   EventType = "tick"
	EventResult EventType = "result"
)

// Event is emitted to listeners after every observable change.
type Event struct {
	Type      EventType
	From      Phase
	To        Phase
	Round     Round
	Remaining int
	Band      Band
	Result    transcriber.Result
	Reason    string
	Time      time.Time
}

// Listener observes controller events.
type Listener interface {
	OnEvent(ev Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ev Event)

func (f ListenerFunc) OnEvent(ev Event) { f(ev) }
