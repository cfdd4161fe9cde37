package metrics

import "time"

// Tag keys shared by the controller and the observers.
const (
	TagSessionID = "session_id"
	TagRound     = "round"
)

// MetricsEvent is one measurement emitted by the interview controller.
type MetricsEvent struct {
	Name   string
	Time   time.Time
	Value  float64
	Tags   map[string]string
	Fields map[string]any
}

// SessionID returns the session tag, if any.
func (ev MetricsEvent) SessionID() string {
	if ev.Tags == nil {
		return ""
	}
	return ev.Tags[TagSessionID]
}

// Observer receives metrics events. Implementations must be safe for
// concurrent use.
type Observer interface {
	RecordEvent(ev MetricsEvent)
}

// Flusher is implemented by observers that buffer output.
type Flusher interface {
	Flush() error
}

type NoopObserver struct{}

func (NoopObserver) RecordEvent(MetricsEvent) {}
