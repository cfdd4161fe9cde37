package transports

import (
	"context"
	"time"

	"github.com/harunnryd/mockinterview/pkg/adapters/transcriber"
	"github.com/harunnryd/mockinterview/pkg/interview"
	"github.com/harunnryd/mockinterview/pkg/visualizer"
)

// SignalKind is an input the candidate gives through the UI.
type SignalKind string

const (
	// SignalBegin starts the interview (the start button).
	SignalBegin SignalKind = "begin"
	// SignalAdvance ends the active round or moves to the next question (Enter).
	SignalAdvance SignalKind = "advance"
)

// Signal is a user action received from a UI client.
type Signal struct {
	Kind     SignalKind
	ClientID string
	Time     time.Time
}

// UpdateType names what an Update carries.
type UpdateType string

const (
	UpdateView       UpdateType = "view"
	UpdateQuestion   UpdateType = "question"
	UpdateTimer      UpdateType = "timer"
	UpdateResult     UpdateType = "result"
	UpdateVisualizer UpdateType = "visualizer"
)

// Update is one change pushed to the UI. Only the field matching Type is set.
type Update struct {
	Type     UpdateType           `json:"type"`
	Round    int                  `json:"round,omitempty"`
	View     *interview.View      `json:"view,omitempty"`
	Question string               `json:"question,omitempty"`
	Timer    *interview.TimerView `json:"timer,omitempty"`
	Result   *transcriber.Result  `json:"result,omitempty"`
	Frame    *visualizer.Frame    `json:"frame,omitempty"`
}

// Transport is the UI boundary: signals come in, updates go out.
// Implementations are responsible for their own I/O lifecycle.
type Transport interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
	Signals() <-chan Signal
	Send(Update) error
}

// ReadyReporter allows transports to expose readiness metadata (e.g., listen URLs).
// Implementations are optional and used for informational logging only.
type ReadyReporter interface {
	ReadyFields() map[string]any
}

// NonBlockingSend drops the signal when ch is full.
func NonBlockingSend(ch chan Signal, s Signal) bool {
	select {
	case ch <- s:
		return true
	default:
		return false
	}
}
