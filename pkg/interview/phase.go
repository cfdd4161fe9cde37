package interview

import "time"

// Phase is the controller's current discrete state.
type Phase int

const (
	PhaseBetweenRounds Phase = iota
	PhaseInRound
	PhaseProcessing
	PhaseEnd
)

// String returns the string representation of a Phase
func (p Phase) String() string {
	switch p {
	case PhaseBetweenRounds:
		return "between_rounds"
	case PhaseInRound:
		return "in_round"
	case PhaseProcessing:
		return "processing"
	case PhaseEnd:
		return "end"
	default:
		return "unknown"
	}
}

var validTransitions = map[Phase][]Phase{
	PhaseBetweenRounds: {PhaseInRound, PhaseEnd},
	PhaseInRound:       {PhaseProcessing},
	PhaseProcessing:    {PhaseBetweenRounds},
}

// transitionValid checks if a phase transition is allowed.
func transitionValid(from, to Phase) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// InvalidTransitionError represents an operation attempted in the wrong phase.
type InvalidTransitionError struct {
	From Phase
	To   Phase
}

func (e *InvalidTransitionError) Error() string {
	return "invalid phase transition from " + e.From.String() + " to " + e.To.String()
}

// Round is one question/answer/feedback cycle.
type Round struct {
	Index      int
	Question   string
	Generation uint64
	StartedAt  time.Time
}
