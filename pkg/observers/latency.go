package observers

import (
	"log/slog"
	"sync"
	"time"

	"github.com/harunnryd/mockinterview/pkg/metrics"
)

// RoundLatency is the timing of one answered question.
type RoundLatency struct {
	SessionID  string
	Round      string
	Answer     time.Duration
	Submission time.Duration
	Total      time.Duration
	Failed     bool
}

// LatencyObserver measures how long each round spent answering and how long
// the feedback took to arrive.
type LatencyObserver struct {
	mu     sync.Mutex
	rounds map[string]*roundTrace
	last   []RoundLatency
	log    *slog.Logger
}

type roundTrace struct {
	started time.Time
	ended   time.Time
}

// NewLatencyObserver logs answer and submission durations per round.
func NewLatencyObserver(log *slog.Logger) *LatencyObserver {
	if log == nil {
		log = slog.Default()
	}
	return &LatencyObserver{
		rounds: make(map[string]*roundTrace),
		log:    log,
	}
}

func (o *LatencyObserver) RecordEvent(ev metrics.MetricsEvent) {
	sessionID := ev.SessionID()
	round := ev.Tags[metrics.TagRound]
	if sessionID == "" || round == "" {
		return
	}
	key := sessionID + "/" + round

	o.mu.Lock()
	defer o.mu.Unlock()
	t := o.rounds[key]
	switch ev.Name {
	case "round_started":
		o.rounds[key] = &roundTrace{started: ev.Time}
	case "round_ended":
		if t != nil && t.ended.IsZero() {
			t.ended = ev.Time
		}
	case "submission_succeeded", "submission_failed":
		if t == nil {
			return
		}
		rl := RoundLatency{
			SessionID:  sessionID,
			Round:      round,
			Answer:     between(t.started, t.ended),
			Submission: between(t.ended, ev.Time),
			Total:      between(t.started, ev.Time),
			Failed:     ev.Name == "submission_failed",
		}
		delete(o.rounds, key)
		o.last = append(o.last, rl)
		if len(o.last) > 64 {
			o.last = o.last[len(o.last)-64:]
		}
		o.log.Info("round_latency",
			"session_id", sessionID,
			"round", round,
			"answer_ms", rl.Answer.Milliseconds(),
			"submission_ms", rl.Submission.Milliseconds(),
			"total_ms", rl.Total.Milliseconds(),
			"failed", rl.Failed,
		)
	case "submission_discarded", "session_ended":
		delete(o.rounds, key)
	}
}

// Recent returns the latest measured rounds, oldest first.
func (o *LatencyObserver) Recent() []RoundLatency {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]RoundLatency, len(o.last))
	copy(out, o.last)
	return out
}

func between(a, b time.Time) time.Duration {
	if a.IsZero() || b.IsZero() || b.Before(a) {
		return 0
	}
	return b.Sub(a)
}
