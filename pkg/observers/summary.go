package observers

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/mockinterview/pkg/metrics"
	"github.com/spf13/afero"
)

// SessionSummary aggregates the outcome of one interview session.
type SessionSummary struct {
	SessionID         string  `json:"session_id"`
	RoundsStarted     int     `json:"rounds_started"`
	RoundsAnswered    int     `json:"rounds_answered"`
	Failures          int     `json:"submission_failures"`
	Discarded         int     `json:"submissions_discarded"`
	StartFailures     int     `json:"recording_start_failures"`
	TimerEnded        int     `json:"rounds_ended_by_timer"`
	AnswerSeconds     float64 `json:"answer_seconds"`
	SubmissionSeconds float64 `json:"submission_seconds"`
	Ended             bool    `json:"ended"`
	RecordedAtUTC     string  `json:"recorded_at_utc"`
}

// SummaryObserver writes <session>.summary.json when a session ends, and
// flushes unfinished sessions and failed writes on Close.
type SummaryObserver struct {
	fs    afero.Fs
	dir   string
	mu    sync.Mutex
	stats map[string]*SessionSummary
}

// NewSummaryObserver writes summaries under dir on fs.
func NewSummaryObserver(fs afero.Fs, dir string) *SummaryObserver {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &SummaryObserver{fs: fs, dir: dir, stats: make(map[string]*SessionSummary)}
}

func (o *SummaryObserver) RecordEvent(ev metrics.MetricsEvent) {
	id := ev.SessionID()
	if id == "" {
		return
	}
	o.mu.Lock()
	stat := o.stats[id]
	if stat == nil {
		stat = &SessionSummary{SessionID: id}
		o.stats[id] = stat
	}
	switch ev.Name {
	case "round_started":
		stat.RoundsStarted++
	case "round_ended":
		stat.AnswerSeconds += ev.Value
		if reason, _ := ev.Fields["reason"].(string); reason == "timer" {
			stat.TimerEnded++
		}
	case "recording_start_failed":
		stat.StartFailures++
	case "submission_succeeded":
		stat.RoundsAnswered++
		stat.SubmissionSeconds += ev.Value
	case "submission_failed":
		stat.Failures++
		stat.SubmissionSeconds += ev.Value
	case "submission_discarded":
		stat.Discarded++
	case "session_ended":
		stat.Ended = true
		delete(o.stats, id)
		o.mu.Unlock()
		if err := o.write(stat); err != nil {
			// Keep it for Close to retry, unless the session restarted.
			o.mu.Lock()
			if _, ok := o.stats[id]; !ok {
				o.stats[id] = stat
			}
			o.mu.Unlock()
		}
		return
	}
	o.mu.Unlock()
}

// Snapshot returns a copy of the running summary for a session.
func (o *SummaryObserver) Snapshot(sessionID string) (SessionSummary, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	stat, ok := o.stats[sessionID]
	if !ok {
		return SessionSummary{}, false
	}
	return *stat, true
}

// Path returns the summary file for a session.
func (o *SummaryObserver) Path(sessionID string) string {
	return filepath.Join(o.dir, sanitizeID(sessionID)+".summary.json")
}

// Close writes summaries for sessions that never reached the end.
func (o *SummaryObserver) Close() error {
	o.mu.Lock()
	pending := o.stats
	o.stats = make(map[string]*SessionSummary)
	o.mu.Unlock()

	var errOut error
	for _, stat := range pending {
		errOut = errors.Join(errOut, o.write(stat))
	}
	return errOut
}

func (o *SummaryObserver) write(stat *SessionSummary) error {
	if strings.TrimSpace(o.dir) == "" {
		return nil
	}
	if err := o.fs.MkdirAll(o.dir, 0o755); err != nil {
		return err
	}
	stat.RecordedAtUTC = time.Now().UTC().Format(time.RFC3339)
	b, err := json.MarshalIndent(stat, "", "  ")
	if err != nil {
		return err
	}
	return afero.WriteFile(o.fs, o.Path(stat.SessionID), b, 0o644)
}

var _ metrics.Observer = (*SummaryObserver)(nil)
