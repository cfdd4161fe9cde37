package observers

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/mockinterview/pkg/metrics"
	"github.com/harunnryd/mockinterview/pkg/redact"
	"github.com/spf13/afero"
)

// TimelineObserver writes one JSONL trace per interview session.
type TimelineObserver struct {
	fs    afero.Fs
	dir   string
	mu    sync.Mutex
	files map[string]afero.File
}

// NewTimelineObserver creates a new timeline observer writing to dir on fs.
func NewTimelineObserver(fs afero.Fs, dir string) *TimelineObserver {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &TimelineObserver{fs: fs, dir: dir, files: make(map[string]afero.File)}
}

// RecordEvent implements metrics.Observer.
func (o *TimelineObserver) RecordEvent(ev metrics.MetricsEvent) {
	id := ev.SessionID()
	if id == "" || strings.TrimSpace(o.dir) == "" {
		return
	}
	entry := timelineEvent{
		Time:      ev.Time.UTC(),
		Event:     ev.Name,
		SessionID: id,
		Round:     ev.Tags[metrics.TagRound],
		Value:     ev.Value,
		Fields:    redact.Fields(ev.Fields),
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	f := o.fileForLocked(id)
	if f == nil {
		return
	}
	_, _ = f.Write(append(line, '\n'))
	if ev.Name == "session_ended" {
		_ = f.Close()
		delete(o.files, sanitizeID(id))
	}
}

// Close closes any open files.
func (o *TimelineObserver) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	var err error
	for _, f := range o.files {
		if cerr := f.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}
	o.files = make(map[string]afero.File)
	return err
}

// Path returns the timeline file for a session.
func (o *TimelineObserver) Path(sessionID string) string {
	return filepath.Join(o.dir, sanitizeID(sessionID)+".jsonl")
}

type timelineEvent struct {
	Time      time.Time      `json:"time"`
	Event     string         `json:"event"`
	SessionID string         `json:"session_id"`
	Round     string         `json:"round,omitempty"`
	Value     float64        `json:"value"`
	Fields    map[string]any `json:"fields,omitempty"`
}

func (o *TimelineObserver) fileForLocked(id string) afero.File {
	safe := sanitizeID(id)
	if safe == "" {
		return nil
	}
	if f := o.files[safe]; f != nil {
		return f
	}
	if err := o.fs.MkdirAll(o.dir, 0o755); err != nil {
		return nil
	}
	f, err := o.fs.OpenFile(o.Path(id), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil
	}
	o.files[safe] = f
	return f
}

func sanitizeID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, id)
}

var _ metrics.Observer = (*TimelineObserver)(nil)
