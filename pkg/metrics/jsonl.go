package metrics

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/harunnryd/mockinterview/pkg/redact"
)

// JSONLObserver appends one JSON line per controller event. Session and
// round tags are promoted to top-level keys and spoken text in fields is
// redacted when redaction is enabled.
type JSONLObserver struct {
	mu     sync.Mutex
	logger *slog.Logger
	closer io.Closer
	lines  int
}

// NewJSONLObserver writes one JSON object per event to w.
func NewJSONLObserver(w io.Writer) *JSONLObserver {
	if w == nil {
		w = io.Discard
	}
	o := &JSONLObserver{logger: slog.New(slog.NewJSONHandler(w, nil))}
	if c, ok := w.(io.Closer); ok {
		o.closer = c
	}
	return o
}

func (o *JSONLObserver) RecordEvent(ev MetricsEvent) {
	attrs := []slog.Attr{
		slog.String("name", ev.Name),
		slog.Time("time", ev.Time),
		slog.Float64("value", ev.Value),
	}
	if id := ev.SessionID(); id != "" {
		attrs = append(attrs, slog.String(TagSessionID, id))
	}
	if round := ev.Tags[TagRound]; round != "" {
		attrs = append(attrs, slog.String(TagRound, round))
	}
	if fields := redact.Fields(ev.Fields); len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		group := make([]any, 0, len(keys))
		for _, k := range keys {
			group = append(group, slog.Any(k, fields[k]))
		}
		attrs = append(attrs, slog.Group("fields", group...))
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.logger.LogAttrs(context.TODO(), slog.LevelInfo, "metrics", attrs...)
	o.lines++
}

// Lines reports how many events were written.
func (o *JSONLObserver) Lines() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lines
}

// Close closes the underlying writer when it is closable.
func (o *JSONLObserver) Close() error {
	if o.closer == nil {
		return nil
	}
	return o.closer.Close()
}
