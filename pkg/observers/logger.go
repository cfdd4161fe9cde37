package observers

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/harunnryd/mockinterview/pkg/metrics"
	"github.com/harunnryd/mockinterview/pkg/redact"
)

// LoggerObserver logs every metrics event at debug level.
type LoggerObserver struct {
	log *slog.Logger
}

// NewLoggerObserver logs every event at debug level.
func NewLoggerObserver(log *slog.Logger) *LoggerObserver {
	if log == nil {
		log = slog.Default()
	}
	return &LoggerObserver{log: log}
}

func (o *LoggerObserver) RecordEvent(ev metrics.MetricsEvent) {
	attrs := []slog.Attr{
		slog.String("name", ev.Name),
		slog.Time("time", ev.Time),
		slog.Float64("value", ev.Value),
	}
	for k, v := range ev.Tags {
		attrs = append(attrs, slog.String(k, v))
	}
	for k, v := range redact.Fields(ev.Fields) {
		attrs = append(attrs, slog.Any(k, v))
	}
	o.log.LogAttrs(context.TODO(), slog.LevelDebug, "metrics", attrs...)
}

// MultiObserver fans events out to every non-nil observer.
type MultiObserver struct {
	list []metrics.Observer
}

// NewMultiObserver fans events out to list in order; nil entries are
// skipped.
func NewMultiObserver(list ...metrics.Observer) *MultiObserver {
	return &MultiObserver{list: list}
}

func (m *MultiObserver) RecordEvent(ev metrics.MetricsEvent) {
	for _, obs := range m.list {
		if obs != nil {
			obs.RecordEvent(ev)
		}
	}
}

// Close closes every observer that can be closed, in order.
func (m *MultiObserver) Close() error {
	var err error
	for _, obs := range m.list {
		switch c := obs.(type) {
		case io.Closer:
			err = errors.Join(err, c.Close())
		case interface{ Close() }:
			c.Close()
		}
	}
	return err
}
