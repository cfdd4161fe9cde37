package mock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/harunnryd/mockinterview/pkg/adapters/recorder"
	"github.com/harunnryd/mockinterview/pkg/adapters/transcriber"
	"github.com/harunnryd/mockinterview/pkg/errorsx"
)

// TranscriberConfig scripts the mock reply, an optional error and delay.
type TranscriberConfig struct {
	Transcript string `mapstructure:"transcript"`
	Feedback   string `mapstructure:"feedback"`
	// Error makes every submission fail with this message.
	Error   string `mapstructure:"error"`
	DelayMs int    `mapstructure:"delay_ms"`
}

// Submission is one captured Submit call.
type Submission struct {
	Question string
	Audio    recorder.Recording
}

// Transcriber answers submissions locally without a network round trip.
type Transcriber struct {
	cfg TranscriberConfig

	mu    sync.Mutex
	calls []Submission
}

// NewTranscriber returns a transcriber that answers from cfg and records
// every submission.
func NewTranscriber(cfg TranscriberConfig) *Transcriber {
	return &Transcriber{cfg: cfg}
}

func (t *Transcriber) Name() string { return "mock_transcriber" }

func (t *Transcriber) Submit(ctx context.Context, audio recorder.Recording, question string) (transcriber.Result, error) {
	t.mu.Lock()
	t.calls = append(t.calls, Submission{Question: question, Audio: audio})
	t.mu.Unlock()

	if t.cfg.DelayMs > 0 {
		select {
		case <-ctx.Done():
			return transcriber.Result{}, errorsx.Wrap(ctx.Err(), errorsx.ReasonSubmissionSend)
		case <-time.After(time.Duration(t.cfg.DelayMs) * time.Millisecond):
		}
	}
	if t.cfg.Error != "" {
		return transcriber.Result{}, errorsx.Wrap(errors.New(t.cfg.Error), errorsx.ReasonSubmissionStatus)
	}

	res := transcriber.Result{Transcript: t.cfg.Transcript, Feedback: t.cfg.Feedback}
	if res.Transcript == "" {
		res.Transcript = fmt.Sprintf("(%d bytes of %s)", len(audio.Data), audio.MIMEType)
	}
	if res.Feedback == "" {
		res.Feedback = fmt.Sprintf("Answer received for %q.", question)
	}
	return res, nil
}

// Submissions returns a copy of every submission seen so far.
func (t *Transcriber) Submissions() []Submission {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Submission, len(t.calls))
	copy(out, t.calls)
	return out
}

var _ transcriber.Service = (*Transcriber)(nil)
