package console

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/harunnryd/mockinterview/pkg/adapters/transcriber"
	"github.com/harunnryd/mockinterview/pkg/interview"
	"github.com/harunnryd/mockinterview/pkg/transports"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestFirstLineBeginsThenAdvances(t *testing.T) {
	out := &syncBuffer{}
	tr := New(Config{In: strings.NewReader("\n\nnext\n"), Out: out})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := tr.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	want := []transports.SignalKind{transports.SignalBegin, transports.SignalAdvance, transports.SignalAdvance}
	for i, k := range want {
		select {
		case sig := <-tr.Signals():
			if sig.Kind != k {
				t.Fatalf("signal %d: expected %s, got %s", i, k, sig.Kind)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for signal %d", i)
		}
	}
	if !strings.Contains(out.String(), "Press Enter to start") {
		t.Fatalf("expected start prompt, got %q", out.String())
	}
}

func TestSendFormatsUpdates(t *testing.T) {
	out := &syncBuffer{}
	tr := New(Config{In: strings.NewReader(""), Out: out})

	inRound := interview.Render(interview.PhaseInRound)
	end := interview.Render(interview.PhaseEnd)
	updates := []transports.Update{
		{Type: transports.UpdateQuestion, Round: 1, Question: "Why Go?"},
		{Type: transports.UpdateView, View: &inRound},
		{Type: transports.UpdateTimer, Timer: ptr(interview.RenderTimer(10))},
		{Type: transports.UpdateTimer, Timer: ptr(interview.RenderTimer(9))},
		{Type: transports.UpdateTimer, Timer: ptr(interview.RenderTimer(8))},
		{Type: transports.UpdateResult, Result: &transcriber.Result{Transcript: "Because", Feedback: "Expand."}},
		{Type: transports.UpdateVisualizer},
		{Type: transports.UpdateView, View: &end},
	}
	for _, u := range updates {
		if err := tr.Send(u); err != nil {
			t.Fatalf("send: %v", err)
		}
	}
	got := out.String()
	for _, want := range []string{
		"Question 1: Why Go?",
		"10 s\n",
		"9 s (warning)\n",
		"8 s\n",
		"You said: Because",
		"Feedback: Expand.",
		"end of the interview",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in output:\n%s", want, got)
		}
	}
}

func TestStopIsIdempotent(t *testing.T) {
	tr := New(Config{In: strings.NewReader(""), Out: &syncBuffer{}})
	_ = tr.Stop()
	_ = tr.Stop()
	if _, ok := <-tr.Signals(); ok {
		t.Fatalf("expected closed signals")
	}
}

func ptr[T any](v T) *T { return &v }
