package interview

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/harunnryd/mockinterview/pkg/adapters/recorder"
	"github.com/harunnryd/mockinterview/pkg/adapters/transcriber"
	"github.com/harunnryd/mockinterview/pkg/metrics"
)

type fakeEntry struct {
	fn      func()
	stopped bool
}

type fakeScheduler struct {
	mu      sync.Mutex
	entries []*fakeEntry
}

func (s *fakeScheduler) Every(_ time.Duration, fn func()) func() {
	e := &fakeEntry{fn: fn}
	s.mu.Lock()
	s.entries = append(s.entries, e)
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		e.stopped = true
		s.mu.Unlock()
	}
}

func (s *fakeScheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.entries {
		if !e.stopped {
			n++
		}
	}
	return n
}

// Fire runs the newest live callback n times.
func (s *fakeScheduler) Fire(n int) {
	for i := 0; i < n; i++ {
		s.mu.Lock()
		var fn func()
		for j := len(s.entries) - 1; j >= 0; j-- {
			if !s.entries[j].stopped {
				fn = s.entries[j].fn
				break
			}
		}
		s.mu.Unlock()
		if fn == nil {
			return
		}
		fn()
	}
}

// FireStale runs every callback, including cancelled ones.
func (s *fakeScheduler) FireStale() {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.entries))
	for _, e := range s.entries {
		fns = append(fns, e.fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

type fakeRecorder struct {
	mu       sync.Mutex
	startErr error
	gate     chan struct{}
	active   bool
	starts   int
	stops    int
}

func (r *fakeRecorder) Name() string { return "fake" }

func (r *fakeRecorder) Start(ctx context.Context) error {
	r.mu.Lock()
	gate := r.gate
	r.mu.Unlock()
	if gate != nil {
		<-gate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts++
	if r.startErr != nil {
		return r.startErr
	}
	r.active = true
	return nil
}

func (r *fakeRecorder) Stop(ctx context.Context) (recorder.Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return recorder.Recording{}, recorder.ErrNotRecording
	}
	r.active = false
	r.stops++
	return recorder.Recording{Data: []byte("pcm"), MIMEType: "audio/wav", Filename: "recording.wav"}, nil
}

func (r *fakeRecorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

type submitCall struct {
	question string
	audio    recorder.Recording
}

type fakeService struct {
	mu     sync.Mutex
	err    error
	gate   chan struct{}
	calls  []submitCall
	ctxErr error
}

func (s *fakeService) Name() string { return "fake" }

func (s *fakeService) Submit(ctx context.Context, audio recorder.Recording, question string) (transcriber.Result, error) {
	s.mu.Lock()
	s.calls = append(s.calls, submitCall{question: question, audio: audio})
	gate := s.gate
	err := s.err
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			s.mu.Lock()
			s.ctxErr = ctx.Err()
			s.mu.Unlock()
			return transcriber.Result{}, ctx.Err()
		}
	}
	if err != nil {
		return transcriber.Result{}, err
	}
	return transcriber.Result{Transcript: "answer to " + question, Feedback: "be concise"}, nil
}

func (s *fakeService) Calls() []submitCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]submitCall, len(s.calls))
	copy(out, s.calls)
	return out
}

type captureListener struct {
	mu     sync.Mutex
	events []Event
}

func (c *captureListener) OnEvent(ev Event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func (c *captureListener) Phases() []Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Phase
	for _, ev := range c.events {
		if ev.Type == EventPhase {
			out = append(out, ev.To)
		}
	}
	return out
}

func (c *captureListener) Types() []EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []EventType
	for _, ev := range c.events {
		out = append(out, ev.Type)
	}
	return out
}

type harness struct {
	ctrl  *Controller
	sched *fakeScheduler
	rec   *fakeRecorder
	svc   *fakeService
	cap   *captureListener
	obs   *metrics.MemoryObserver
}

func newHarness(t *testing.T, qs ...string) *harness {
	t.Helper()
	h := &harness{
		sched: &fakeScheduler{},
		rec:   &fakeRecorder{},
		svc:   &fakeService{},
		cap:   &captureListener{},
		obs:   metrics.NewMemoryObserver(),
	}
	h.ctrl = NewController(Options{
		SessionID:   "sess-test",
		Questions:   qs,
		Scheduler:   h.sched,
		Recorder:    h.rec,
		Transcriber: h.svc,
		Observer:    h.obs,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	h.ctrl.AddListener(h.cap)
	t.Cleanup(func() { _ = h.ctrl.Close() })
	return h
}

func mustPhase(t *testing.T, c *Controller, want Phase) {
	t.Helper()
	if got := c.Phase(); got != want {
		t.Fatalf("expected phase %s, got %s", want, got)
	}
}

func TestQuestionSequenceEndsAfterSentinel(t *testing.T) {
	h := newHarness(t, "Q1", "Q2", "done")
	ctx := context.Background()

	if err := h.ctrl.Begin(ctx); err != nil {
		t.Fatalf("begin: %v", err)
	}
	mustPhase(t, h.ctrl, PhaseInRound)
	if q := h.ctrl.Round().Question; q != "Q1" {
		t.Fatalf("expected Q1, got %q", q)
	}
	if err := h.ctrl.EndRound(); err != nil {
		t.Fatalf("end round: %v", err)
	}
	h.ctrl.Wait()
	mustPhase(t, h.ctrl, PhaseBetweenRounds)

	if err := h.ctrl.Advance(ctx); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if q := h.ctrl.Round().Question; q != "Q2" {
		t.Fatalf("expected Q2, got %q", q)
	}
	h.sched.Fire(DefaultRoundSeconds)
	h.ctrl.Wait()
	mustPhase(t, h.ctrl, PhaseBetweenRounds)

	if err := h.ctrl.Advance(ctx); err != nil {
		t.Fatalf("advance to end: %v", err)
	}
	mustPhase(t, h.ctrl, PhaseEnd)

	calls := h.svc.Calls()
	if len(calls) != 2 || calls[0].question != "Q1" || calls[1].question != "Q2" {
		t.Fatalf("expected submissions for Q1 and Q2 only, got %+v", calls)
	}
	want := []Phase{
		PhaseInRound, PhaseProcessing, PhaseBetweenRounds,
		PhaseInRound, PhaseProcessing, PhaseBetweenRounds,
		PhaseEnd,
	}
	got := h.cap.Phases()
	if len(got) != len(want) {
		t.Fatalf("expected phases %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected phases %v, got %v", want, got)
		}
	}
	if err := h.ctrl.Advance(ctx); err == nil {
		t.Fatalf("expected end to be terminal")
	}
	if h.obs.Count("session_ended") != 1 {
		t.Fatalf("expected session_ended metric")
	}
}

func TestStartingRoundResetsTimer(t *testing.T) {
	h := newHarness(t, "Q1", "Q2", "done")
	ctx := context.Background()

	_ = h.ctrl.Begin(ctx)
	if got := h.ctrl.Remaining(); got != 15 {
		t.Fatalf("expected 15 at round start, got %d", got)
	}
	h.sched.Fire(3)
	if got := h.ctrl.Remaining(); got != 12 {
		t.Fatalf("expected 12 after three ticks, got %d", got)
	}
	_ = h.ctrl.EndRound()
	h.ctrl.Wait()

	_ = h.ctrl.Advance(ctx)
	if got := h.ctrl.Remaining(); got != 15 {
		t.Fatalf("expected reset to 15, got %d", got)
	}
	if h.sched.Active() != 1 {
		t.Fatalf("expected exactly one scheduled countdown, got %d", h.sched.Active())
	}
	for i := 0; i < DefaultRoundSeconds; i++ {
		h.sched.Fire(1)
		if h.ctrl.Remaining() < 0 {
			t.Fatalf("remaining went negative")
		}
	}
	mustPhase(t, h.ctrl, PhaseProcessing)
	h.sched.FireStale()
	if got := h.ctrl.Remaining(); got != 0 {
		t.Fatalf("expected remaining to stay 0, got %d", got)
	}
	h.ctrl.Wait()
}

func TestManualEndCancelsTimer(t *testing.T) {
	h := newHarness(t, "Q1", "done")
	h.svc.gate = make(chan struct{})
	_ = h.ctrl.Begin(context.Background())
	h.sched.Fire(2)

	if err := h.ctrl.EndRound(); err != nil {
		t.Fatalf("end round: %v", err)
	}
	mustPhase(t, h.ctrl, PhaseProcessing)
	if h.ctrl.TimerRunning() {
		t.Fatalf("expected timer cancelled")
	}
	if h.sched.Active() != 0 {
		t.Fatalf("expected no live schedule, got %d", h.sched.Active())
	}
	before := h.ctrl.Remaining()
	h.sched.FireStale()
	if h.ctrl.Remaining() != before {
		t.Fatalf("expected stale ticks to be ignored")
	}
	close(h.svc.gate)
	h.ctrl.Wait()
	mustPhase(t, h.ctrl, PhaseBetweenRounds)
	res, ok := h.ctrl.Result()
	if !ok || res.Transcript != "answer to Q1" {
		t.Fatalf("expected result to be applied, got %+v ok=%v", res, ok)
	}
}

func TestSubmissionFailureReturnsToBetweenRounds(t *testing.T) {
	h := newHarness(t, "Q1", "done")
	h.svc.err = errors.New("connection refused")
	_ = h.ctrl.Begin(context.Background())
	if !h.rec.Active() {
		t.Fatalf("expected recorder active in round")
	}
	_ = h.ctrl.EndRound()
	h.ctrl.Wait()

	mustPhase(t, h.ctrl, PhaseBetweenRounds)
	if h.ctrl.TimerRunning() || h.sched.Active() != 0 {
		t.Fatalf("expected timer inactive after failure")
	}
	if h.ctrl.Recording() || h.rec.Active() {
		t.Fatalf("expected recorder released after failure")
	}
	if _, ok := h.ctrl.Result(); ok {
		t.Fatalf("expected no result after failure")
	}
	for _, typ := range h.cap.Types() {
		if typ == EventResult {
			t.Fatalf("expected no result event after failure")
		}
	}
	if h.obs.Count("submission_failed") != 1 {
		t.Fatalf("expected submission_failed metric")
	}
}

func TestDoubleAdvanceIsNoop(t *testing.T) {
	h := newHarness(t, "Q1", "Q2", "done")
	ctx := context.Background()
	_ = h.ctrl.Begin(ctx)

	err := h.ctrl.Advance(ctx)
	var ite *InvalidTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if ite.From != PhaseInRound {
		t.Fatalf("expected from in_round, got %s", ite.From)
	}
	if q := h.ctrl.Round(); q.Question != "Q1" || q.Index != 1 {
		t.Fatalf("expected round 1 untouched, got %+v", q)
	}
	if err := h.ctrl.Begin(ctx); !errors.Is(err, ErrAlreadyBegun) {
		t.Fatalf("expected ErrAlreadyBegun, got %v", err)
	}

	_ = h.ctrl.EndRound()
	h.ctrl.Wait()
	_ = h.ctrl.Advance(ctx)
	if q := h.ctrl.Round().Question; q != "Q2" {
		t.Fatalf("expected no double dequeue, got %q", q)
	}
	if h.rec.starts != 2 {
		t.Fatalf("expected two recorder starts, got %d", h.rec.starts)
	}
}

func TestEndRoundOutsideRoundFails(t *testing.T) {
	h := newHarness(t, "Q1", "done")
	var ite *InvalidTransitionError
	if err := h.ctrl.EndRound(); !errors.As(err, &ite) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	mustPhase(t, h.ctrl, PhaseBetweenRounds)
}

func TestSignalRouting(t *testing.T) {
	h := newHarness(t, "Q1", "Q2", "done")
	h.svc.gate = make(chan struct{})
	ctx := context.Background()

	if err := h.ctrl.Signal(ctx); err != nil {
		t.Fatalf("signal begin: %v", err)
	}
	mustPhase(t, h.ctrl, PhaseInRound)
	_ = h.ctrl.Signal(ctx)
	mustPhase(t, h.ctrl, PhaseProcessing)
	if err := h.ctrl.Signal(ctx); err != nil {
		t.Fatalf("expected signal during processing to be ignored, got %v", err)
	}
	mustPhase(t, h.ctrl, PhaseProcessing)

	close(h.svc.gate)
	h.ctrl.Wait()
	_ = h.ctrl.Signal(ctx)
	mustPhase(t, h.ctrl, PhaseInRound)
	if q := h.ctrl.Round().Question; q != "Q2" {
		t.Fatalf("expected Q2, got %q", q)
	}
}

func TestRecordingStartFailureStillRunsTimer(t *testing.T) {
	h := newHarness(t, "Q1", "done")
	h.rec.startErr = recorder.ErrPermissionDenied
	_ = h.ctrl.Begin(context.Background())

	mustPhase(t, h.ctrl, PhaseInRound)
	if !h.ctrl.TimerRunning() {
		t.Fatalf("expected timer to run after recording start failure")
	}
	if h.ctrl.Recording() {
		t.Fatalf("expected no active recording")
	}
	h.sched.Fire(DefaultRoundSeconds)
	h.ctrl.Wait()

	calls := h.svc.Calls()
	if len(calls) != 1 || !calls[0].audio.Empty() {
		t.Fatalf("expected one submission with empty payload, got %+v", calls)
	}
	if h.obs.Count("recording_start_failed") != 1 {
		t.Fatalf("expected recording_start_failed metric")
	}
}

func TestLateRecorderStartIsReleased(t *testing.T) {
	h := newHarness(t, "Q1", "done")
	h.rec.gate = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- h.ctrl.Begin(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for h.ctrl.Phase() != PhaseInRound {
		if time.Now().After(deadline) {
			t.Fatalf("round did not start")
		}
		time.Sleep(time.Millisecond)
	}
	if err := h.ctrl.EndRound(); err != nil {
		t.Fatalf("end round: %v", err)
	}
	close(h.rec.gate)
	if err := <-done; err != nil {
		t.Fatalf("begin: %v", err)
	}
	h.ctrl.Wait()

	if h.rec.Active() {
		t.Fatalf("expected late recording to be released")
	}
	if h.ctrl.TimerRunning() {
		t.Fatalf("expected no timer after round ended")
	}
	calls := h.svc.Calls()
	if len(calls) != 1 || !calls[0].audio.Empty() {
		t.Fatalf("expected empty payload submission, got %+v", calls)
	}
}

func TestCloseDuringRecorderStartReleasesDevice(t *testing.T) {
	h := newHarness(t, "Q1", "done")
	h.rec.gate = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- h.ctrl.Begin(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for h.ctrl.Phase() != PhaseInRound {
		if time.Now().After(deadline) {
			t.Fatalf("round did not start")
		}
		time.Sleep(time.Millisecond)
	}
	if err := h.ctrl.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	close(h.rec.gate)
	if err := <-done; err != nil {
		t.Fatalf("begin: %v", err)
	}

	if h.ctrl.TimerRunning() || h.sched.Active() != 0 {
		t.Fatalf("expected no countdown after close")
	}
	if h.ctrl.Recording() || h.rec.Active() {
		t.Fatalf("expected recorder released after close")
	}
	if err := h.ctrl.EndRound(); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestDrainStopsNewRounds(t *testing.T) {
	h := newHarness(t, "Q1", "Q2", "done")
	h.svc.gate = make(chan struct{})
	ctx := context.Background()
	_ = h.ctrl.Begin(ctx)
	_ = h.ctrl.EndRound()

	drained := make(chan error, 1)
	go func() { drained <- h.ctrl.Drain() }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if err := h.ctrl.Advance(ctx); errors.Is(err, ErrClosed) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected advance to be refused while draining")
		}
		time.Sleep(time.Millisecond)
	}
	close(h.svc.gate)
	if err := <-drained; err != nil {
		t.Fatalf("drain: %v", err)
	}
	if h.obs.Count("submission_succeeded") != 1 {
		t.Fatalf("expected pending submission to finish during drain")
	}
	mustPhase(t, h.ctrl, PhaseBetweenRounds)
	if h.rec.starts != 1 {
		t.Fatalf("expected no second round, got %d starts", h.rec.starts)
	}
}

func TestDrainCancelsRunningCountdown(t *testing.T) {
	h := newHarness(t, "Q1", "done")
	_ = h.ctrl.Begin(context.Background())
	if err := h.ctrl.Drain(); err != nil {
		t.Fatalf("drain: %v", err)
	}
	h.sched.FireStale()
	if len(h.svc.Calls()) != 0 {
		t.Fatalf("expected no submission from a tick after drain")
	}
	if h.rec.Active() {
		t.Fatalf("expected recorder released")
	}
}

func TestListenersSeeTransitionsInOrder(t *testing.T) {
	for i := 0; i < 50; i++ {
		h := newHarness(t, "Q1", "Q2", "done")
		h.svc.gate = make(chan struct{})
		ctx := context.Background()
		_ = h.ctrl.Begin(ctx)
		_ = h.ctrl.EndRound()

		advanced := make(chan struct{})
		go func() {
			defer close(advanced)
			for h.ctrl.Advance(ctx) != nil {
				time.Sleep(10 * time.Microsecond)
			}
		}()
		close(h.svc.gate)
		<-advanced
		h.ctrl.Wait()

		phases := h.cap.Phases()
		n := len(phases)
		if n < 2 || phases[n-2] != PhaseBetweenRounds || phases[n-1] != PhaseInRound {
			t.Fatalf("iteration %d: expected between_rounds then in_round last, got %v", i, phases)
		}
		if last := phases[n-1]; last != h.ctrl.Phase() {
			t.Fatalf("iteration %d: listener saw %s, controller is %s", i, last, h.ctrl.Phase())
		}
		_ = h.ctrl.Close()
	}
}

func TestCloseDiscardsInFlightSubmission(t *testing.T) {
	h := newHarness(t, "Q1", "done")
	h.svc.gate = make(chan struct{})
	_ = h.ctrl.Begin(context.Background())
	_ = h.ctrl.EndRound()

	before := len(h.cap.Phases())
	if err := h.ctrl.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	h.ctrl.Wait()

	if h.svc.ctxErr == nil {
		t.Fatalf("expected submission context to be cancelled")
	}
	if got := len(h.cap.Phases()); got != before {
		t.Fatalf("expected no phase change after close, got %d events", got-before)
	}
	if h.obs.Count("submission_discarded") != 1 {
		t.Fatalf("expected submission_discarded metric")
	}
	if err := h.ctrl.Advance(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestCloseReleasesActiveRecording(t *testing.T) {
	h := newHarness(t, "Q1", "done")
	_ = h.ctrl.Begin(context.Background())
	_ = h.ctrl.Close()
	if h.rec.Active() {
		t.Fatalf("expected recorder released on close")
	}
	if h.sched.Active() != 0 {
		t.Fatalf("expected countdown cancelled on close")
	}
}

func TestResultEventPrecedesPhaseChange(t *testing.T) {
	h := newHarness(t, "Q1", "done")
	_ = h.ctrl.Begin(context.Background())
	_ = h.ctrl.EndRound()
	h.ctrl.Wait()

	types := h.cap.Types()
	n := len(types)
	if n < 2 || types[n-2] != EventResult || types[n-1] != EventPhase {
		t.Fatalf("expected result then phase events, got %v", types)
	}
}

func TestTickEventsCarryBand(t *testing.T) {
	h := newHarness(t, "Q1", "done")
	_ = h.ctrl.Begin(context.Background())
	h.sched.Fire(6)

	h.cap.mu.Lock()
	last := h.cap.events[len(h.cap.events)-1]
	h.cap.mu.Unlock()
	if last.Type != EventTick || last.Remaining != 9 || last.Band != BandWarning {
		t.Fatalf("expected warning tick at 9, got %+v", last)
	}
}
