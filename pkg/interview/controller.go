package interview

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/harunnryd/mockinterview/pkg/adapters/recorder"
	"github.com/harunnryd/mockinterview/pkg/adapters/transcriber"
	"github.com/harunnryd/mockinterview/pkg/errorsx"
	"github.com/harunnryd/mockinterview/pkg/metrics"
	"github.com/harunnryd/mockinterview/pkg/questions"
)

var (
	ErrAlreadyBegun = errors.New("interview already begun")
	ErrClosed       = errors.New("interview controller closed")
)

// Options configures a Controller. Zero values fall back to the package
// defaults: a 15 second round, one second ticks and a wall-clock scheduler.
type Options struct {
	SessionID     string
	Questions     []string
	RoundSeconds  int
	TickInterval  time.Duration
	SubmitTimeout time.Duration
	Scheduler     Scheduler
	Recorder      recorder.Recorder
	Transcriber   transcriber.Service
	Observer      metrics.Observer
	Logger        *slog.Logger
}

// Controller owns the phase, the question queue, the countdown and the
// recorder/submission lifecycle of one interview session.
type Controller struct {
	mu        sync.Mutex
	emitMu    sync.Mutex
	sessionID string
	phase     Phase
	queue     *questions.Queue
	round     Round
	timer     countdown
	began     bool
	closed    bool
	recording bool
	draining  bool
	result    *transcriber.Result

	rec           recorder.Recorder
	svc           transcriber.Service
	submitTimeout time.Duration
	submitCancel  context.CancelFunc
	baseCtx       context.Context
	baseCancel    context.CancelFunc
	inflight      sync.WaitGroup

	listeners []Listener
	obs       metrics.Observer
	log       *slog.Logger
}

type submission struct {
	round     Round
	recording bool
	ctx       context.Context
	cancel    context.CancelFunc
	endedAt   time.Time
}

// NewController builds a controller in BetweenRounds. Nothing runs until
// Begin or Signal is called.
func NewController(opts Options) *Controller {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	obs := opts.Observer
	if obs == nil {
		obs = metrics.NoopObserver{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		sessionID:     opts.SessionID,
		phase:         PhaseBetweenRounds,
		queue:         questions.NewQueue(opts.Questions),
		timer:         newCountdown(opts.RoundSeconds, opts.TickInterval, opts.Scheduler),
		rec:           opts.Recorder,
		svc:           opts.Transcriber,
		submitTimeout: opts.SubmitTimeout,
		baseCtx:       ctx,
		baseCancel:    cancel,
		obs:           obs,
		log:           log.With(slog.String("session_id", opts.SessionID)),
	}
}

// AddListener registers a listener for controller events. Listeners are
// called in event order and must not call back into the Controller.
func (c *Controller) AddListener(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Round returns the current (or last) round.
func (c *Controller) Round() Round {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.round
}

// Remaining returns the countdown value in seconds.
func (c *Controller) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timer.remaining
}

// TimerRunning reports whether a countdown is scheduled.
func (c *Controller) TimerRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timer.running
}

// Recording reports whether the recorder is held by the current round.
func (c *Controller) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recording
}

// Result returns the feedback of the last round, if it arrived.
func (c *Controller) Result() (transcriber.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result == nil {
		return transcriber.Result{}, false
	}
	return *c.result, true
}

// View renders the current phase.
func (c *Controller) View() View {
	return Render(c.Phase())
}

// Begin warms up the recorder and starts the first round.
func (c *Controller) Begin(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.began {
		c.mu.Unlock()
		return ErrAlreadyBegun
	}
	c.began = true
	c.mu.Unlock()

	if p, ok := c.rec.(recorder.Preparer); ok {
		if err := p.Prepare(ctx); err != nil {
			c.log.Warn("recorder_prepare_failed", "error", err, "reason_code", string(errorsx.Reason(err)))
		}
	}
	return c.Advance(ctx)
}

// Signal handles the manual end/advance signal: it ends an active round or
// advances to the next one.
func (c *Controller) Signal(ctx context.Context) error {
	c.mu.Lock()
	phase := c.phase
	began := c.began
	c.mu.Unlock()

	switch phase {
	case PhaseInRound:
		return c.EndRound()
	case PhaseBetweenRounds:
		if !began {
			return c.Begin(ctx)
		}
		return c.Advance(ctx)
	default:
		return nil
	}
}

// Advance pops the next question and starts a round, or ends the session at
// the sentinel. It fails without side effects outside BetweenRounds.
func (c *Controller) Advance(ctx context.Context) error {
	c.mu.Lock()
	if c.closed || c.draining {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.phase != PhaseBetweenRounds {
		err := &InvalidTransitionError{From: c.phase, To: PhaseInRound}
		c.mu.Unlock()
		return err
	}
	c.began = true
	question, ok := c.queue.Next()
	if !ok {
		ev := c.setPhaseLocked(PhaseEnd, "queue_exhausted")
		rounds := c.round.Index
		c.emitLocked(ev)
		c.log.Info("session_ended", "rounds", rounds)
		c.record(rounds, "session_ended", float64(rounds), nil)
		return nil
	}
	c.round = Round{
		Index:      c.round.Index + 1,
		Question:   question,
		Generation: c.round.Generation + 1,
		StartedAt:  time.Now(),
	}
	c.result = nil
	c.recording = false
	c.timer.reset()
	round := c.round
	ev := c.setPhaseLocked(PhaseInRound, "advance")
	c.emitLocked(ev)

	c.log.Info("round_started", "round", round.Index, "question", round.Question)
	c.record(round.Index, "round_started", float64(round.Index), nil)

	var startErr error
	if c.rec != nil {
		startErr = c.rec.Start(ctx)
	}

	c.mu.Lock()
	if c.closed || c.draining || c.round.Generation != round.Generation || c.phase != PhaseInRound {
		c.mu.Unlock()
		if startErr == nil && c.rec != nil {
			// The round ended or the controller shut down while the device
			// was being acquired.
			c.releaseRecorder()
		}
		return nil
	}
	if startErr != nil {
		c.log.Warn("recording_start_failed",
			"round", round.Index,
			"error", startErr,
			"reason_code", string(errorsx.ReasonRecordingStart),
		)
	} else {
		c.recording = c.rec != nil
	}
	c.timer.restart(c.onTick)
	tick := c.tickEventLocked("round_started")
	c.emitLocked(tick)

	if startErr != nil {
		c.record(round.Index, "recording_start_failed", 1, map[string]any{"error": startErr.Error()})
	}
	return nil
}

// EndRound stops an active round and submits its recording.
func (c *Controller) EndRound() error {
	return c.endRound("manual")
}

func (c *Controller) endRound(reason string) error {
	c.mu.Lock()
	if c.closed || c.draining {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.phase != PhaseInRound {
		err := &InvalidTransitionError{From: c.phase, To: PhaseProcessing}
		c.mu.Unlock()
		return err
	}
	ev, job := c.endRoundLocked(reason)
	c.emitLocked(ev)

	c.dispatch(job, reason)
	return nil
}

func (c *Controller) onTick(gen uint64) {
	c.mu.Lock()
	remaining, expired, ok := c.timer.tick(gen)
	if !ok || c.draining || c.phase != PhaseInRound {
		c.mu.Unlock()
		return
	}
	index := c.round.Index
	events := []Event{c.tickEventLocked("tick")}
	var job *submission
	if expired {
		ev, j := c.endRoundLocked("timer")
		events = append(events, ev)
		job = j
	}
	c.emitLocked(events...)

	c.record(index, "timer_tick", float64(remaining), nil)
	if job != nil {
		c.dispatch(job, "timer")
	}
}

// endRoundLocked must be called with c.mu held, phase InRound and the
// controller neither draining nor closed, so inflight never grows once
// Drain has started waiting.
func (c *Controller) endRoundLocked(reason string) (Event, *submission) {
	c.timer.cancel()
	wasRecording := c.recording
	c.recording = false
	ev := c.setPhaseLocked(PhaseProcessing, reason)

	ctx, cancel := context.WithCancel(c.baseCtx)
	if c.submitTimeout > 0 {
		var timeoutCancel context.CancelFunc
		ctx, timeoutCancel = context.WithTimeout(ctx, c.submitTimeout)
		parent := cancel
		cancel = func() {
			timeoutCancel()
			parent()
		}
	}
	c.submitCancel = cancel
	c.inflight.Add(1)
	return ev, &submission{
		round:     c.round,
		recording: wasRecording,
		ctx:       ctx,
		cancel:    cancel,
		endedAt:   time.Now(),
	}
}

func (c *Controller) dispatch(job *submission, reason string) {
	c.log.Info("round_ended", "round", job.round.Index, "reason", reason, "recording", job.recording)
	c.record(job.round.Index, "round_ended", job.endedAt.Sub(job.round.StartedAt).Seconds(), map[string]any{"reason": reason})
	go c.submit(job)
}

func (c *Controller) submit(job *submission) {
	defer c.inflight.Done()
	defer job.cancel()

	audio := recorder.EmptyRecording()
	if job.recording {
		clip, err := c.rec.Stop(job.ctx)
		if err != nil {
			c.log.Warn("recording_stop_failed",
				"round", job.round.Index,
				"error", err,
				"reason_code", string(errorsx.ReasonRecordingStop),
			)
		} else {
			audio = clip
		}
	}

	var (
		res transcriber.Result
		err error
	)
	started := time.Now()
	if c.svc != nil {
		res, err = c.svc.Submit(job.ctx, audio, job.round.Question)
	} else {
		err = errors.New("no transcription service configured")
	}
	latency := time.Since(started)

	c.mu.Lock()
	if c.closed || c.round.Generation != job.round.Generation || c.phase != PhaseProcessing {
		c.mu.Unlock()
		c.log.Info("submission_discarded", "round", job.round.Index)
		c.record(job.round.Index, "submission_discarded", latency.Seconds(), nil)
		return
	}
	c.submitCancel = nil
	var events []Event
	reason := "submission_complete"
	if err != nil {
		reason = "submission_failed"
	} else {
		c.result = &res
		events = append(events, Event{
			Type:   EventResult,
			From:   c.phase,
			To:     c.phase,
			Round:  c.round,
			Result: res,
			Reason: reason,
			Time:   time.Now(),
		})
	}
	events = append(events, c.setPhaseLocked(PhaseBetweenRounds, reason))
	c.emitLocked(events...)

	if err != nil {
		c.log.Error("submission_failed",
			"round", job.round.Index,
			"error", err,
			"reason_code", string(errorsx.Reason(err)),
		)
		c.record(job.round.Index, "submission_failed", latency.Seconds(), map[string]any{"error": err.Error()})
	} else {
		c.log.Info("submission_succeeded", "round", job.round.Index, "latency_ms", latency.Milliseconds())
		c.record(job.round.Index, "submission_succeeded", latency.Seconds(), map[string]any{
			"transcript": res.Transcript,
			"feedback":   res.Feedback,
		})
	}
}

// Wait blocks until every in-flight submission has resolved.
func (c *Controller) Wait() {
	c.inflight.Wait()
}

// Drain stops new rounds and countdowns, waits for pending submissions and
// then closes the controller.
func (c *Controller) Drain() error {
	c.mu.Lock()
	c.draining = true
	c.timer.cancel()
	c.mu.Unlock()

	c.Wait()
	return c.Close()
}

// Close cancels the countdown, releases the recorder and cancels any
// in-flight submission. It is safe to call more than once.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.timer.cancel()
	wasRecording := c.recording
	c.recording = false
	if c.submitCancel != nil {
		c.submitCancel()
		c.submitCancel = nil
	}
	c.mu.Unlock()

	c.baseCancel()
	if wasRecording {
		c.releaseRecorder()
	}
	return nil
}

func (c *Controller) releaseRecorder() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := c.rec.Stop(ctx); err != nil && !errors.Is(err, recorder.ErrNotRecording) {
		c.log.Warn("recorder_release_failed", "error", err)
	}
}

// setPhaseLocked must be called with c.mu held.
func (c *Controller) setPhaseLocked(to Phase, reason string) Event {
	from := c.phase
	if !transitionValid(from, to) {
		c.log.Error("invalid_transition",
			"from", from.String(),
			"to", to.String(),
			"reason_code", string(errorsx.ReasonInvalidTransition),
		)
	}
	c.phase = to
	return Event{
		Type:      EventPhase,
		From:      from,
		To:        to,
		Round:     c.round,
		Remaining: c.timer.remaining,
		Band:      BandFor(c.timer.remaining),
		Reason:    reason,
		Time:      time.Now(),
	}
}

func (c *Controller) tickEventLocked(reason string) Event {
	return Event{
		Type:      EventTick,
		From:      c.phase,
		To:        c.phase,
		Round:     c.round,
		Remaining: c.timer.remaining,
		Band:      BandFor(c.timer.remaining),
		Reason:    reason,
		Time:      time.Now(),
	}
}

// emitLocked must be called with c.mu held; it releases c.mu. emitMu is
// taken before c.mu is dropped, so listeners see events in the order the
// state changed even when another transition is waiting on c.mu.
func (c *Controller) emitLocked(events ...Event) {
	listeners := make([]Listener, len(c.listeners))
	copy(listeners, c.listeners)
	c.emitMu.Lock()
	c.mu.Unlock()

	defer c.emitMu.Unlock()
	for _, ev := range events {
		for _, l := range listeners {
			l.OnEvent(ev)
		}
	}
}

func (c *Controller) record(round int, name string, value float64, fields map[string]any) {
	c.obs.RecordEvent(metrics.MetricsEvent{
		Name:  name,
		Time:  time.Now(),
		Value: value,
		Tags: map[string]string{
			metrics.TagSessionID: c.sessionID,
			metrics.TagRound:     strconv.Itoa(round),
		},
		Fields: fields,
	})
}
