// Package session connects a transport to an interview controller: UI
// signals drive the controller and controller events become UI updates.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/harunnryd/mockinterview/pkg/adapters/recorder"
	"github.com/harunnryd/mockinterview/pkg/errorsx"
	"github.com/harunnryd/mockinterview/pkg/interview"
	"github.com/harunnryd/mockinterview/pkg/transports"
	"github.com/harunnryd/mockinterview/pkg/visualizer"
)

// Options tunes the visualizer stream and shutdown behaviour of a Session.
// Zero frame settings fall back to 50ms frames of 600x120 with 32 bars.
type Options struct {
	// Analyser feeds the visualizer; nil disables frames.
	Analyser      recorder.Analyser
	FrameInterval time.Duration
	FrameWidth    float64
	FrameHeight   float64
	SpectrumBars  int
	// ExitOnEnd makes Run return once the interview reaches its end.
	ExitOnEnd bool
	Logger    *slog.Logger
}

// Session binds one Controller to one Transport: UI signals drive the
// controller and controller events become UI updates.
type Session struct {
	ctrl *interview.Controller
	tr   transports.Transport
	opts Options
	log  *slog.Logger

	mu         sync.Mutex
	frameStop  context.CancelFunc
	frameDone  chan struct{}
	ended      chan struct{}
	endOnce    sync.Once
	sendErrors int
}

// New registers the session as a controller listener. Call Run to start
// the transport.
func New(ctrl *interview.Controller, tr transports.Transport, opts Options) *Session {
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = 50 * time.Millisecond
	}
	if opts.FrameWidth <= 0 {
		opts.FrameWidth = 600
	}
	if opts.FrameHeight <= 0 {
		opts.FrameHeight = 120
	}
	if opts.SpectrumBars <= 0 {
		opts.SpectrumBars = 32
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &Session{
		ctrl:  ctrl,
		tr:    tr,
		opts:  opts,
		log:   log,
		ended: make(chan struct{}),
	}
	ctrl.AddListener(s)
	return s
}

// Run starts the transport and dispatches its signals until ctx is done,
// the transport closes, or (with ExitOnEnd) the interview ends.
func (s *Session) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.tr.Start(ctx); err != nil {
		return err
	}
	if rr, ok := s.tr.(transports.ReadyReporter); ok {
		s.log.Info("transport_ready", "transport", s.tr.Name(), "fields", rr.ReadyFields())
	}
	s.send(transports.Update{Type: transports.UpdateView, View: ptr(s.ctrl.View())})

	defer s.stopFrames()
	var ended <-chan struct{}
	if s.opts.ExitOnEnd {
		ended = s.ended
	}
	signals := s.tr.Signals()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ended:
			return nil
		case sig, ok := <-signals:
			if !ok {
				return nil
			}
			s.handle(ctx, sig)
		}
	}
}

// Ended is closed when the controller reaches the end of the interview.
func (s *Session) Ended() <-chan struct{} { return s.ended }

func (s *Session) handle(ctx context.Context, sig transports.Signal) {
	var err error
	switch sig.Kind {
	case transports.SignalBegin:
		err = s.ctrl.Begin(ctx)
		if errors.Is(err, interview.ErrAlreadyBegun) {
			err = nil
		}
	case transports.SignalAdvance:
		err = s.ctrl.Signal(ctx)
	default:
		return
	}
	var ite *interview.InvalidTransitionError
	switch {
	case err == nil:
	case errors.As(err, &ite):
		s.log.Debug("signal_ignored", "kind", string(sig.Kind), "phase", ite.From.String(),
			"reason_code", string(errorsx.ReasonInvalidTransition))
	default:
		s.log.Warn("signal_failed", "kind", string(sig.Kind), "client_id", sig.ClientID, "error", err)
	}
}

// OnEvent turns controller events into UI updates. It never calls back into
// the controller.
func (s *Session) OnEvent(ev interview.Event) {
	switch ev.Type {
	case interview.EventPhase:
		if ev.To == interview.PhaseInRound {
			s.send(transports.Update{Type: transports.UpdateQuestion, Round: ev.Round.Index, Question: ev.Round.Question})
		}
		s.send(transports.Update{Type: transports.UpdateView, Round: ev.Round.Index, View: ptr(interview.Render(ev.To))})
		switch ev.To {
		case interview.PhaseInRound:
			s.send(transports.Update{Type: transports.UpdateTimer, Round: ev.Round.Index, Timer: ptr(interview.RenderTimer(ev.Remaining))})
			s.startFrames()
		case interview.PhaseEnd:
			s.stopFrames()
			s.endOnce.Do(func() { close(s.ended) })
		default:
			s.stopFrames()
		}
	case interview.EventTick:
		s.send(transports.Update{Type: transports.UpdateTimer, Round: ev.Round.Index, Timer: ptr(interview.RenderTimer(ev.Remaining))})
	case interview.EventResult:
		res := ev.Result
		s.send(transports.Update{Type: transports.UpdateResult, Round: ev.Round.Index, Result: &res})
	}
}

func (s *Session) startFrames() {
	if s.opts.Analyser == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frameStop != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.frameStop = cancel
	s.frameDone = done
	go s.frameLoop(ctx, done)
}

func (s *Session) stopFrames() {
	s.mu.Lock()
	cancel, done := s.frameStop, s.frameDone
	s.frameStop, s.frameDone = nil, nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

func (s *Session) frameLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.opts.FrameInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		samples := s.opts.Analyser.Snapshot()
		if len(samples) == 0 {
			continue
		}
		frame := visualizer.Render(samples, s.opts.FrameWidth, s.opts.FrameHeight, s.opts.SpectrumBars)
		s.send(transports.Update{Type: transports.UpdateVisualizer, Frame: &frame})
	}
}

func (s *Session) send(u transports.Update) {
	if err := s.tr.Send(u); err != nil {
		s.mu.Lock()
		s.sendErrors++
		n := s.sendErrors
		s.mu.Unlock()
		s.log.Warn("transport_send_failed", "type", string(u.Type), "error", err,
			"reason_code", string(errorsx.Reason(err)), "failures", n)
	}
}

func ptr[T any](v T) *T { return &v }
