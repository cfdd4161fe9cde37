package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harunnryd/mockinterview/pkg/adapters/recorder"
	"github.com/harunnryd/mockinterview/pkg/errorsx"
	"github.com/harunnryd/mockinterview/pkg/interview"
	"github.com/harunnryd/mockinterview/pkg/logging"
	"github.com/harunnryd/mockinterview/pkg/metrics"
	"github.com/harunnryd/mockinterview/pkg/observers"
	"github.com/harunnryd/mockinterview/pkg/questions"
	"github.com/harunnryd/mockinterview/pkg/redact"
	"github.com/harunnryd/mockinterview/pkg/runner"
	"github.com/harunnryd/mockinterview/pkg/session"
	"github.com/harunnryd/mockinterview/pkg/transports"
	"github.com/spf13/afero"
)

// EngineOptions configures NewEngine. Only Config is required.
type EngineOptions struct {
	Config    Config
	Providers *ProviderRegistry
	Logger    *slog.Logger
	// FileSys backs question files and artifacts. Defaults to the OS.
	FileSys afero.Fs
	// SessionID overrides the generated uuid.
	SessionID string
	// Scheduler overrides the countdown ticker.
	Scheduler interview.Scheduler
	// Banner receives the startup banner; nil disables it.
	Banner io.Writer
}

// Engine owns one interview session and everything it needs to run.
type Engine struct {
	cfg       Config
	log       *slog.Logger
	sessionID string
	recorder  recorder.Recorder
	transport transports.Transport
	ctrl      *interview.Controller
	session   *session.Session
	runner    *runner.LifecycleRunner
	multiObs  *observers.MultiObserver
	asyncObs  *metrics.AsyncObserver
	latency   *observers.LatencyObserver
	summary   *observers.SummaryObserver
}

// NewEngine loads questions, builds providers and observers, and wires the
// controller, session and runner. Nothing starts until Run.
func NewEngine(opts EngineOptions) (*Engine, error) {
	cfg := opts.Config
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	fs := opts.FileSys
	if fs == nil {
		fs = afero.NewOsFs()
	}
	providers := opts.Providers
	if providers == nil {
		providers = NewProviderRegistry()
		RegisterDefaults(providers)
	}
	redact.SetEnabled(cfg.Privacy.RedactPII)

	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	qs, err := loadQuestions(fs, cfg.Interview)
	if err != nil {
		return nil, err
	}

	rec, err := providers.BuildRecorder(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("build recorder: %w", err)
	}
	svc, err := providers.BuildTranscriber(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("build transcriber: %w", err)
	}
	tr, err := providers.BuildTransport(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("build transport: %w", err)
	}

	e := &Engine{
		cfg:       cfg,
		log:       log,
		sessionID: sessionID,
		recorder:  rec,
		transport: tr,
	}
	obs, err := e.buildObservers(fs)
	if err != nil {
		return nil, err
	}

	log.Info("mockinterview_init",
		"session_id", sessionID,
		"recorder", rec.Name(),
		"transcriber", svc.Name(),
		"transport", tr.Name(),
		"questions", len(qs)-1,
		"round_seconds", cfg.Interview.RoundSeconds,
	)

	e.ctrl = interview.NewController(interview.Options{
		SessionID:     sessionID,
		Questions:     qs,
		RoundSeconds:  cfg.Interview.RoundSeconds,
		TickInterval:  time.Duration(cfg.Interview.TickIntervalMs) * time.Millisecond,
		SubmitTimeout: time.Duration(cfg.Interview.SubmitTimeoutMs) * time.Millisecond,
		Scheduler:     opts.Scheduler,
		Recorder:      rec,
		Transcriber:   svc,
		Observer:      obs,
		Logger:        logging.NewComponentLogger(log, "interview"),
	})

	var analyser recorder.Analyser
	if a, ok := rec.(recorder.Analyser); ok {
		analyser = a
	}
	e.session = session.New(e.ctrl, tr, session.Options{
		Analyser:      analyser,
		FrameInterval: time.Duration(cfg.Visualizer.FrameIntervalMs) * time.Millisecond,
		FrameWidth:    cfg.Visualizer.Width,
		FrameHeight:   cfg.Visualizer.Height,
		SpectrumBars:  cfg.Visualizer.SpectrumBars,
		ExitOnEnd:     cfg.Session.ExitOnEnd,
		Logger:        logging.NewComponentLogger(log, "session"),
	})

	e.runner = runner.NewLifecycleRunner(e.session, e.ctrl, runner.Hooks{
		OnStop: e.shutdown,
	}, time.Duration(cfg.Session.DrainTimeoutMs)*time.Millisecond)
	e.runner.SetBannerOutput(opts.Banner)
	return e, nil
}

func loadQuestions(fs afero.Fs, cfg InterviewConfig) ([]string, error) {
	if path := strings.TrimSpace(cfg.QuestionsFile); path != "" {
		qs, err := questions.Load(fs, path)
		if err != nil {
			return nil, errorsx.Wrap(err, errorsx.ReasonConfig)
		}
		return qs, nil
	}
	qs := questions.WithSentinel(cfg.Questions)
	if len(qs) <= 1 {
		return nil, errorsx.Wrap(questions.ErrNoQuestions, errorsx.ReasonConfig)
	}
	return qs, nil
}

func (e *Engine) buildObservers(fs afero.Fs) (metrics.Observer, error) {
	oc := e.cfg.Observability
	e.latency = observers.NewLatencyObserver(logging.NewComponentLogger(e.log, "latency"))
	list := []metrics.Observer{
		observers.NewLoggerObserver(e.log),
		e.latency,
	}
	if dir := strings.TrimSpace(oc.ArtifactsDir); dir != "" {
		if oc.RetentionDays > 0 {
			n, err := observers.PurgeArtifacts(fs, dir, time.Duration(oc.RetentionDays)*24*time.Hour)
			if err != nil {
				e.log.Warn("artifact_purge_failed", "dir", dir, "error", err)
			} else if n > 0 {
				e.log.Info("artifacts_purged", "dir", dir, "removed", n)
			}
		}
		e.summary = observers.NewSummaryObserver(fs, dir)
		list = append(list, observers.NewTimelineObserver(fs, dir), e.summary)
	}
	if path := strings.TrimSpace(oc.MetricsJSONL); path != "" {
		if dir := filepath.Dir(path); dir != "." {
			if err := fs.MkdirAll(dir, 0o755); err != nil {
				return nil, errorsx.Wrap(fmt.Errorf("metrics dir: %w", err), errorsx.ReasonConfig)
			}
		}
		f, err := fs.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, errorsx.Wrap(fmt.Errorf("open metrics file: %w", err), errorsx.ReasonConfig)
		}
		list = append(list, metrics.NewJSONLObserver(f))
	}
	e.multiObs = observers.NewMultiObserver(list...)
	sampled := metrics.NewSamplingObserver(e.multiObs, oc.SampleRate, "timer_tick")
	e.asyncObs = metrics.NewAsyncObserver(sampled, 2048)
	return e.asyncObs, nil
}

// Run blocks until the session finishes or ctx is cancelled. In-flight
// submissions are drained before it returns.
func (e *Engine) Run(ctx context.Context) error {
	return e.runner.Run(ctx)
}

// Stop cancels the session and drains it.
func (e *Engine) Stop() error {
	return e.runner.Stop()
}

func (e *Engine) shutdown() {
	if err := e.transport.Stop(); err != nil {
		e.log.Warn("transport_stop_failed", "error", err)
	}
	e.asyncObs.Close()
	if dropped := e.asyncObs.Dropped(); dropped > 0 {
		e.log.Warn("metrics_dropped", "count", dropped)
	}
	if err := e.multiObs.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		e.log.Warn("observer_close_failed", "error", err)
	}
	e.log.Info("mockinterview_stopped", "session_id", e.sessionID)
}

func (e *Engine) SessionID() string { return e.sessionID }

func (e *Engine) Controller() *interview.Controller { return e.ctrl }

func (e *Engine) Transport() transports.Transport { return e.transport }

func (e *Engine) Latency() *observers.LatencyObserver { return e.latency }

// Summary is nil unless observability.artifacts_dir is set.
func (e *Engine) Summary() *observers.SummaryObserver { return e.summary }

func (e *Engine) State() runner.State { return e.runner.State() }

func (e *Engine) Config() Config { return e.cfg }
