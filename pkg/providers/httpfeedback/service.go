package httpfeedback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/harunnryd/mockinterview/pkg/adapters/recorder"
	"github.com/harunnryd/mockinterview/pkg/adapters/transcriber"
	"github.com/harunnryd/mockinterview/pkg/configutil"
	"github.com/harunnryd/mockinterview/pkg/errorsx"
)

const DefaultPath = "/transcribe_and_feedback"

// Config points the service at the feedback server. Path defaults to
// DefaultPath; TimeoutMs of zero leaves the request bound only by ctx.
type Config struct {
	BaseURL   string            `mapstructure:"base_url"`
	Path      string            `mapstructure:"path"`
	TimeoutMs int               `mapstructure:"timeout_ms"`
	Headers   map[string]string `mapstructure:"headers"`
	Logger    *slog.Logger
}

// Service posts each answer as multipart form data and decodes the
// transcript and feedback from the JSON reply.
type Service struct {
	cfg    Config
	client *resty.Client
	log    *slog.Logger
}

// New validates cfg and builds the resty client. BaseURL is required.
func New(cfg Config) (*Service, error) {
	if err := configutil.RequireString(cfg.BaseURL, "vendors.transcriber.settings.base_url"); err != nil {
		return nil, err
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if !strings.HasPrefix(cfg.Path, "/") {
		cfg.Path = "/" + cfg.Path
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Accept", "application/json")
	if cfg.TimeoutMs > 0 {
		client.SetTimeout(time.Duration(cfg.TimeoutMs) * time.Millisecond)
	}
	for k, v := range cfg.Headers {
		client.SetHeader(k, v)
	}
	return &Service{cfg: cfg, client: client, log: log}, nil
}

func (s *Service) Name() string { return "http_feedback" }

// Submit posts the recording as the "audio" part and the question as a
// form field. Every failure carries a submission_* reason code.
func (s *Service) Submit(ctx context.Context, audio recorder.Recording, question string) (transcriber.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	filename := audio.Filename
	if filename == "" {
		filename = recorder.EmptyRecording().Filename
	}
	mime := audio.MIMEType
	if mime == "" {
		mime = "application/octet-stream"
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetMultipartField("audio", filename, mime, bytes.NewReader(audio.Data)).
		SetFormData(map[string]string{"question": question}).
		Post(s.cfg.Path)
	if err != nil {
		return transcriber.Result{}, errorsx.Wrap(fmt.Errorf("post answer: %w", err), errorsx.ReasonSubmissionSend)
	}
	if !resp.IsSuccess() {
		return transcriber.Result{}, errorsx.Newf(errorsx.ReasonSubmissionStatus,
			"transcribe_and_feedback returned %d: %s", resp.StatusCode(), truncate(resp.String(), 200))
	}

	var out transcriber.Result
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return transcriber.Result{}, errorsx.Wrap(fmt.Errorf("decode feedback: %w", err), errorsx.ReasonSubmissionDecode)
	}
	s.log.Debug("feedback_received",
		"status", resp.StatusCode(),
		"latency_ms", resp.Time().Milliseconds(),
		"audio_bytes", len(audio.Data),
	)
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ transcriber.Service = (*Service)(nil)
