package app

import (
	"log/slog"
	"strings"

	"github.com/harunnryd/mockinterview/pkg/adapters/recorder"
	"github.com/harunnryd/mockinterview/pkg/adapters/transcriber"
	"github.com/harunnryd/mockinterview/pkg/configutil"
	"github.com/harunnryd/mockinterview/pkg/errorsx"
	"github.com/harunnryd/mockinterview/pkg/logging"
	"github.com/harunnryd/mockinterview/pkg/providers/httpfeedback"
	"github.com/harunnryd/mockinterview/pkg/providers/mock"
	"github.com/harunnryd/mockinterview/pkg/providers/portaudio"
	"github.com/harunnryd/mockinterview/pkg/transports"
	"github.com/harunnryd/mockinterview/pkg/transports/console"
	mocktransport "github.com/harunnryd/mockinterview/pkg/transports/mock"
	"github.com/harunnryd/mockinterview/pkg/transports/web"
	"github.com/spf13/afero"
)

type portaudioSettings struct {
	SampleRate      int `mapstructure:"sample_rate"`
	FramesPerBuffer int `mapstructure:"frames_per_buffer"`
	MaxSeconds      int `mapstructure:"max_seconds"`
}

type httpFeedbackSettings struct {
	BaseURL   string            `mapstructure:"base_url"`
	Path      string            `mapstructure:"path"`
	TimeoutMs int               `mapstructure:"timeout_ms"`
	Headers   map[string]string `mapstructure:"headers"`
}

type webSettings struct {
	ServerAddr     string   `mapstructure:"server_addr"`
	WebsocketPath  string   `mapstructure:"ws_path"`
	StaticDir      string   `mapstructure:"static_dir"`
	AllowAnyOrigin bool     `mapstructure:"allow_any_origin"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type consoleSettings struct {
	ShowLevel *bool `mapstructure:"show_level"`
}

// RegisterDefaults installs every built-in recorder, transcriber and
// transport under the names used in config files.
func RegisterDefaults(reg *ProviderRegistry) {
	reg.RegisterRecorder("portaudio", func(cfg Config, log *slog.Logger) (recorder.Recorder, error) {
		settings := cfg.Vendors.Recorder.Settings
		if err := configutil.Validate("vendors.recorder.settings", settings, configutil.Schema{
			Optional: []string{"sample_rate", "frames_per_buffer", "max_seconds"},
		}); err != nil {
			return nil, err
		}
		var s portaudioSettings
		if err := configutil.DecodeSettings(settings, &s); err != nil {
			return nil, err
		}
		return portaudio.New(portaudio.Config{
			SampleRate:      s.SampleRate,
			FramesPerBuffer: s.FramesPerBuffer,
			MaxSeconds:      s.MaxSeconds,
			Logger:          logging.NewComponentLogger(log, "portaudio"),
			FileSys:         afero.NewOsFs(),
		}), nil
	})

	reg.RegisterRecorder("mock", func(cfg Config, log *slog.Logger) (recorder.Recorder, error) {
		settings := cfg.Vendors.Recorder.Settings
		if err := configutil.Validate("vendors.recorder.settings", settings, configutil.Schema{
			Optional: []string{"start_error", "start_delay_ms", "tone_hz", "sample_rate"},
		}); err != nil {
			return nil, err
		}
		var s mock.RecorderConfig
		if err := configutil.DecodeSettings(settings, &s); err != nil {
			return nil, err
		}
		switch strings.ToLower(strings.TrimSpace(s.StartError)) {
		case "", "permission_denied", "device_unavailable":
		default:
			return nil, errorsx.Newf(errorsx.ReasonConfig,
				"vendors.recorder.settings.start_error must be one of [permission_denied, device_unavailable], got %s", s.StartError)
		}
		return mock.NewRecorder(s), nil
	})

	reg.RegisterTranscriber("http_feedback", func(cfg Config, log *slog.Logger) (transcriber.Service, error) {
		settings := cfg.Vendors.Transcriber.Settings
		if err := configutil.Validate("vendors.transcriber.settings", settings, configutil.Schema{
			Required: []string{"base_url"},
			Optional: []string{"path", "timeout_ms", "headers"},
		}); err != nil {
			return nil, err
		}
		var s httpFeedbackSettings
		if err := configutil.DecodeSettings(settings, &s); err != nil {
			return nil, err
		}
		return httpfeedback.New(httpfeedback.Config{
			BaseURL:   s.BaseURL,
			Path:      s.Path,
			TimeoutMs: s.TimeoutMs,
			Headers:   s.Headers,
			Logger:    logging.NewComponentLogger(log, "http_feedback"),
		})
	})

	reg.RegisterTranscriber("mock", func(cfg Config, log *slog.Logger) (transcriber.Service, error) {
		settings := cfg.Vendors.Transcriber.Settings
		if err := configutil.Validate("vendors.transcriber.settings", settings, configutil.Schema{
			Optional: []string{"transcript", "feedback", "error", "delay_ms"},
		}); err != nil {
			return nil, err
		}
		var s mock.TranscriberConfig
		if err := configutil.DecodeSettings(settings, &s); err != nil {
			return nil, err
		}
		return mock.NewTranscriber(s), nil
	})

	reg.RegisterTransport("web", func(cfg Config, log *slog.Logger) (transports.Transport, error) {
		settings := cfg.Transport.Settings
		if err := configutil.Validate("transport.settings", settings, configutil.Schema{
			Optional: []string{"server_addr", "ws_path", "static_dir", "allow_any_origin", "allowed_origins"},
		}); err != nil {
			return nil, err
		}
		var s webSettings
		if err := configutil.DecodeSettings(settings, &s); err != nil {
			return nil, err
		}
		if s.WebsocketPath != "" && !strings.HasPrefix(s.WebsocketPath, "/") {
			return nil, errorsx.Newf(errorsx.ReasonConfig, "transport.settings.ws_path must start with /, got %s", s.WebsocketPath)
		}
		return web.New(web.Config{
			ServerAddr:     s.ServerAddr,
			WebsocketPath:  s.WebsocketPath,
			StaticDir:      s.StaticDir,
			AllowAnyOrigin: s.AllowAnyOrigin,
			AllowedOrigins: s.AllowedOrigins,
			Logger:         logging.NewComponentLogger(log, "web"),
		}), nil
	})

	reg.RegisterTransport("console", func(cfg Config, log *slog.Logger) (transports.Transport, error) {
		settings := cfg.Transport.Settings
		if err := configutil.Validate("transport.settings", settings, configutil.Schema{
			Optional: []string{"show_level"},
		}); err != nil {
			return nil, err
		}
		var s consoleSettings
		if err := configutil.DecodeSettings(settings, &s); err != nil {
			return nil, err
		}
		return console.New(console.Config{ShowLevel: configutil.BoolValue(s.ShowLevel, false)}), nil
	})

	reg.RegisterTransport("mock", func(cfg Config, log *slog.Logger) (transports.Transport, error) {
		return mocktransport.New(), nil
	})
}
