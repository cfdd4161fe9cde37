package app

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/harunnryd/mockinterview/pkg/errorsx"
	"github.com/spf13/viper"
)

// Config is the process configuration loaded by LoadConfig.
type Config struct {
	LogLevel      string              `mapstructure:"log_level"`
	LogFormat     string              `mapstructure:"log_format" validate:"omitempty,oneof=text json"`
	LogFile       LogFileConfig       `mapstructure:"log_file"`
	Interview     InterviewConfig     `mapstructure:"interview"`
	Vendors       VendorsConfig       `mapstructure:"vendors"`
	Transport     VendorConfig        `mapstructure:"transport"`
	Visualizer    VisualizerConfig    `mapstructure:"visualizer"`
	Session       SessionConfig       `mapstructure:"session"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Privacy       PrivacyConfig       `mapstructure:"privacy"`
}

type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"gte=0"`
	Compress   bool   `mapstructure:"compress"`
}

type InterviewConfig struct {
	RoundSeconds    int      `mapstructure:"round_seconds" validate:"gt=0"`
	TickIntervalMs  int      `mapstructure:"tick_interval_ms" validate:"gte=0"`
	Questions       []string `mapstructure:"questions"`
	QuestionsFile   string   `mapstructure:"questions_file"`
	SubmitTimeoutMs int      `mapstructure:"submit_timeout_ms" validate:"gte=0"`
}

// VendorConfig names a registered provider and its free-form settings.
type VendorConfig struct {
	Provider string         `mapstructure:"provider" validate:"required"`
	Settings map[string]any `mapstructure:"settings"`
}

type VendorsConfig struct {
	Recorder    VendorConfig `mapstructure:"recorder"`
	Transcriber VendorConfig `mapstructure:"transcriber"`
}

type VisualizerConfig struct {
	FrameIntervalMs int     `mapstructure:"frame_interval_ms" validate:"gte=0"`
	Width           float64 `mapstructure:"width" validate:"gte=0"`
	Height          float64 `mapstructure:"height" validate:"gte=0"`
	SpectrumBars    int     `mapstructure:"spectrum_bars" validate:"gte=0,lte=512"`
}

type SessionConfig struct {
	ExitOnEnd      bool `mapstructure:"exit_on_end"`
	DrainTimeoutMs int  `mapstructure:"drain_timeout_ms" validate:"gte=0"`
}

type ObservabilityConfig struct {
	ArtifactsDir  string  `mapstructure:"artifacts_dir"`
	MetricsJSONL  string  `mapstructure:"metrics_jsonl"`
	RetentionDays int     `mapstructure:"retention_days" validate:"gte=0"`
	SampleRate    float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1"`
}

type PrivacyConfig struct {
	RedactPII bool `mapstructure:"redact_pii"`
}

// EnvPrefix scopes environment overrides, e.g. MOCKINTERVIEW_LOG_LEVEL.
const EnvPrefix = "MOCKINTERVIEW"

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("log_file.path", "")
	v.SetDefault("log_file.max_size_mb", 50)
	v.SetDefault("log_file.max_backups", 3)
	v.SetDefault("log_file.max_age_days", 14)
	v.SetDefault("log_file.compress", false)
	v.SetDefault("interview.round_seconds", 15)
	v.SetDefault("interview.tick_interval_ms", 1000)
	v.SetDefault("interview.questions", []string{})
	v.SetDefault("interview.questions_file", "")
	v.SetDefault("interview.submit_timeout_ms", 30000)
	v.SetDefault("vendors.recorder.provider", "portaudio")
	v.SetDefault("vendors.transcriber.provider", "http_feedback")
	v.SetDefault("transport.provider", "web")
	v.SetDefault("visualizer.frame_interval_ms", 50)
	v.SetDefault("visualizer.width", 600)
	v.SetDefault("visualizer.height", 120)
	v.SetDefault("visualizer.spectrum_bars", 32)
	v.SetDefault("session.exit_on_end", false)
	v.SetDefault("session.drain_timeout_ms", 10000)
	v.SetDefault("observability.artifacts_dir", "")
	v.SetDefault("observability.metrics_jsonl", "")
	v.SetDefault("observability.retention_days", 0)
	v.SetDefault("observability.sample_rate", 1.0)
	v.SetDefault("privacy.redact_pii", true)
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return cfg
}

// LoadConfig reads a YAML config file, applies defaults and environment
// overrides, expands ${VAR} references and validates the result.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errorsx.Wrap(fmt.Errorf("read config: %w", err), errorsx.ReasonConfig)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errorsx.Wrap(fmt.Errorf("unmarshal: %w", err), errorsx.ReasonConfig)
	}

	expandEnvStrings(&cfg)
	cfg.Vendors.Recorder.Provider = strings.TrimSpace(cfg.Vendors.Recorder.Provider)
	cfg.Vendors.Transcriber.Provider = strings.TrimSpace(cfg.Vendors.Transcriber.Provider)
	cfg.Transport.Provider = strings.TrimSpace(cfg.Transport.Provider)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks field constraints and that some question source is set.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return errorsx.Newf(errorsx.ReasonConfig, "%s", describeFieldError(verrs[0]))
		}
		return errorsx.Wrap(err, errorsx.ReasonConfig)
	}
	if len(c.Interview.Questions) == 0 && strings.TrimSpace(c.Interview.QuestionsFile) == "" {
		return errorsx.Newf(errorsx.ReasonConfig, "interview.questions or interview.questions_file is required")
	}
	return nil
}

// describeFieldError renders a validator error with the config key path,
// e.g. "observability.sample_rate must be lte 1, got 2".
func describeFieldError(fe validator.FieldError) string {
	path := fe.Namespace()
	if _, rest, ok := strings.Cut(path, "."); ok {
		path = rest
	}
	if fe.Tag() == "required" {
		return path + " is required"
	}
	if fe.Param() == "" {
		return fmt.Sprintf("%s must be %s, got %v", path, fe.Tag(), fe.Value())
	}
	return fmt.Sprintf("%s must be %s %s, got %v", path, fe.Tag(), fe.Param(), fe.Value())
}

func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
	cfg.Vendors.Recorder.Settings = expandSettings(cfg.Vendors.Recorder.Settings)
	cfg.Vendors.Transcriber.Settings = expandSettings(cfg.Vendors.Transcriber.Settings)
	cfg.Transport.Settings = expandSettings(cfg.Transport.Settings)
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			ks, ok := k.(string)
			if !ok {
				continue
			}
			out[ks] = expandAny(v)
		}
		return out
	default:
		return v
	}
}

func expandValue(v reflect.Value) {
	if !v.IsValid() {
		return
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		expandValue(v.Elem())
		return
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			expandValue(v.Index(i))
		}
	}
}
