package app

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/harunnryd/mockinterview/pkg/adapters/recorder"
	"github.com/harunnryd/mockinterview/pkg/adapters/transcriber"
	"github.com/harunnryd/mockinterview/pkg/errorsx"
	"github.com/harunnryd/mockinterview/pkg/transports"
)

type RecorderFactory func(cfg Config, log *slog.Logger) (recorder.Recorder, error)
type TranscriberFactory func(cfg Config, log *slog.Logger) (transcriber.Service, error)
type TransportFactory func(cfg Config, log *slog.Logger) (transports.Transport, error)

// ProviderRegistry maps provider names from config to constructors.
// Names are matched case-insensitively.
type ProviderRegistry struct {
	recorders    map[string]RecorderFactory
	transcribers map[string]TranscriberFactory
	transports   map[string]TransportFactory
}

// NewProviderRegistry returns an empty registry; see RegisterDefaults.
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		recorders:    make(map[string]RecorderFactory),
		transcribers: make(map[string]TranscriberFactory),
		transports:   make(map[string]TransportFactory),
	}
}

func (r *ProviderRegistry) RegisterRecorder(name string, factory RecorderFactory) {
	r.recorders[normalizeName(name)] = factory
}

func (r *ProviderRegistry) RegisterTranscriber(name string, factory TranscriberFactory) {
	r.transcribers[normalizeName(name)] = factory
}

func (r *ProviderRegistry) RegisterTransport(name string, factory TransportFactory) {
	r.transports[normalizeName(name)] = factory
}

// BuildRecorder constructs the recorder named by vendors.recorder.provider.
func (r *ProviderRegistry) BuildRecorder(cfg Config, log *slog.Logger) (recorder.Recorder, error) {
	provider := cfg.Vendors.Recorder.Provider
	fn := r.recorders[normalizeName(provider)]
	if fn == nil {
		return nil, notRegistered("recorder", provider, r.recorders)
	}
	return fn(cfg, log)
}

func (r *ProviderRegistry) BuildTranscriber(cfg Config, log *slog.Logger) (transcriber.Service, error) {
	provider := cfg.Vendors.Transcriber.Provider
	fn := r.transcribers[normalizeName(provider)]
	if fn == nil {
		return nil, notRegistered("transcriber", provider, r.transcribers)
	}
	return fn(cfg, log)
}

func (r *ProviderRegistry) BuildTransport(cfg Config, log *slog.Logger) (transports.Transport, error) {
	provider := cfg.Transport.Provider
	fn := r.transports[normalizeName(provider)]
	if fn == nil {
		return nil, notRegistered("transport", provider, r.transports)
	}
	return fn(cfg, log)
}

func notRegistered[F any](kind, provider string, known map[string]F) error {
	names := make([]string, 0, len(known))
	for name := range known {
		names = append(names, name)
	}
	sort.Strings(names)
	return errorsx.Newf(errorsx.ReasonConfig, "%s provider not registered: %s (known: %s)",
		kind, provider, strings.Join(names, ", "))
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
