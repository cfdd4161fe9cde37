package mock

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/harunnryd/mockinterview/pkg/adapters/recorder"
	"github.com/spf13/afero"
)

// RecorderConfig scripts the mock recorder. StartError selects a start
// failure ("permission_denied" or "device_unavailable").
type RecorderConfig struct {
	// StartError is "permission_denied" or "device_unavailable" to simulate
	// a refused microphone.
	StartError   string  `mapstructure:"start_error"`
	StartDelayMs int     `mapstructure:"start_delay_ms"`
	ToneHz       float64 `mapstructure:"tone_hz"`
	SampleRate   int     `mapstructure:"sample_rate"`
}

// Recorder synthesises a sine tone for as long as it is recording.
type Recorder struct {
	cfg RecorderConfig
	fs  afero.Fs

	mu        sync.Mutex
	active    bool
	startedAt time.Time
	starts    int
	stops     int
}

// NewRecorder returns a recorder that captures a sine tone instead of a
// microphone.
func NewRecorder(cfg RecorderConfig) *Recorder {
	if cfg.ToneHz <= 0 {
		cfg.ToneHz = 440
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	return &Recorder{cfg: cfg, fs: afero.NewMemMapFs()}
}

func (r *Recorder) Name() string { return "mock_recorder" }

func (r *Recorder) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if r.cfg.StartDelayMs > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(r.cfg.StartDelayMs) * time.Millisecond):
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts++
	switch r.cfg.StartError {
	case "permission_denied":
		return recorder.ErrPermissionDenied
	case "device_unavailable":
		return recorder.ErrDeviceUnavailable
	}
	if r.active {
		return recorder.ErrAlreadyRecording
	}
	r.active = true
	r.startedAt = time.Now()
	return nil
}

func (r *Recorder) Stop(ctx context.Context) (recorder.Recording, error) {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return recorder.Recording{}, recorder.ErrNotRecording
	}
	r.active = false
	r.stops++
	dur := time.Since(r.startedAt)
	r.mu.Unlock()

	n := int(dur.Seconds() * float64(r.cfg.SampleRate))
	if n < r.cfg.SampleRate/10 {
		n = r.cfg.SampleRate / 10
	}
	data, err := EncodeWAV(r.fs, r.tone(0, n), r.cfg.SampleRate)
	if err != nil {
		return recorder.Recording{}, err
	}
	return recorder.Recording{
		Data:     data,
		MIMEType: "audio/wav",
		Filename: "recording.wav",
		Duration: dur,
	}, nil
}

// Snapshot returns the latest 1024 synthetic samples while recording.
func (r *Recorder) Snapshot() []int16 {
	r.mu.Lock()
	active := r.active
	offset := int(time.Since(r.startedAt).Seconds() * float64(r.cfg.SampleRate))
	r.mu.Unlock()
	if !active {
		return nil
	}
	return r.tone(offset, 1024)
}

func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Counts returns how many times Start and Stop succeeded or were attempted.
func (r *Recorder) Counts() (starts, stops int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts, r.stops
}

func (r *Recorder) tone(offset, n int) []int16 {
	out := make([]int16, n)
	step := 2 * math.Pi * r.cfg.ToneHz / float64(r.cfg.SampleRate)
	for i := range out {
		out[i] = int16(math.Sin(step*float64(offset+i)) * 8000)
	}
	return out
}

// EncodeWAV packages 16-bit mono PCM as a WAV file built on fs.
func EncodeWAV(fs afero.Fs, samples []int16, sampleRate int) ([]byte, error) {
	f, err := afero.TempFile(fs, "", "mock-*.wav")
	if err != nil {
		return nil, err
	}
	name := f.Name()
	defer func() { _ = fs.Remove(name) }()

	ints := make([]int, len(samples))
	for i, s := range samples {
		ints[i] = int(s)
	}
	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           ints,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	return afero.ReadFile(fs, name)
}

var (
	_ recorder.Recorder = (*Recorder)(nil)
	_ recorder.Analyser = (*Recorder)(nil)
)
