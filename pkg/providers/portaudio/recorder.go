package portaudio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/harunnryd/mockinterview/pkg/adapters/recorder"
	"github.com/harunnryd/mockinterview/pkg/errorsx"
	"github.com/spf13/afero"
	"github.com/zenwerk/go-wave"
)

const (
	defaultSampleRate = 16000
	defaultFrames     = 1024
	defaultMaxSeconds = 120
)

// Config tunes the PortAudio capture. Zero values use 16 kHz mono, 1024
// frames per buffer and a 120 second cap.
type Config struct {
	SampleRate      int `mapstructure:"sample_rate"`
	FramesPerBuffer int `mapstructure:"frames_per_buffer"`
	// MaxSeconds bounds how much audio one answer may accumulate.
	MaxSeconds int `mapstructure:"max_seconds"`
	Logger     *slog.Logger
	FileSys    afero.Fs
}

type stream interface {
	Start() error
	Read() error
	Stop() error
	Close() error
}

// backend is the slice of the PortAudio API the recorder needs.
type backend interface {
	Initialize() error
	Terminate() error
	DefaultInput() error
	Open(sampleRate float64, buf []int16) (stream, error)
}

type paBackend struct{}

func (paBackend) Initialize() error { return portaudio.Initialize() }
func (paBackend) Terminate() error  { return portaudio.Terminate() }

func (paBackend) DefaultInput() error {
	_, err := portaudio.DefaultInputDevice()
	return err
}

func (paBackend) Open(sampleRate float64, buf []int16) (stream, error) {
	s, err := portaudio.OpenDefaultStream(1, 0, sampleRate, len(buf), buf)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Recorder captures 16-bit mono PCM from the default input device and
// packages each answer as a WAV clip.
type Recorder struct {
	cfg Config
	pa  backend
	fs  afero.Fs
	log *slog.Logger

	mu        sync.Mutex
	active    bool
	stream    stream
	pcm       []int16
	latest    []int16
	startedAt time.Time
	done      chan struct{}
	loopDone  chan struct{}
}

// New returns a recorder on the default input device.
func New(cfg Config) *Recorder {
	return newRecorder(cfg, paBackend{})
}

func newRecorder(cfg Config, pa backend) *Recorder {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = defaultSampleRate
	}
	if cfg.FramesPerBuffer <= 0 {
		cfg.FramesPerBuffer = defaultFrames
	}
	if cfg.MaxSeconds <= 0 {
		cfg.MaxSeconds = defaultMaxSeconds
	}
	fs := cfg.FileSys
	if fs == nil {
		fs = afero.NewMemMapFs()
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{cfg: cfg, pa: pa, fs: fs, log: log}
}

func (r *Recorder) Name() string { return "portaudio" }

// Prepare checks that PortAudio can see an input device.
func (r *Recorder) Prepare(ctx context.Context) error {
	if err := r.pa.Initialize(); err != nil {
		return startFailure(err)
	}
	defer func() { _ = r.pa.Terminate() }()
	if err := r.pa.DefaultInput(); err != nil {
		return startFailure(err)
	}
	return nil
}

func (r *Recorder) Start(ctx context.Context) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active {
		return recorder.ErrAlreadyRecording
	}
	if err := r.pa.Initialize(); err != nil {
		return startFailure(err)
	}
	in := make([]int16, r.cfg.FramesPerBuffer)
	s, err := r.pa.Open(float64(r.cfg.SampleRate), in)
	if err != nil {
		_ = r.pa.Terminate()
		return startFailure(err)
	}
	if err := s.Start(); err != nil {
		_ = s.Close()
		_ = r.pa.Terminate()
		return startFailure(err)
	}

	r.active = true
	r.stream = s
	r.pcm = r.pcm[:0]
	r.latest = nil
	r.startedAt = time.Now()
	r.done = make(chan struct{})
	r.loopDone = make(chan struct{})
	go r.readLoop(s, in, r.done, r.loopDone)
	r.log.Debug("recorder_started", "sample_rate", r.cfg.SampleRate, "frames", r.cfg.FramesPerBuffer)
	return nil
}

func (r *Recorder) readLoop(s stream, in []int16, done, loopDone chan struct{}) {
	defer close(loopDone)
	limit := r.cfg.MaxSeconds * r.cfg.SampleRate
	for {
		select {
		case <-done:
			return
		default:
		}
		if err := s.Read(); err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				continue
			}
			r.log.Warn("recorder_read_failed", "error", err)
			return
		}
		frame := make([]int16, len(in))
		copy(frame, in)

		r.mu.Lock()
		if len(r.pcm) < limit {
			r.pcm = append(r.pcm, frame...)
		}
		r.latest = frame
		r.mu.Unlock()
	}
}

// Stop ends capture, releases the device and returns the clip as WAV.
func (r *Recorder) Stop(ctx context.Context) (recorder.Recording, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return recorder.Recording{}, recorder.ErrNotRecording
	}
	r.active = false
	s := r.stream
	done, loopDone := r.done, r.loopDone
	started := r.startedAt
	r.stream = nil
	r.mu.Unlock()

	close(done)
	select {
	case <-loopDone:
	case <-ctx.Done():
	}

	var releaseErr error
	if err := s.Stop(); err != nil {
		releaseErr = err
	}
	if err := s.Close(); err != nil && releaseErr == nil {
		releaseErr = err
	}
	if err := r.pa.Terminate(); err != nil && releaseErr == nil {
		releaseErr = err
	}
	if releaseErr != nil {
		r.log.Warn("recorder_release_failed", "error", releaseErr)
	}
	<-loopDone

	r.mu.Lock()
	pcm := make([]int16, len(r.pcm))
	copy(pcm, r.pcm)
	r.pcm = r.pcm[:0]
	r.latest = nil
	r.mu.Unlock()

	data, err := r.encode(pcm)
	if err != nil {
		return recorder.Recording{}, errorsx.Wrap(fmt.Errorf("encode wav: %w", err), errorsx.ReasonRecordingStop)
	}
	return recorder.Recording{
		Data:     data,
		MIMEType: "audio/wav",
		Filename: "recording.wav",
		Duration: time.Since(started),
	}, nil
}

// Snapshot returns the most recent buffer of samples.
func (r *Recorder) Snapshot() []int16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.latest == nil {
		return nil
	}
	out := make([]int16, len(r.latest))
	copy(out, r.latest)
	return out
}

func (r *Recorder) encode(pcm []int16) ([]byte, error) {
	f, err := afero.TempFile(r.fs, "", "answer-*.wav")
	if err != nil {
		return nil, err
	}
	name := f.Name()
	defer func() { _ = r.fs.Remove(name) }()

	w, err := wave.NewWriter(wave.WriterParam{
		Out:           f,
		Channel:       1,
		SampleRate:    r.cfg.SampleRate,
		BitsPerSample: 16,
	})
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if _, err := w.WriteSample16(pcm); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return afero.ReadFile(r.fs, name)
}

func startFailure(err error) error {
	return errorsx.Wrap(fmt.Errorf("%w: %v", recorder.ErrDeviceUnavailable, err), errorsx.ReasonRecordingStart)
}

var (
	_ recorder.Recorder = (*Recorder)(nil)
	_ recorder.Preparer = (*Recorder)(nil)
	_ recorder.Analyser = (*Recorder)(nil)
)
