package runner

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrInvalidState = errors.New("invalid state transition")
	ErrDrainTimeout = errors.New("drain timeout")
)

// LifecycleRunner runs a Service and drains it on shutdown.
type LifecycleRunner struct {
	state    int32
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex
	onceStop sync.Once
	hooks    Hooks
	service  Service
	drainer  Drainer
	stopErr  error
	timeout  time.Duration
	banner   io.Writer
}

// NewLifecycleRunner wires service, drainer and hooks. A non-positive
// timeout means 10 seconds.
func NewLifecycleRunner(service Service, drainer Drainer, hooks Hooks, timeout time.Duration) *LifecycleRunner {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &LifecycleRunner{
		state:   int32(StateNew),
		ctx:     ctx,
		cancel:  cancel,
		hooks:   hooks,
		service: service,
		drainer: drainer,
		timeout: timeout,
		banner:  os.Stdout,
	}
}

// SetBannerOutput redirects the startup banner; nil disables it.
func (r *LifecycleRunner) SetBannerOutput(w io.Writer) {
	r.banner = w
}

// Run blocks until the service returns or ctx is cancelled, then drains.
func (r *LifecycleRunner) Run(ctx context.Context) error {
	if !r.casState(StateNew, StateStarting) {
		return ErrInvalidState
	}
	PrintBanner(r.banner)
	if ctx != nil {
		r.mu.Lock()
		r.ctx, r.cancel = context.WithCancel(ctx)
		r.mu.Unlock()
	}
	runCtx := r.context()
	if r.hooks.OnStart != nil {
		r.hooks.OnStart()
	}
	r.setState(StateRunning)

	var runErr error
	if r.service != nil {
		runErr = r.service.Run(runCtx)
		if errors.Is(runErr, context.Canceled) {
			runErr = nil
		}
	} else {
		<-runCtx.Done()
	}
	return errors.Join(runErr, r.stop())
}

// Stop cancels the run context and drains. It is safe to call more than
// once.
func (r *LifecycleRunner) Stop() error {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	cancel()
	return r.stop()
}

func (r *LifecycleRunner) State() State {
	return State(atomic.LoadInt32(&r.state))
}

func (r *LifecycleRunner) context() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ctx
}

func (r *LifecycleRunner) stop() error {
	r.onceStop.Do(func() {
		r.setState(StateDraining)
		if r.drainer != nil {
			done := make(chan error, 1)
			go func() {
				done <- r.drainer.Drain()
			}()
			select {
			case err := <-done:
				r.stopErr = err
			case <-time.After(r.timeout):
				r.stopErr = ErrDrainTimeout
				if c, ok := r.drainer.(io.Closer); ok {
					// Cancel whatever the drain was still waiting on.
					r.stopErr = errors.Join(r.stopErr, c.Close())
				}
			}
		}
		if r.hooks.OnStop != nil {
			r.hooks.OnStop()
		}
		r.mu.Lock()
		r.cancel()
		r.mu.Unlock()
		r.setState(StateStopped)
	})
	return r.stopErr
}

func (r *LifecycleRunner) casState(from, to State) bool {
	return atomic.CompareAndSwapInt32(&r.state, int32(from), int32(to))
}

func (r *LifecycleRunner) setState(s State) {
	atomic.StoreInt32(&r.state, int32(s))
}
