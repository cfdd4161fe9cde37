package mock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harunnryd/mockinterview/pkg/transports"
)

// Transport is an in-memory transport for local testing and integration.
// It implements the transports.Transport interface without any I/O.
type Transport struct {
	signals chan transports.Signal
	mu      sync.Mutex
	sent    []transports.Update
	notify  chan struct{}
	closed  atomic.Bool
}

// New returns a transport driven by Push and inspected through Sent.
func New() *Transport {
	return &Transport{
		signals: make(chan transports.Signal, 64),
		notify:  make(chan struct{}, 1),
	}
}

func (t *Transport) Name() string { return "mock" }

func (t *Transport) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		<-ctx.Done()
		_ = t.Stop()
	}()
	return nil
}

func (t *Transport) Stop() error {
	if t.closed.CompareAndSwap(false, true) {
		t.mu.Lock()
		close(t.signals)
		t.mu.Unlock()
	}
	return nil
}

func (t *Transport) Signals() <-chan transports.Signal { return t.signals }

func (t *Transport) Send(u transports.Update) error {
	t.mu.Lock()
	t.sent = append(t.sent, u)
	t.mu.Unlock()
	select {
	case t.notify <- struct{}{}:
	default:
	}
	return nil
}

// Push injects an inbound signal.
func (t *Transport) Push(kind transports.SignalKind) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed.Load() {
		return
	}
	transports.NonBlockingSend(t.signals, transports.Signal{Kind: kind, ClientID: "mock", Time: time.Now()})
}

// Sent returns a copy of every update sent so far.
func (t *Transport) Sent() []transports.Update {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]transports.Update, len(t.sent))
	copy(out, t.sent)
	return out
}

// WaitFor blocks until match returns true for some sent update or the
// timeout elapses.
func (t *Transport) WaitFor(timeout time.Duration, match func(transports.Update) bool) bool {
	deadline := time.After(timeout)
	for {
		for _, u := range t.Sent() {
			if match(u) {
				return true
			}
		}
		select {
		case <-t.notify:
		case <-deadline:
			return false
		case <-time.After(10 * time.Millisecond):
		}
	}
}
