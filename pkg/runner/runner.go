package runner

import (
	"bytes"
	"context"
	"io"

	"github.com/dimiro1/banner"
)

// State is the runner lifecycle position.
type State int

const (
	StateNew State = iota
	StateStarting
	StateRunning
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Runner is implemented by LifecycleRunner.
type Runner interface {
	Run(ctx context.Context) error
	Stop() error
	State() State
}

// Hooks run around the service. OnStop runs after the drain.
type Hooks struct {
	OnStart func()
	OnStop  func()
}

// Service is the long-running body of a runner, typically an interview
// session. Returning ends the run.
type Service interface {
	Run(ctx context.Context) error
}

// Drainer finishes in-flight work before shutdown. A Drainer that also
// implements io.Closer is closed when the drain times out.
type Drainer interface {
	Drain() error
}

const Version = "dev"

// PrintBanner writes the startup banner to w.
func PrintBanner(w io.Writer) {
	if w == nil {
		return
	}
	tpl := "{{ .Title \"MOCKINTERVIEW\" \"\" 0 }}\nVersion: " + Version + "\n"
	banner.Init(w, true, false, bytes.NewBufferString(tpl))
}
