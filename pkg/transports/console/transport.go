package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harunnryd/mockinterview/pkg/errorsx"
	"github.com/harunnryd/mockinterview/pkg/transports"
)

// Config sets the console streams. Nil streams mean stdin and stdout.
type Config struct {
	// ShowLevel prints a level meter from visualizer frames.
	ShowLevel bool `mapstructure:"show_level"`
	In        io.Reader
	Out       io.Writer
}

// Transport drives an interview from a terminal: the first line read from
// In begins the session and every later line is an advance signal.
type Transport struct {
	cfg     Config
	signals chan transports.Signal

	mu       sync.Mutex
	out      io.Writer
	began    bool
	lastBand string
	closed   atomic.Bool
}

// New returns a console transport. The first input line begins the
// interview and each later line is an advance signal.
func New(cfg Config) *Transport {
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	return &Transport{
		cfg:     cfg,
		signals: make(chan transports.Signal, 16),
		out:     cfg.Out,
	}
}

func (t *Transport) Name() string { return "console" }

func (t *Transport) Signals() <-chan transports.Signal { return t.signals }

func (t *Transport) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	t.println("Press Enter to start the interview.")
	go t.readLoop()
	go func() {
		<-ctx.Done()
		_ = t.Stop()
	}()
	return nil
}

func (t *Transport) readLoop() {
	sc := bufio.NewScanner(t.cfg.In)
	for sc.Scan() {
		kind := transports.SignalAdvance
		t.mu.Lock()
		if !t.began {
			t.began = true
			kind = transports.SignalBegin
		}
		t.mu.Unlock()
		if !t.emit(transports.Signal{Kind: kind, ClientID: "console", Time: time.Now()}) {
			return
		}
	}
}

func (t *Transport) emit(s transports.Signal) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed.Load() {
		return false
	}
	transports.NonBlockingSend(t.signals, s)
	return true
}

func (t *Transport) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed.CompareAndSwap(false, true) {
		close(t.signals)
	}
	return nil
}

func (t *Transport) Send(u transports.Update) error {
	var line string
	switch u.Type {
	case transports.UpdateView:
		if u.View == nil {
			return nil
		}
		switch {
		case u.View.ShowEnd:
			line = "That's the end of the interview."
		case u.View.ShowProcessing:
			line = "Processing your answer..."
		case u.View.ShowTimer:
			t.mu.Lock()
			t.lastBand = ""
			t.mu.Unlock()
			line = "Recording. Press Enter to finish early."
		default:
			line = "Press Enter for the next question."
		}
	case transports.UpdateQuestion:
		line = fmt.Sprintf("\nQuestion %d: %s", u.Round, u.Question)
	case transports.UpdateTimer:
		if u.Timer == nil {
			return nil
		}
		line = t.timerLine(u.Timer.Text, u.Timer.Class)
	case transports.UpdateResult:
		if u.Result == nil {
			return nil
		}
		line = "You said: " + u.Result.Transcript + "\nFeedback: " + u.Result.Feedback
	case transports.UpdateVisualizer:
		if !t.cfg.ShowLevel || u.Frame == nil {
			return nil
		}
		n := int(u.Frame.Level * 40)
		if n > 40 {
			n = 40
		}
		line = "[" + strings.Repeat("#", n) + strings.Repeat(" ", 40-n) + "]"
	default:
		return nil
	}
	if line == "" {
		return nil
	}
	return t.println(line)
}

func (t *Transport) timerLine(text, class string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if class != t.lastBand {
		t.lastBand = class
		if class != "" {
			return text + " (" + class + ")"
		}
	}
	return text
}

func (t *Transport) println(line string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := fmt.Fprintln(t.out, line); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonTransportSend)
	}
	return nil
}

var _ transports.Transport = (*Transport)(nil)
