package interview

import (
	"strconv"
	"sync"
	"time"
)

// DefaultRoundSeconds is the answer window for every round.
const DefaultRoundSeconds = 15

// Band is the visual urgency of the countdown.
type Band int

const (
	BandNormal Band = iota
	BandWarning
	BandFail
)

// Class returns the css class the widget applies for the band.
func (b Band) Class() string {
	switch b {
	case BandWarning:
		return "warning"
	case BandFail:
		return "fail"
	default:
		return ""
	}
}

func (b Band) String() string {
	if c := b.Class(); c != "" {
		return c
	}
	return "normal"
}

// BandFor maps remaining seconds to a band: below 5 is fail, below 10 is warning.
func BandFor(remaining int) Band {
	switch {
	case remaining < 5:
		return BandFail
	case remaining < 10:
		return BandWarning
	default:
		return BandNormal
	}
}

// TimerText formats remaining seconds the way the widget displays them.
func TimerText(remaining int) string {
	return strconv.Itoa(remaining) + " s"
}

// Scheduler runs fn repeatedly until the returned stop func is called.
type Scheduler interface {
	Every(interval time.Duration, fn func()) (stop func())
}

// TickerScheduler schedules callbacks on a time.Ticker.
type TickerScheduler struct{}

func (TickerScheduler) Every(interval time.Duration, fn func()) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}

// countdown is guarded by the controller mutex.
type countdown struct {
	seconds    int
	interval   time.Duration
	scheduler  Scheduler
	remaining  int
	running    bool
	generation uint64
	stop       func()
}

func newCountdown(seconds int, interval time.Duration, scheduler Scheduler) countdown {
	if seconds <= 0 {
		seconds = DefaultRoundSeconds
	}
	if interval <= 0 {
		interval = time.Second
	}
	if scheduler == nil {
		scheduler = TickerScheduler{}
	}
	return countdown{
		seconds:   seconds,
		interval:  interval,
		scheduler: scheduler,
		remaining: seconds,
	}
}

// reset sets the display value without scheduling anything.
func (c *countdown) reset() {
	c.cancel()
	c.remaining = c.seconds
}

// restart cancels any previous schedule before starting a new one.
func (c *countdown) restart(onTick func(gen uint64)) {
	c.cancel()
	c.generation++
	c.remaining = c.seconds
	c.running = true
	gen := c.generation
	c.stop = c.scheduler.Every(c.interval, func() { onTick(gen) })
}

func (c *countdown) cancel() {
	if c.stop != nil {
		c.stop()
		c.stop = nil
	}
	c.running = false
}

// tick decrements once. ok is false for ticks of a cancelled schedule.
func (c *countdown) tick(gen uint64) (remaining int, expired bool, ok bool) {
	if !c.running || gen != c.generation {
		return c.remaining, false, false
	}
	if c.remaining > 0 {
		c.remaining--
	}
	return c.remaining, c.remaining == 0, true
}
