// Package search turns raw keystroke text into a throttled stream of search
// strings.
package search

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/juju/clock"

	"github.com/mmynk/mealsync/internal/signal"
)

// DefaultWindow is the quiet period a value must survive before it is emitted.
const DefaultWindow = 400 * time.Millisecond

// Debouncer emits the latest pushed value once no newer value has arrived
// within the window, and only when it differs from the previous emission.
// Subscribers share one timer.
type Debouncer struct {
	clk    clock.Clock
	window time.Duration
	out    *signal.Signal[string]
	logger *slog.Logger

	publish sync.Mutex // held across a fire or Emit so publications keep their order

	mu      sync.Mutex
	seq     uint64
	pending string
	timer   clock.Timer
	last    string
	emitted bool
}

// Option configures a Debouncer.
type Option func(*Debouncer)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clk clock.Clock) Option {
	return func(d *Debouncer) { d.clk = clk }
}

// WithWindow sets the quiet window. Non-positive values keep the default.
func WithWindow(window time.Duration) Option {
	return func(d *Debouncer) {
		if window > 0 {
			d.window = window
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Debouncer) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func NewDebouncer(opts ...Option) *Debouncer {
	d := &Debouncer{
		clk:    clock.WallClock,
		window: DefaultWindow,
		out:    signal.NewEmpty[string](),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Window returns the quiet window.
func (d *Debouncer) Window() time.Duration {
	return d.window
}

// Push records a raw value and restarts the quiet window.
func (d *Debouncer) Push(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	seq := d.seq
	d.pending = text
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = d.clk.AfterFunc(d.window, func() { d.fire(seq) })
}

func (d *Debouncer) fire(seq uint64) {
	d.publish.Lock()
	defer d.publish.Unlock()

	d.mu.Lock()
	if seq != d.seq {
		// superseded by a later Push, Emit or Stop
		d.mu.Unlock()
		return
	}
	d.timer = nil
	text := d.pending
	if d.emitted && text == d.last {
		d.mu.Unlock()
		return
	}
	d.last, d.emitted = text, true
	d.mu.Unlock()

	d.logger.Debug("Search text", "query", text)
	d.out.Publish(text)
}

// Emit publishes text to subscribers at once, bypassing the window. Any
// pending push is dropped, so a keystroke typed before the call can never
// replace text. Subscribers must not call Emit.
func (d *Debouncer) Emit(text string) {
	d.publish.Lock()
	defer d.publish.Unlock()

	d.mu.Lock()
	d.seq++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.last, d.emitted = text, true
	d.mu.Unlock()

	d.out.Publish(text)
}

// Attach feeds every value received on in through Push until in is closed or
// ctx is done. It returns immediately.
func (d *Debouncer) Attach(ctx context.Context, in <-chan string) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case text, ok := <-in:
				if !ok {
					return
				}
				d.Push(text)
			}
		}
	}()
}

// Subscribe delivers the last emitted value, if any, then every emission.
func (d *Debouncer) Subscribe(fn func(string)) (cancel func()) {
	return d.out.Subscribe(fn)
}

// Latest returns the last emitted value.
func (d *Debouncer) Latest() (string, bool) {
	return d.out.Value()
}

// Stop drops any pending value without emitting it.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
