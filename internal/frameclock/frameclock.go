// Package frameclock advances the animation once per rendered frame by the
// real time elapsed since the previous frame.
//
// A delta above Options.MaxDelta is clamped to it. After a stall (a suspended
// process, a debugger pause) the animation resumes where it stopped instead of
// jumping ahead, so it trails wall time by the stalled amount.
package frameclock

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/guardavatar/internal/clock"
)

const (
	DefaultFPS      = 60
	DefaultMaxDelta = 100 * time.Millisecond
)

// Advancer receives each frame's time delta.
type Advancer interface {
	Advance(dt time.Duration)
}

// AdvancerFunc adapts a function to Advancer.
type AdvancerFunc func(dt time.Duration)

func (f AdvancerFunc) Advance(dt time.Duration) { f(dt) }

// Frame describes one tick.
type Frame struct {
	Index   uint64
	Delta   time.Duration
	Elapsed time.Duration
}

// Renderer is called after the advancer on every frame.
type Renderer interface {
	Render(f Frame)
}

// Options configures a Clock. Zero fields take defaults.
type Options struct {
	FPS int
	// MaxDelta caps a single frame's delta so a stalled process does not
	// fast-forward the animation.
	MaxDelta time.Duration
	Clock    clock.Clock
	Renderer Renderer
}

// Clock is the repeating frame task.
type Clock struct {
	advancer Advancer
	opts     Options
	logger   zerolog.Logger

	mu      sync.Mutex
	last    time.Time
	started bool
	frame   Frame

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns a stopped frame clock.
func New(advancer Advancer, opts Options, logger zerolog.Logger) *Clock {
	if opts.FPS <= 0 {
		opts.FPS = DefaultFPS
	}
	if opts.MaxDelta <= 0 {
		opts.MaxDelta = DefaultMaxDelta
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	return &Clock{
		advancer: advancer,
		opts:     opts,
		logger:   logger.With().Str("component", "frameclock").Logger(),
	}
}

// Interval is the time between frames.
func (c *Clock) Interval() time.Duration {
	return time.Second / time.Duration(c.opts.FPS)
}

// Tick runs one frame at now. The first tick has a zero delta.
func (c *Clock) Tick(now time.Time) Frame {
	c.mu.Lock()
	var dt time.Duration
	if c.started {
		dt = now.Sub(c.last)
	}
	if dt < 0 {
		dt = 0
	}
	if dt > c.opts.MaxDelta {
		dt = c.opts.MaxDelta
	}
	c.last = now
	c.started = true
	c.frame.Index++
	c.frame.Delta = dt
	c.frame.Elapsed += dt
	f := c.frame
	c.mu.Unlock()

	c.advancer.Advance(dt)
	if c.opts.Renderer != nil {
		c.opts.Renderer.Render(f)
	}
	return f
}

// Last returns the most recent frame.
func (c *Clock) Last() Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frame
}

// Start launches the frame loop. It runs until Stop is called or ctx is done.
// Starting a running clock is a no-op.
func (c *Clock) Start(ctx context.Context) {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.done != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	c.logger.Debug().
		Int("fps", c.opts.FPS).
		Dur("maxDelta", c.opts.MaxDelta).
		Msg("Frame clock started")

	go c.run(ctx, c.done)
}

func (c *Clock) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	interval := c.Interval()
	c.Tick(c.opts.Clock.Now())
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-c.opts.Clock.After(interval):
			c.Tick(now)
		}
	}
}

// Stop ends the loop and waits for it to exit. Safe to call more than once.
func (c *Clock) Stop() {
	c.runMu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.runMu.Unlock()

	if done == nil {
		return
	}
	cancel()
	<-done

	c.logger.Debug().Uint64("frames", c.Last().Index).Msg("Frame clock stopped")
}
