package animation

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultCrossfade is the blend window shared by fade-out and fade-in.
const DefaultCrossfade = 500 * time.Millisecond

// ErrUnknownClip is returned by Play when a name resolves to no clip.
var ErrUnknownClip = errors.New("no clip matches name")

// DefaultGestures are the canonical identifiers resolved against clip names
// when the controller is built.
var DefaultGestures = []string{"Idle", "Wave", "Happy", "Sad", "Angry"}

// Options configures a Controller.
type Options struct {
	Crossfade time.Duration
	Curve     Curve
	// Gestures are canonical identifiers matched by case-insensitive substring
	// against clip names once, at construction.
	Gestures []string
}

// DefaultOptions returns the standard crossfade and gesture set.
func DefaultOptions() Options {
	return Options{
		Crossfade: DefaultCrossfade,
		Curve:     CurveLinear,
		Gestures:  DefaultGestures,
	}
}

// FinishedFunc is called when a play-once action reaches its last frame.
type FinishedFunc func(clip string)

// Controller exposes a single entry point, Play, over a fixed clip library and
// keeps at most one action current.
type Controller struct {
	mu sync.Mutex

	mixer     *Mixer
	index     map[string]*Clip
	current   *Action
	crossfade time.Duration
	curve     Curve

	onFinished FinishedFunc
	logger     zerolog.Logger
}

// NewController builds the lookup index and an idle mixer for clips.
func NewController(clips []Clip, opts Options, logger zerolog.Logger) *Controller {
	if opts.Crossfade < 0 {
		opts.Crossfade = 0
	}

	c := &Controller{
		mixer:     NewMixer(clips),
		crossfade: opts.Crossfade,
		curve:     opts.Curve,
		logger:    logger.With().Str("component", "animation").Logger(),
	}
	c.index = buildIndex(c.mixer.clips, opts.Gestures)

	c.logger.Debug().
		Int("clips", len(clips)).
		Int("indexed", len(c.index)).
		Dur("crossfade", c.crossfade).
		Msg("Animation controller ready")

	return c
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// buildIndex maps every clip's own name and every gesture identifier to a clip.
// Exact names win; gestures take the first clip, in asset order, whose name
// contains them.
func buildIndex(clips []*Clip, gestures []string) map[string]*Clip {
	index := make(map[string]*Clip, len(clips)+len(gestures))
	for _, clip := range clips {
		key := normalizeName(clip.Name)
		if _, ok := index[key]; !ok && key != "" {
			index[key] = clip
		}
	}
	for _, g := range gestures {
		key := normalizeName(g)
		if key == "" {
			continue
		}
		if _, ok := index[key]; ok {
			continue
		}
		for _, clip := range clips {
			if strings.Contains(normalizeName(clip.Name), key) {
				index[key] = clip
				break
			}
		}
	}
	return index
}

// Resolve returns the clip a name maps to.
func (c *Controller) Resolve(name string) (Clip, bool) {
	clip, ok := c.index[normalizeName(name)]
	if !ok {
		return Clip{}, false
	}
	return *clip, true
}

// Play makes the named clip current. A different current action fades out
// over the crossfade window while the new one is rewound and fades in. Playing
// the current clip again restarts it. Unknown names leave the state untouched.
func (c *Controller) Play(name string, loop bool) error {
	clip, ok := c.index[normalizeName(name)]
	if !ok {
		c.logger.Warn().Str("name", name).Msg("Animation not found")
		return fmt.Errorf("%w: %q", ErrUnknownClip, name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.mixer.action(clip)

	if prev := c.current; prev != nil && prev != next {
		prev.fadeOut(c.crossfade, c.curve)
	}

	next.reset()
	next.loop = LoopRepeat
	if !loop {
		next.loop = LoopOnce
	}
	next.fadeIn(c.crossfade, c.curve)
	c.mixer.activate(next)
	c.current = next

	c.logger.Debug().
		Str("clip", clip.Name).
		Str("loop", next.loop.String()).
		Msg("Playing animation")

	return nil
}

// Update advances the mixer by dt.
func (c *Controller) Update(dt time.Duration) {
	c.mu.Lock()
	finished := c.mixer.Update(dt)
	fn := c.onFinished
	c.mu.Unlock()

	if fn == nil {
		return
	}
	for _, a := range finished {
		fn(a.clip.Name)
	}
}

// OnFinished registers a callback for play-once completions.
func (c *Controller) OnFinished(fn FinishedFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFinished = fn
}

// Current returns a snapshot of the current action.
func (c *Controller) Current() (ActionState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return ActionState{}, false
	}
	return c.current.state(true), true
}

// Pose returns snapshots of every running action, in activation order.
func (c *Controller) Pose() []ActionState {
	c.mu.Lock()
	defer c.mu.Unlock()

	pose := make([]ActionState, 0, len(c.mixer.running))
	for _, a := range c.mixer.running {
		pose = append(pose, a.state(a == c.current))
	}
	return pose
}

// Clips returns the clip library in asset order.
func (c *Controller) Clips() []Clip {
	out := make([]Clip, len(c.mixer.clips))
	for i, clip := range c.mixer.clips {
		out[i] = *clip
	}
	return out
}

// Crossfade returns the configured blend window.
func (c *Controller) Crossfade() time.Duration { return c.crossfade }
