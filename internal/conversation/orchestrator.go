package conversation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/normanking/guardavatar/internal/bus"
	"github.com/normanking/guardavatar/internal/clock"
	"github.com/normanking/guardavatar/internal/speech"
)

const (
	DefaultPacing        = 500 * time.Millisecond
	DefaultSpeechTimeout = 30 * time.Second
	DefaultIdleGesture   = "Idle"
)

// Animator is the slice of the avatar the orchestrator drives.
type Animator interface {
	// Ready reports whether an avatar is loaded.
	Ready() bool
	Play(name string, loop bool) error
}

// Options configures an Orchestrator. Zero fields take defaults.
type Options struct {
	// Pacing is the gap after each step's speech completes.
	Pacing time.Duration
	// SpeechTimeout bounds the wait for one utterance.
	SpeechTimeout time.Duration
	IdleGesture   string

	Clock   clock.Clock
	Bus     *bus.EventBus
	History *History
}

// DefaultOptions returns the standard pacing, timeout and idle clip.
func DefaultOptions() Options {
	return Options{
		Pacing:        DefaultPacing,
		SpeechTimeout: DefaultSpeechTimeout,
		IdleGesture:   DefaultIdleGesture,
	}
}

// Orchestrator runs conversations one at a time.
type Orchestrator struct {
	animator Animator
	engine   speech.Engine
	opts     Options

	// inFlight holds a token while a conversation runs.
	inFlight chan struct{}
	logger   zerolog.Logger
}

// NewOrchestrator wires an animator and a speech engine.
func NewOrchestrator(animator Animator, engine speech.Engine, opts Options, logger zerolog.Logger) *Orchestrator {
	if opts.Pacing <= 0 {
		opts.Pacing = DefaultPacing
	}
	if opts.SpeechTimeout <= 0 {
		opts.SpeechTimeout = DefaultSpeechTimeout
	}
	if opts.IdleGesture == "" {
		opts.IdleGesture = DefaultIdleGesture
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}

	return &Orchestrator{
		animator: animator,
		engine:   engine,
		opts:     opts,
		inFlight: make(chan struct{}, 1),
		logger:   logger.With().Str("component", "conversation").Logger(),
	}
}

// Converse speaks the intro and the label's response, each with its gesture,
// returning to idle and pausing after each. It is a no-op when no avatar is
// loaded. Calls are serialized; a call waits for the one in flight unless its
// ctx ends first. Speech and gesture failures are logged and skipped; only
// ctx cancellation is returned.
func (o *Orchestrator) Converse(ctx context.Context, text string, label Label) error {
	select {
	case o.inFlight <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-o.inFlight }()

	if !o.animator.Ready() {
		o.logger.Debug().Msg("No avatar loaded, skipping conversation")
		return nil
	}

	id := uuid.NewString()
	log := o.logger.With().Str("conversation", id).Logger()
	queue := BuildQueue(label)

	if !label.Known() {
		log.Warn().Str("label", label.String()).Msg("Unknown label, response step is silent")
	}
	log.Info().
		Str("label", label.String()).
		Int("steps", queue.Len()).
		Msg("Conversation started")
	o.publish(bus.EventTypeConversationStarted, map[string]any{
		"id":    id,
		"label": label.String(),
		"text":  text,
	})

	start := o.opts.Clock.Now()
	for i := 0; ; i++ {
		step, ok := queue.Next()
		if !ok {
			break
		}
		if err := o.runStep(ctx, log, id, i, step); err != nil {
			log.Info().Err(err).Int("step", i).Msg("Conversation cancelled")
			return err
		}
	}

	if o.opts.History != nil {
		o.opts.History.Add(text, label, ResponseFor(label).Utterance)
	}

	elapsed := o.opts.Clock.Now().Sub(start)
	log.Info().Dur("elapsed", elapsed).Msg("Conversation completed")
	o.publish(bus.EventTypeConversationCompleted, map[string]any{
		"id":      id,
		"label":   label.String(),
		"elapsed": elapsed.String(),
	})
	return nil
}

func (o *Orchestrator) runStep(ctx context.Context, log zerolog.Logger, id string, index int, step Step) error {
	o.publish(bus.EventTypeStepStarted, map[string]any{
		"id":        id,
		"step":      index,
		"utterance": step.Utterance,
		"gesture":   step.Gesture,
	})

	if step.Gesture != "" {
		o.gesture(log, step.Gesture, false)
	}

	if step.Utterance != "" {
		if err := o.speak(ctx, log, id, step.Utterance); err != nil {
			return err
		}
	}

	o.gesture(log, o.opts.IdleGesture, true)
	return clock.Sleep(ctx, o.opts.Clock, o.opts.Pacing)
}

func (o *Orchestrator) gesture(log zerolog.Logger, name string, loop bool) {
	if err := o.animator.Play(name, loop); err != nil {
		log.Warn().Err(err).Str("gesture", name).Msg("Gesture unavailable")
		o.publish(bus.EventTypeGestureMissed, map[string]any{"gesture": name})
		return
	}
	o.publish(bus.EventTypeGesture, map[string]any{"gesture": name, "loop": loop})
}

// speak returns an error only when ctx is done. Every other failure is a
// stalled step that is logged and treated as finished.
func (o *Orchestrator) speak(ctx context.Context, log zerolog.Logger, id, text string) error {
	sctx, cancel := context.WithTimeout(ctx, o.opts.SpeechTimeout)
	defer cancel()

	u, err := o.engine.Speak(sctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Msg("Speech failed to start")
		o.publish(bus.EventTypeSpeechFailed, map[string]any{"id": id, "text": text, "error": err.Error()})
		return nil
	}

	o.publish(bus.EventTypeSpeechStarted, map[string]any{"id": id, "utterance": u.ID, "text": text})

	if err := u.Wait(sctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn().Dur("timeout", o.opts.SpeechTimeout).Str("utterance", u.ID).Msg("Speech timed out")
		} else {
			log.Warn().Err(err).Str("utterance", u.ID).Msg("Speech failed")
		}
		o.publish(bus.EventTypeSpeechFailed, map[string]any{"id": id, "utterance": u.ID, "text": text, "error": err.Error()})
		return nil
	}

	o.publish(bus.EventTypeSpeechCompleted, map[string]any{"id": id, "utterance": u.ID, "text": text})
	return nil
}

func (o *Orchestrator) publish(t bus.EventType, data map[string]any) {
	if o.opts.Bus == nil {
		return
	}
	o.opts.Bus.Publish(bus.Event{Type: t, Data: data})
}
