// Package agent wires the avatar, speech engine, orchestrator, frame clock and
// browser bridge into one container.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/normanking/guardavatar/internal/animation"
	"github.com/normanking/guardavatar/internal/asset"
	"github.com/normanking/guardavatar/internal/avatar3d"
	"github.com/normanking/guardavatar/internal/bridge"
	"github.com/normanking/guardavatar/internal/bus"
	"github.com/normanking/guardavatar/internal/clock"
	"github.com/normanking/guardavatar/internal/config"
	"github.com/normanking/guardavatar/internal/conversation"
	"github.com/normanking/guardavatar/internal/frameclock"
	"github.com/normanking/guardavatar/internal/logging"
	"github.com/normanking/guardavatar/internal/speech"
)

// ErrNotReady is returned by Play when no avatar is loaded.
var ErrNotReady = errors.New("no avatar loaded")

// Option customizes an Agent.
type Option func(*Agent)

// WithClock replaces wall time for pacing, simulated speech and frames.
func WithClock(c clock.Clock) Option {
	return func(a *Agent) { a.clock = c }
}

// WithEngine overrides the configured speech engine.
func WithEngine(e speech.Engine) Option {
	return func(a *Agent) { a.engine = e }
}

// WithBus shares an event bus with the caller.
func WithBus(b *bus.EventBus) Option {
	return func(a *Agent) { a.bus = b }
}

// WithLogSink lets the bridge stream log entries to clients.
func WithLogSink(l *logging.Logger) Option {
	return func(a *Agent) { a.logSink = l }
}

// Agent owns at most one Avatar at a time. Every entry point degrades to a
// no-op while no avatar is loaded.
type Agent struct {
	cfg     *config.Config
	logger  zerolog.Logger
	bus     *bus.EventBus
	clock   clock.Clock
	logSink *logging.Logger

	mu     sync.RWMutex
	avatar *avatar3d.Avatar

	engine       speech.Engine
	history      *conversation.History
	orchestrator *conversation.Orchestrator
	frames       *frameclock.Clock
	hub          *bridge.Hub
	poses        *bridge.PoseRenderer

	// ctx scopes work started on behalf of bridge clients.
	ctx    context.Context
	cancel context.CancelFunc
}

// New builds an agent from cfg. The avatar is not loaded until Load.
func New(cfg *config.Config, logger zerolog.Logger, opts ...Option) (*Agent, error) {
	a := &Agent{
		cfg:    cfg,
		logger: logger.With().Str("component", "agent").Logger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.bus == nil {
		a.bus = bus.NewEventBus()
	}
	if a.clock == nil {
		a.clock = clock.Real{}
	}
	a.ctx, a.cancel = context.WithCancel(context.Background())

	if cfg.Bridge.Enabled {
		a.hub = bridge.NewHub(a.bus, logger)
		a.poses = bridge.NewPoseRenderer(a.hub, a.pose, cfg.Bridge.PoseEvery)
		bridge.ForwardEvents(a.bus, a.hub)
		if a.logSink != nil && cfg.Bridge.ForwardLog {
			bridge.ForwardLogs(a.logSink, a.hub)
		}
		a.hub.OnMessage(bridge.MsgConverse, a.handleConverse)
		a.hub.OnMessage(bridge.MsgPlay, a.handlePlay)
	}

	if a.engine == nil {
		engine, err := a.newEngine(logger)
		if err != nil {
			a.cancel()
			return nil, err
		}
		a.engine = engine
	}

	a.history = conversation.NewHistory(conversation.HistoryConfig{
		MaxExchanges:      cfg.Conversation.MaxHistory,
		InactivityTimeout: cfg.Conversation.HistoryTTL,
		Clock:             a.clock,
	})
	a.orchestrator = conversation.NewOrchestrator(a, a.engine, conversation.Options{
		Pacing:        cfg.Conversation.Pacing,
		SpeechTimeout: cfg.Conversation.SpeechTimeout,
		IdleGesture:   cfg.Animation.IdleClip,
		Clock:         a.clock,
		Bus:           a.bus,
		History:       a.history,
	}, logger)

	frameOpts := frameclock.Options{
		FPS:      cfg.Frame.FPS,
		MaxDelta: cfg.Frame.MaxDelta,
		Clock:    a.clock,
	}
	if a.poses != nil {
		frameOpts.Renderer = a.poses
	}
	a.frames = frameclock.New(a, frameOpts, logger)

	return a, nil
}

// Load fetches and normalizes the configured asset and replaces the avatar.
// On failure the current avatar, if any, is kept and the error is returned.
func (a *Agent) Load(ctx context.Context) error {
	if a.cfg.Asset.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Asset.LoadTimeout)
		defer cancel()
	}

	source := a.cfg.Asset.Source
	start := time.Now()
	ca, err := asset.Load(ctx, source, asset.Options{
		TargetSize:  a.cfg.Asset.TargetSize,
		GroundY:     a.cfg.Asset.GroundY,
		CastShadows: a.cfg.Asset.CastShadows,
	})
	if err != nil {
		a.logger.Error().Err(err).Str("source", source).Msg("Failed to load avatar asset")
		a.bus.Publish(bus.Event{Type: bus.EventTypeAssetLoadFailed, Data: map[string]any{
			"source": source,
			"error":  err.Error(),
		}})
		return fmt.Errorf("load %s: %w", source, err)
	}

	av := avatar3d.NewAvatar("", ca, animation.Options{
		Crossfade: a.cfg.Animation.Crossfade,
		Curve:     animation.ParseCurve(a.cfg.Animation.FadeCurve),
		Gestures:  a.cfg.Animation.Gestures,
	}, a.logger)
	av.OnFinished(func(clip string) {
		a.bus.Publish(bus.Event{Type: bus.EventTypeActionFinished, Data: map[string]any{"clip": clip}})
	})
	if err := av.Play(a.cfg.Animation.IdleClip, true); err != nil {
		a.logger.Warn().Err(err).Msg("Asset has no idle clip")
	}

	a.mu.Lock()
	replaced := a.avatar != nil
	a.avatar = av
	a.mu.Unlock()

	event := bus.EventTypeAssetLoaded
	if replaced {
		event = bus.EventTypeAssetReloaded
	}
	a.logger.Info().
		Str("source", source).
		Int("parts", len(ca.Parts)).
		Int("clips", len(ca.Clips)).
		Float32("scale", ca.Root.Scale).
		Dur("took", time.Since(start)).
		Msg("Avatar loaded")
	a.bus.Publish(bus.Event{Type: event, Data: map[string]any{
		"source": source,
		"parts":  len(ca.Parts),
		"clips":  len(ca.Clips),
	}})
	return nil
}

// Avatar returns the loaded avatar or nil.
func (a *Agent) Avatar() *avatar3d.Avatar {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.avatar
}

// Ready reports whether an avatar is loaded.
func (a *Agent) Ready() bool {
	return a.Avatar() != nil
}

// Play forwards to the avatar's animation controller.
func (a *Agent) Play(name string, loop bool) error {
	av := a.Avatar()
	if av == nil {
		return ErrNotReady
	}
	return av.Play(name, loop)
}

// Advance moves the avatar's animation forward by dt.
func (a *Agent) Advance(dt time.Duration) {
	if av := a.Avatar(); av != nil {
		av.Update(dt)
	}
}

// Converse runs one scripted conversation. See conversation.Orchestrator.
func (a *Agent) Converse(ctx context.Context, text string, label conversation.Label) error {
	return a.orchestrator.Converse(ctx, text, label)
}

func (a *Agent) Bus() *bus.EventBus { return a.bus }
func (a *Agent) History() *conversation.History { return a.history }
func (a *Agent) Frames() *frameclock.Clock { return a.frames }
func (a *Agent) Engine() speech.Engine { return a.engine }

// Hub returns the bridge hub, or nil when the bridge is disabled.
func (a *Agent) Hub() *bridge.Hub { return a.hub }

func (a *Agent) pose() (asset.Transform, []animation.ActionState, bool) {
	av := a.Avatar()
	if av == nil {
		return asset.Transform{}, nil, false
	}
	return av.Root(), av.Pose(), true
}

func (a *Agent) handleConverse(clientID string, msg bridge.Message) {
	label := conversation.ParseLabel(msg.Label)
	go func() {
		if err := a.Converse(a.ctx, msg.Text, label); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Warn().Err(err).Str("client", clientID).Msg("Conversation aborted")
		}
	}()
}

func (a *Agent) handlePlay(clientID string, msg bridge.Message) {
	if err := a.Play(msg.Name, msg.Loop); err != nil {
		a.hub.Broadcast(bridge.Message{Type: bridge.MsgError, Name: msg.Name, Error: err.Error()})
	}
}

// Run starts the frame clock, the bridge server and the asset watcher and
// blocks until ctx is done or one of them fails.
func (a *Agent) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	a.frames.Start(gctx)
	g.Go(func() error {
		<-gctx.Done()
		a.frames.Stop()
		return nil
	})

	if a.hub != nil {
		g.Go(func() error {
			return a.hub.ListenAndServe(gctx, a.cfg.Bridge.ListenAddr)
		})
	}

	if a.cfg.Asset.Watch {
		w, err := asset.NewWatcher(a.cfg.Asset.Source, a.cfg.Asset.Debounce, func(string) {
			a.logger.Info().Msg("Asset changed, reloading")
			_ = a.Load(gctx)
		}, a.logger)
		if err != nil {
			a.logger.Warn().Err(err).Msg("Asset watch disabled")
		} else {
			g.Go(func() error {
				<-gctx.Done()
				return w.Close()
			})
		}
	}

	a.logger.Info().
		Bool("ready", a.Ready()).
		Bool("bridge", a.hub != nil).
		Str("speech", a.cfg.Speech.Engine).
		Msg("Agent running")

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close cancels client-initiated work and disconnects bridge clients.
func (a *Agent) Close() error {
	a.cancel()
	a.frames.Stop()
	if a.hub != nil {
		a.hub.Close()
	}
	return nil
}
