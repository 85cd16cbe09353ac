package speech

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/normanking/guardavatar/internal/clock"
	"github.com/normanking/guardavatar/internal/tts"
)

// Player outputs synthesized audio and returns once playback has finished.
type Player interface {
	Play(ctx context.Context, text string, audio *tts.SynthesizeResponse) error
}

// PacedPlayer discards the audio and holds for its duration, falling back to
// a words-per-minute estimate when the provider reports none.
type PacedPlayer struct {
	Clock          clock.Clock
	WordsPerMinute int
}

func (p PacedPlayer) Play(ctx context.Context, text string, audio *tts.SynthesizeResponse) error {
	c := p.Clock
	if c == nil {
		c = clock.Real{}
	}
	d := audio.Duration
	if d <= 0 {
		d = EstimateDuration(text, p.WordsPerMinute)
	}
	return clock.Sleep(ctx, c, d)
}

// ProviderEngine synthesizes through a tts.Provider and hands the audio to a
// Player. Synthesis happens before Speak returns, so a provider failure is a
// start failure.
type ProviderEngine struct {
	provider tts.Provider
	player   Player
	voice    string
	speed    float64
	logger   zerolog.Logger
}

// NewProviderEngine wires a provider to a player. A nil player paces on wall
// time.
func NewProviderEngine(provider tts.Provider, player Player, voice string, speed float64, logger zerolog.Logger) *ProviderEngine {
	if player == nil {
		player = PacedPlayer{}
	}
	return &ProviderEngine{
		provider: provider,
		player:   player,
		voice:    voice,
		speed:    speed,
		logger: logger.With().
			Str("component", "speech").
			Str("engine", provider.Name()).
			Logger(),
	}
}

func (e *ProviderEngine) Speak(ctx context.Context, text string) (*Utterance, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyUtterance
	}

	resp, err := e.provider.Synthesize(ctx, &tts.SynthesizeRequest{
		Text:    text,
		VoiceID: e.voice,
		Speed:   e.speed,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}

	u := NewUtterance(text)
	e.logger.Debug().
		Str("utterance", u.ID).
		Int("audioBytes", len(resp.Audio)).
		Dur("processingTime", resp.ProcessingTime).
		Msg("Synthesized utterance")

	go func() {
		u.Complete(e.player.Play(ctx, text, resp))
	}()
	return u, nil
}
