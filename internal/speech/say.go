package speech

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/normanking/guardavatar/internal/tts"
)

// SayEngine speaks through the macOS system voice.
type SayEngine struct {
	provider *tts.MacOSProvider
	voice    string
	logger   zerolog.Logger
}

func NewSayEngine(provider *tts.MacOSProvider, voice string, logger zerolog.Logger) *SayEngine {
	return &SayEngine{
		provider: provider,
		voice:    voice,
		logger:   logger.With().Str("component", "speech").Str("engine", "macos").Logger(),
	}
}

func (e *SayEngine) Speak(ctx context.Context, text string) (*Utterance, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyUtterance
	}
	if !e.provider.IsAvailable() {
		return nil, tts.ErrProviderUnavailable
	}

	u := NewUtterance(text)
	go func() {
		err := e.provider.SpeakDirect(ctx, text, e.voice)
		if err != nil {
			e.logger.Warn().Err(err).Str("utterance", u.ID).Msg("say failed")
		}
		u.Complete(err)
	}()
	return u, nil
}
