package speech

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/normanking/guardavatar/internal/clock"
)

// Simulated is a headless engine that completes each utterance after its
// estimated speaking time has elapsed on a clock.
type Simulated struct {
	clock  clock.Clock
	wpm    int
	logger zerolog.Logger
}

// NewSimulated returns a Simulated engine. A nil clock means wall time.
func NewSimulated(c clock.Clock, wpm int, logger zerolog.Logger) *Simulated {
	if c == nil {
		c = clock.Real{}
	}
	if wpm <= 0 {
		wpm = DefaultWordsPerMinute
	}
	return &Simulated{
		clock:  c,
		wpm:    wpm,
		logger: logger.With().Str("component", "speech").Str("engine", "simulated").Logger(),
	}
}

func (s *Simulated) Speak(ctx context.Context, text string) (*Utterance, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyUtterance
	}

	u := NewUtterance(text)
	d := EstimateDuration(text, s.wpm)

	s.logger.Debug().
		Str("utterance", u.ID).
		Dur("duration", d).
		Msg("Speaking")

	go func() {
		u.Complete(clock.Sleep(ctx, s.clock, d))
	}()
	return u, nil
}
