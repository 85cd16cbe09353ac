package speech

import (
	"context"
	"errors"
	"strings"
	"time"
)

// DefaultWordsPerMinute matches the system voice's natural rate.
const DefaultWordsPerMinute = 175

// MinDuration is the shortest time any non-empty utterance is held for.
const MinDuration = 300 * time.Millisecond

// ErrEmptyUtterance is returned by engines asked to speak blank text.
var ErrEmptyUtterance = errors.New("utterance is empty")

// Engine speaks text. A returned error means the utterance never started;
// otherwise the Utterance completes exactly once.
type Engine interface {
	Speak(ctx context.Context, text string) (*Utterance, error)
}

// EstimateDuration approximates how long text takes to say at wpm.
func EstimateDuration(text string, wpm int) time.Duration {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	if wpm <= 0 {
		wpm = DefaultWordsPerMinute
	}
	d := time.Duration(words) * time.Minute / time.Duration(wpm)
	if d < MinDuration {
		d = MinDuration
	}
	return d
}
