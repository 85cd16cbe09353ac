// Package speech defines the speech-engine boundary: an utterance is submitted
// and completes exactly once, successfully or with an error.
package speech

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Utterance is a future for one spoken string.
type Utterance struct {
	ID   string
	Text string

	done chan struct{}
	once sync.Once
	err  error
}

// NewUtterance returns a pending utterance with a fresh ID.
func NewUtterance(text string) *Utterance {
	return &Utterance{
		ID:   uuid.NewString(),
		Text: text,
		done: make(chan struct{}),
	}
}

// Done is closed when the utterance completes.
func (u *Utterance) Done() <-chan struct{} {
	return u.done
}

// Err returns the completion error. Nil until Done is closed.
func (u *Utterance) Err() error {
	select {
	case <-u.done:
		return u.err
	default:
		return nil
	}
}

// Complete resolves the utterance. Only the first call has any effect; it
// reports whether this call was the one that completed it.
func (u *Utterance) Complete(err error) bool {
	completed := false
	u.once.Do(func() {
		u.err = err
		close(u.done)
		completed = true
	})
	return completed
}

// Wait blocks until completion or until ctx is done.
func (u *Utterance) Wait(ctx context.Context) error {
	select {
	case <-u.done:
		return u.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
