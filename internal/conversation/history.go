package conversation

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/normanking/guardavatar/internal/clock"
)

// Exchange records one completed conversation.
type Exchange struct {
	ID        string    `json:"id"`
	Input     string    `json:"input"`
	Label     Label     `json:"label"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryConfig configures History behavior.
type HistoryConfig struct {
	// MaxExchanges is the maximum number of exchanges to retain (default: 10)
	MaxExchanges int
	// InactivityTimeout is the duration after which history expires (default: 5 minutes)
	InactivityTimeout time.Duration
	Clock             clock.Clock
}

// DefaultHistoryConfig returns sensible defaults for history retention.
func DefaultHistoryConfig() HistoryConfig {
	return HistoryConfig{
		MaxExchanges:      10,
		InactivityTimeout: 5 * time.Minute,
	}
}

// History keeps the most recent exchanges until they go stale.
type History struct {
	mu           sync.RWMutex
	exchanges    []Exchange
	lastActivity time.Time
	config       HistoryConfig
}

// NewHistory creates a History with the given config.
func NewHistory(config HistoryConfig) *History {
	if config.MaxExchanges <= 0 {
		config.MaxExchanges = 10
	}
	if config.InactivityTimeout <= 0 {
		config.InactivityTimeout = 5 * time.Minute
	}
	if config.Clock == nil {
		config.Clock = clock.Real{}
	}

	return &History{
		exchanges:    make([]Exchange, 0, config.MaxExchanges),
		lastActivity: config.Clock.Now(),
		config:       config,
	}
}

// Add records an exchange, trimming the oldest beyond MaxExchanges.
func (h *History) Add(input string, label Label, response string) Exchange {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.isExpiredLocked() {
		h.clearLocked()
	}

	now := h.config.Clock.Now()
	ex := Exchange{
		ID:        uuid.NewString(),
		Input:     input,
		Label:     label,
		Response:  response,
		Timestamp: now,
	}
	h.exchanges = append(h.exchanges, ex)
	h.lastActivity = now

	if len(h.exchanges) > h.config.MaxExchanges {
		h.exchanges = h.exchanges[len(h.exchanges)-h.config.MaxExchanges:]
	}
	return ex
}

// Summary formats the last n exchanges (all when n <= 0), or "" when the
// history is empty or expired.
func (h *History) Summary(n int) string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.isExpiredLocked() || len(h.exchanges) == 0 {
		return ""
	}

	recent := h.exchanges
	if n > 0 && n < len(recent) {
		recent = recent[len(recent)-n:]
	}

	var sb strings.Builder
	for i, ex := range recent {
		fmt.Fprintf(&sb, "[%d] %s %q -> %s\n", i+1, ex.Label, truncate(ex.Input, summaryInputRunes), ex.Response)
	}
	return sb.String()
}

// Count returns the number of stored exchanges.
func (h *History) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.exchanges)
}

// Clear removes all history.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clearLocked()
}

func (h *History) clearLocked() {
	h.exchanges = make([]Exchange, 0, h.config.MaxExchanges)
}

// IsExpired checks if the history has expired due to inactivity.
func (h *History) IsExpired() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.isExpiredLocked()
}

// caller must hold the lock
func (h *History) isExpiredLocked() bool {
	if len(h.exchanges) == 0 {
		return false
	}
	return h.config.Clock.Now().Sub(h.lastActivity) > h.config.InactivityTimeout
}

// Exchanges returns a copy of all live exchanges.
func (h *History) Exchanges() []Exchange {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.isExpiredLocked() {
		return nil
	}
	out := make([]Exchange, len(h.exchanges))
	copy(out, h.exchanges)
	return out
}

const summaryInputRunes = 80

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
