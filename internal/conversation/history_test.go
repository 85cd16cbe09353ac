package conversation

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/guardavatar/internal/clock"
)

func TestNewHistoryDefaults(t *testing.T) {
	h := NewHistory(HistoryConfig{})
	assert.Equal(t, 10, h.config.MaxExchanges)
	assert.Equal(t, 5*time.Minute, h.config.InactivityTimeout)
	assert.Zero(t, h.Count())
	assert.Empty(t, h.Summary(0))
}

func TestHistoryTrimsOldExchanges(t *testing.T) {
	h := NewHistory(HistoryConfig{MaxExchanges: 2})

	h.Add("first", LabelNeither, "r1")
	h.Add("second", LabelHateSpeech, "r2")
	h.Add("third", LabelOffensiveLanguage, "r3")

	ex := h.Exchanges()
	require.Len(t, ex, 2)
	assert.Equal(t, "second", ex[0].Input)
	assert.Equal(t, "third", ex[1].Input)
	assert.NotEqual(t, ex[0].ID, ex[1].ID)
}

func TestHistoryExpires(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	h := NewHistory(HistoryConfig{InactivityTimeout: time.Minute, Clock: fake})

	h.Add("hello", LabelNeither, "fine")
	assert.False(t, h.IsExpired())

	fake.Advance(30 * time.Second)
	h.Add("again", LabelNeither, "fine")
	fake.Advance(45 * time.Second)
	assert.False(t, h.IsExpired(), "adding keeps history alive")

	fake.Advance(30 * time.Second)
	assert.True(t, h.IsExpired())
	assert.Nil(t, h.Exchanges())
	assert.Empty(t, h.Summary(0))

	h.Add("again", LabelNeither, "fine")
	assert.Equal(t, 1, h.Count(), "adding after expiry starts fresh")
}

func TestHistorySummary(t *testing.T) {
	h := NewHistory(DefaultHistoryConfig())
	h.Add("one", LabelNeither, "safe")
	h.Add(strings.Repeat("x", 100), LabelHateSpeech, "harmful")

	all := h.Summary(0)
	assert.Contains(t, all, `[1] neither "one" -> safe`)
	assert.Contains(t, all, "...")

	last := h.Summary(1)
	assert.NotContains(t, last, "one")
	assert.Contains(t, last, "hate_speech")

	h.Clear()
	assert.Zero(t, h.Count())
}

func TestSummaryTruncatesOnRuneBoundary(t *testing.T) {
	h := NewHistory(HistoryConfig{})

	input := strings.Repeat("a", 79) + "école, très offensant"
	h.Add(input, LabelOffensiveLanguage, "reply")

	summary := h.Summary(0)
	assert.True(t, utf8.ValidString(summary))
	assert.Contains(t, summary, `"`+strings.Repeat("a", 79)+`é..."`)
}
