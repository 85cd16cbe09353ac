// Package tts provides text-to-speech synthesis providers used by the speech
// engines.
package tts

import (
	"context"
	"errors"
	"time"
)

// Common errors
var (
	ErrProviderUnavailable = errors.New("TTS provider unavailable")
	ErrEmptyText           = errors.New("text is empty")
	ErrTextTooLong         = errors.New("text exceeds maximum length")
)

// Provider is the interface synthesis backends implement.
type Provider interface {
	// Name returns the provider identifier (e.g., "openai", "macos")
	Name() string

	// Synthesize converts text to audio
	Synthesize(ctx context.Context, req *SynthesizeRequest) (*SynthesizeResponse, error)

	// Health checks if the provider is available
	Health(ctx context.Context) error

	// Capabilities returns the provider's feature set
	Capabilities() ProviderCapabilities
}

// SynthesizeRequest represents a synthesis request
type SynthesizeRequest struct {
	Text    string  `json:"text"`
	VoiceID string  `json:"voice_id"`
	Speed   float64 `json:"speed,omitempty"`  // 0.25 to 4.0
	Format  string  `json:"format,omitempty"` // mp3, wav, aac
}

// SynthesizeResponse represents a synthesis result
type SynthesizeResponse struct {
	Audio          []byte        `json:"audio"`
	Format         string        `json:"format"`
	SampleRate     int           `json:"sample_rate"`
	Duration       time.Duration `json:"duration"` // zero when the provider cannot tell
	ProcessingTime time.Duration `json:"processing_time"`
	VoiceID        string        `json:"voice_id"`
	Provider       string        `json:"provider"`
}

// Voice represents an available TTS voice
type Voice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language"`
	Gender   string `json:"gender"` // male, female, neutral
}

// ProviderCapabilities describes what features a provider supports
type ProviderCapabilities struct {
	SupportedLanguages []string `json:"supported_languages"`
	MaxTextLength      int      `json:"max_text_length"`
	AvgLatencyMs       int      `json:"avg_latency_ms"`
	IsLocal            bool     `json:"is_local"`
}

// Availability is implemented by providers that can tell, without a network
// round trip, whether they are usable.
type Availability interface {
	IsAvailable() bool
}

// validate applies the checks every provider shares.
func validate(req *SynthesizeRequest, caps ProviderCapabilities) error {
	if req == nil || req.Text == "" {
		return ErrEmptyText
	}
	if caps.MaxTextLength > 0 && len(req.Text) > caps.MaxTextLength {
		return ErrTextTooLong
	}
	return nil
}
