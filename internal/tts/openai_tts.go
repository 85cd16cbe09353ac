package tts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"
)

// OpenAI TTS voices
const (
	VoiceAlloy   = "alloy"
	VoiceEcho    = "echo"
	VoiceFable   = "fable"
	VoiceOnyx    = "onyx"
	VoiceNova    = "nova"
	VoiceShimmer = "shimmer"
)

// OpenAIConfig holds OpenAI TTS configuration
type OpenAIConfig struct {
	APIKey       string        `json:"api_key"`
	BaseURL      string        `json:"base_url,omitempty"`
	Model        string        `json:"model"`         // tts-1 or tts-1-hd
	DefaultVoice string        `json:"default_voice"` // alloy, echo, fable, onyx, nova, shimmer
	Speed        float64       `json:"speed"`         // 0.25 to 4.0
	Timeout      time.Duration `json:"timeout"`
	MaxRetries   int           `json:"max_retries"`
}

// DefaultOpenAIConfig returns sensible defaults
func DefaultOpenAIConfig() *OpenAIConfig {
	return &OpenAIConfig{
		Model:        "tts-1",
		DefaultVoice: VoiceNova,
		Speed:        1.0,
		Timeout:      30 * time.Second,
		MaxRetries:   2,
	}
}

// OpenAIProvider implements TTS using OpenAI's speech endpoint.
type OpenAIProvider struct {
	client openai.Client
	apiKey string
	config *OpenAIConfig
	logger zerolog.Logger
}

// NewOpenAIProvider creates a new OpenAI TTS provider. The API key falls back
// to OPENAI_API_KEY.
func NewOpenAIProvider(logger zerolog.Logger, config *OpenAIConfig) *OpenAIProvider {
	if config == nil {
		config = DefaultOpenAIConfig()
	}

	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: config.Timeout}),
		option.WithMaxRetries(config.MaxRetries),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return &OpenAIProvider{
		client: openai.NewClient(opts...),
		apiKey: apiKey,
		config: config,
		logger: logger.With().Str("provider", "openai-tts").Logger(),
	}
}

// Name returns the provider identifier
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// IsAvailable reports whether an API key is configured
func (p *OpenAIProvider) IsAvailable() bool {
	return p.apiKey != ""
}

// Synthesize converts text to mp3 audio.
func (p *OpenAIProvider) Synthesize(ctx context.Context, req *SynthesizeRequest) (*SynthesizeResponse, error) {
	if !p.IsAvailable() {
		return nil, fmt.Errorf("%w: OpenAI API key not configured", ErrProviderUnavailable)
	}
	if err := validate(req, p.Capabilities()); err != nil {
		return nil, err
	}

	start := time.Now()

	voice := req.VoiceID
	if voice == "" {
		voice = p.config.DefaultVoice
	}
	speed := req.Speed
	if speed == 0 {
		speed = p.config.Speed
	}

	resp, err := p.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          req.Text,
		Model:          openai.SpeechModel(p.config.Model),
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
		Speed:          openai.Float(speed),
	})
	if err != nil {
		return nil, fmt.Errorf("openai speech: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}

	elapsed := time.Since(start)
	p.logger.Debug().
		Str("voice", voice).
		Int("textLen", len(req.Text)).
		Int("audioBytes", len(audio)).
		Dur("processingTime", elapsed).
		Msg("OpenAI TTS synthesis complete")

	return &SynthesizeResponse{
		Audio:          audio,
		Format:         "mp3",
		SampleRate:     24000,
		ProcessingTime: elapsed,
		VoiceID:        voice,
		Provider:       p.Name(),
	}, nil
}

// Health reports whether the provider can be used.
func (p *OpenAIProvider) Health(ctx context.Context) error {
	if !p.IsAvailable() {
		return ErrProviderUnavailable
	}
	return nil
}

// ListVoices returns the built-in OpenAI voices
func (p *OpenAIProvider) ListVoices(ctx context.Context) ([]Voice, error) {
	return []Voice{
		{ID: VoiceAlloy, Name: "Alloy", Language: "en", Gender: "neutral"},
		{ID: VoiceEcho, Name: "Echo", Language: "en", Gender: "male"},
		{ID: VoiceFable, Name: "Fable", Language: "en", Gender: "neutral"},
		{ID: VoiceOnyx, Name: "Onyx", Language: "en", Gender: "male"},
		{ID: VoiceNova, Name: "Nova", Language: "en", Gender: "female"},
		{ID: VoiceShimmer, Name: "Shimmer", Language: "en", Gender: "female"},
	}, nil
}

// Capabilities returns OpenAI TTS capabilities
func (p *OpenAIProvider) Capabilities() ProviderCapabilities {
	return ProviderCapabilities{
		SupportedLanguages: []string{"en"},
		MaxTextLength:      4096,
		AvgLatencyMs:       500,
		IsLocal:            false,
	}
}
