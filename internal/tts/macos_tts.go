package tts

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// MacOSProvider implements TTS using the macOS 'say' command.
type MacOSProvider struct {
	logger zerolog.Logger
	config *MacOSConfig

	// lookPath is swapped in tests.
	lookPath func(string) (string, error)
	goos     string
}

// MacOSConfig holds macOS TTS configuration
type MacOSConfig struct {
	DefaultVoice string `json:"default_voice"` // Samantha, Daniel, etc.
	Rate         int    `json:"rate"`          // Words per minute (default 175)
}

// DefaultMacOSConfig returns sensible defaults for macOS TTS
func DefaultMacOSConfig() *MacOSConfig {
	return &MacOSConfig{
		DefaultVoice: "Samantha",
		Rate:         175,
	}
}

// NewMacOSProvider creates a new macOS TTS provider
func NewMacOSProvider(logger zerolog.Logger, config *MacOSConfig) *MacOSProvider {
	if config == nil {
		config = DefaultMacOSConfig()
	}
	return &MacOSProvider{
		logger:   logger.With().Str("provider", "macos-tts").Logger(),
		config:   config,
		lookPath: exec.LookPath,
		goos:     runtime.GOOS,
	}
}

// Name returns the provider identifier
func (p *MacOSProvider) Name() string {
	return "macos"
}

// IsAvailable checks if this is macOS and 'say' command exists
func (p *MacOSProvider) IsAvailable() bool {
	if p.goos != "darwin" {
		return false
	}
	_, err := p.lookPath("say")
	return err == nil
}

// OpenAI voice names mapped onto system voices so one speech.voice setting
// works with either provider.
var macOSVoiceMap = map[string]string{
	"nova":    "Samantha",
	"shimmer": "Samantha",
	"alloy":   "Samantha",
	"onyx":    "Daniel",
	"echo":    "Daniel",
	"fable":   "Daniel",
}

var macOSVoices = []Voice{
	{ID: "Samantha", Name: "Samantha (Female, American)", Language: "en-US", Gender: "female"},
	{ID: "Daniel", Name: "Daniel (Male, British)", Language: "en-GB", Gender: "male"},
	{ID: "Alex", Name: "Alex (Male, American)", Language: "en-US", Gender: "male"},
	{ID: "Karen", Name: "Karen (Female, Australian)", Language: "en-AU", Gender: "female"},
	{ID: "Victoria", Name: "Victoria (Female, American)", Language: "en-US", Gender: "female"},
	{ID: "Serena", Name: "Serena (Female, British)", Language: "en-GB", Gender: "female"},
	{ID: "Oliver", Name: "Oliver (Male, British)", Language: "en-GB", Gender: "male"},
}

// Synthesize renders text to an m4a file with 'say' and returns its bytes.
func (p *MacOSProvider) Synthesize(ctx context.Context, req *SynthesizeRequest) (*SynthesizeResponse, error) {
	if !p.IsAvailable() {
		return nil, fmt.Errorf("%w: macOS say not found", ErrProviderUnavailable)
	}
	if err := validate(req, p.Capabilities()); err != nil {
		return nil, err
	}

	startTime := time.Now()
	voice := p.mapVoice(req.VoiceID)

	tmpFile, err := os.CreateTemp("", "tts-*.m4a")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	args := append(p.args(voice), "-o", tmpPath, "--data-format=aac", req.Text)

	cmd := exec.CommandContext(ctx, "say", args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		p.logger.Error().
			Err(err).
			Str("output", string(output)).
			Msg("macOS TTS failed")
		return nil, fmt.Errorf("say command failed: %w", err)
	}

	audioData, err := os.ReadFile(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("read audio file: %w", err)
	}

	processingTime := time.Since(startTime)
	p.logger.Debug().
		Str("voice", voice).
		Int("audioBytes", len(audioData)).
		Dur("processingTime", processingTime).
		Msg("macOS TTS synthesis complete")

	return &SynthesizeResponse{
		Audio:          audioData,
		Format:         "m4a",
		SampleRate:     22050,
		ProcessingTime: processingTime,
		VoiceID:        voice,
		Provider:       p.Name(),
	}, nil
}

// SpeakDirect speaks text through system audio and blocks until done.
func (p *MacOSProvider) SpeakDirect(ctx context.Context, text string, voiceID string) error {
	if !p.IsAvailable() {
		return fmt.Errorf("%w: macOS say not found", ErrProviderUnavailable)
	}
	if err := validate(&SynthesizeRequest{Text: text}, p.Capabilities()); err != nil {
		return err
	}

	voice := p.mapVoice(voiceID)
	p.logger.Debug().
		Str("voice", voice).
		Int("textLen", len(text)).
		Msg("Speaking directly with macOS TTS")

	return exec.CommandContext(ctx, "say", append(p.args(voice), text)...).Run()
}

func (p *MacOSProvider) args(voice string) []string {
	args := []string{"-v", voice}
	if p.config.Rate > 0 && p.config.Rate != 175 {
		args = append(args, "-r", strconv.Itoa(p.config.Rate))
	}
	return args
}

// mapVoice maps voice IDs to macOS system voices
func (p *MacOSProvider) mapVoice(voiceID string) string {
	if voiceID == "" {
		return p.config.DefaultVoice
	}
	if mapped, ok := macOSVoiceMap[voiceID]; ok {
		return mapped
	}
	for _, v := range macOSVoices {
		if v.ID == voiceID {
			return voiceID
		}
	}
	return p.config.DefaultVoice
}

// ListVoices returns the high-quality voices typically installed on macOS.
func (p *MacOSProvider) ListVoices(ctx context.Context) ([]Voice, error) {
	out := make([]Voice, len(macOSVoices))
	copy(out, macOSVoices)
	return out, nil
}

// Health checks if macOS TTS is available
func (p *MacOSProvider) Health(ctx context.Context) error {
	if !p.IsAvailable() {
		return ErrProviderUnavailable
	}
	return nil
}

// Capabilities returns macOS TTS capabilities
func (p *MacOSProvider) Capabilities() ProviderCapabilities {
	return ProviderCapabilities{
		SupportedLanguages: []string{"en"},
		MaxTextLength:      10000,
		AvgLatencyMs:       200,
		IsLocal:            true,
	}
}
