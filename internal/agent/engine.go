package agent

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/normanking/guardavatar/internal/bridge"
	"github.com/normanking/guardavatar/internal/config"
	"github.com/normanking/guardavatar/internal/speech"
	"github.com/normanking/guardavatar/internal/tts"
)

// newEngine builds the configured speech engine. Providers that are not usable
// on this machine fall back to the simulated engine so conversations still
// pace correctly.
func (a *Agent) newEngine(logger zerolog.Logger) (speech.Engine, error) {
	sc := a.cfg.Speech
	simulated := func(reason error) speech.Engine {
		if reason != nil {
			a.logger.Warn().Err(reason).Str("engine", sc.Engine).Msg("Speech engine unavailable, using simulated speech")
		}
		return speech.NewSimulated(a.clock, sc.WordsPerMinute, logger)
	}

	switch sc.Engine {
	case config.EngineSimulated, "":
		return simulated(nil), nil

	case config.EngineOpenAI:
		cfg := tts.DefaultOpenAIConfig()
		cfg.APIKey = sc.OpenAIAPIKey
		cfg.BaseURL = sc.OpenAIBaseURL
		if sc.Model != "" {
			cfg.Model = sc.Model
		}
		if sc.Voice != "" {
			cfg.DefaultVoice = sc.Voice
		}
		if sc.Speed > 0 {
			cfg.Speed = sc.Speed
		}
		if sc.Timeout > 0 {
			cfg.Timeout = sc.Timeout
		}
		p := tts.NewOpenAIProvider(logger, cfg)
		if !p.IsAvailable() {
			return simulated(fmt.Errorf("%w: no OpenAI API key", tts.ErrProviderUnavailable)), nil
		}
		// Synthesized audio is played by bridge clients.
		if a.hub == nil {
			return nil, errors.New("openai speech requires the bridge to be enabled")
		}
		return speech.NewProviderEngine(p, bridge.NewRemoteSpeech(a.hub, logger), sc.Voice, sc.Speed, logger), nil

	case config.EngineMacOS:
		cfg := tts.DefaultMacOSConfig()
		if sc.WordsPerMinute > 0 {
			cfg.Rate = sc.WordsPerMinute
		}
		p := tts.NewMacOSProvider(logger, cfg)
		if !p.IsAvailable() {
			return simulated(tts.ErrProviderUnavailable), nil
		}
		// With the bridge up, speech comes from where the avatar is drawn.
		if a.hub != nil {
			return speech.NewProviderEngine(p, bridge.NewRemoteSpeech(a.hub, logger), sc.Voice, 0, logger), nil
		}
		return speech.NewSayEngine(p, sc.Voice, logger), nil

	case config.EngineBrowser:
		if a.hub == nil {
			return nil, errors.New("browser speech requires the bridge to be enabled")
		}
		return bridge.NewRemoteSpeech(a.hub, logger), nil
	}

	return nil, fmt.Errorf("unknown speech engine %q", sc.Engine)
}
