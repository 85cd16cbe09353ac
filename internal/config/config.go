// Package config provides configuration management for guardavatar
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. GUARDAVATAR_SPEECH_ENGINE.
const EnvPrefix = "GUARDAVATAR"

// Speech engine names
const (
	EngineSimulated = "simulated"
	EngineOpenAI    = "openai"
	EngineMacOS     = "macos"
	EngineBrowser   = "browser"
)

// Config holds all application configuration
type Config struct {
	Asset        AssetConfig        `mapstructure:"asset"`
	Animation    AnimationConfig    `mapstructure:"animation"`
	Conversation ConversationConfig `mapstructure:"conversation"`
	Speech       SpeechConfig       `mapstructure:"speech"`
	Frame        FrameConfig        `mapstructure:"frame"`
	Bridge       BridgeConfig       `mapstructure:"bridge"`
	Log          LogConfig          `mapstructure:"log"`
}

// AssetConfig configures the character asset and its normalization
type AssetConfig struct {
	Source      string        `mapstructure:"source"` // path to .glb/.gltf or http(s) URL
	TargetSize  float32       `mapstructure:"target_size"`
	GroundY     float32       `mapstructure:"ground_y"`
	CastShadows bool          `mapstructure:"cast_shadows"`
	Watch       bool          `mapstructure:"watch"` // reload when the local file changes
	Debounce    time.Duration `mapstructure:"debounce"`
	LoadTimeout time.Duration `mapstructure:"load_timeout"`
}

// AnimationConfig configures clip blending
type AnimationConfig struct {
	Crossfade time.Duration `mapstructure:"crossfade"`
	FadeCurve string        `mapstructure:"fade_curve"` // linear, ease_in_out
	Gestures  []string      `mapstructure:"gestures"`
	IdleClip  string        `mapstructure:"idle_clip"`
}

// ConversationConfig configures the orchestrator
type ConversationConfig struct {
	Pacing        time.Duration `mapstructure:"pacing"`
	SpeechTimeout time.Duration `mapstructure:"speech_timeout"`
	MaxHistory    int           `mapstructure:"max_history"`
	HistoryTTL    time.Duration `mapstructure:"history_ttl"`
}

// SpeechConfig configures the speech engine
type SpeechConfig struct {
	Engine         string        `mapstructure:"engine"` // simulated, openai, macos, browser
	WordsPerMinute int           `mapstructure:"words_per_minute"`
	Voice          string        `mapstructure:"voice"`
	Speed          float64       `mapstructure:"speed"`
	OpenAIAPIKey   string        `mapstructure:"openai_api_key"`
	OpenAIBaseURL  string        `mapstructure:"openai_base_url"` // empty uses the public API
	Model          string        `mapstructure:"model"` // tts-1, tts-1-hd
	Timeout        time.Duration `mapstructure:"timeout"`
}

// FrameConfig configures the frame clock
type FrameConfig struct {
	FPS      int           `mapstructure:"fps"`
	MaxDelta time.Duration `mapstructure:"max_delta"`
}

// BridgeConfig configures the browser websocket link
type BridgeConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
	PoseEvery  int    `mapstructure:"pose_every"` // broadcast the pose every N frames
	ForwardLog bool   `mapstructure:"forward_log"`
}

// LogConfig configures logging
type LogConfig struct {
	Level   string `mapstructure:"level"`
	Dir     string `mapstructure:"dir"`
	Console bool   `mapstructure:"console"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() *Config {
	dir, _ := GetConfigDir()
	return &Config{
		Asset: AssetConfig{
			Source:      "assets/avatar.glb",
			TargetSize:  2,
			GroundY:     0,
			CastShadows: true,
			Watch:       false,
			Debounce:    250 * time.Millisecond,
			LoadTimeout: 30 * time.Second,
		},
		Animation: AnimationConfig{
			Crossfade: 500 * time.Millisecond,
			FadeCurve: "linear",
			Gestures:  []string{"Idle", "Wave", "Happy", "Sad", "Angry"},
			IdleClip:  "Idle",
		},
		Conversation: ConversationConfig{
			Pacing:        500 * time.Millisecond,
			SpeechTimeout: 30 * time.Second,
			MaxHistory:    10,
			HistoryTTL:    5 * time.Minute,
		},
		Speech: SpeechConfig{
			Engine:         EngineSimulated,
			WordsPerMinute: 175,
			Voice:          "nova",
			Speed:          1.0,
			Model:          "tts-1",
			Timeout:        30 * time.Second,
		},
		Frame: FrameConfig{
			FPS:      60,
			MaxDelta: 100 * time.Millisecond,
		},
		Bridge: BridgeConfig{
			Enabled:    false,
			ListenAddr: "127.0.0.1:8765",
			PoseEvery:  6,
			ForwardLog: true,
		},
		Log: LogConfig{
			Level:   "info",
			Dir:     filepath.Join(dir, "logs"),
			Console: true,
		},
	}
}

// newViper returns a viper instance seeded with defaults and env overrides.
func newViper(cfg *Config) *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setAll(v, cfg, v.SetDefault)
	return v
}

// setAll registers every leaf key so AutomaticEnv can see it during Unmarshal.
func setAll(v *viper.Viper, cfg *Config, set func(string, any)) {
	set("asset.source", cfg.Asset.Source)
	set("asset.target_size", cfg.Asset.TargetSize)
	set("asset.ground_y", cfg.Asset.GroundY)
	set("asset.cast_shadows", cfg.Asset.CastShadows)
	set("asset.watch", cfg.Asset.Watch)
	set("asset.debounce", cfg.Asset.Debounce)
	set("asset.load_timeout", cfg.Asset.LoadTimeout)

	set("animation.crossfade", cfg.Animation.Crossfade)
	set("animation.fade_curve", cfg.Animation.FadeCurve)
	set("animation.gestures", cfg.Animation.Gestures)
	set("animation.idle_clip", cfg.Animation.IdleClip)

	set("conversation.pacing", cfg.Conversation.Pacing)
	set("conversation.speech_timeout", cfg.Conversation.SpeechTimeout)
	set("conversation.max_history", cfg.Conversation.MaxHistory)
	set("conversation.history_ttl", cfg.Conversation.HistoryTTL)

	set("speech.engine", cfg.Speech.Engine)
	set("speech.words_per_minute", cfg.Speech.WordsPerMinute)
	set("speech.voice", cfg.Speech.Voice)
	set("speech.speed", cfg.Speech.Speed)
	set("speech.openai_api_key", cfg.Speech.OpenAIAPIKey)
	set("speech.openai_base_url", cfg.Speech.OpenAIBaseURL)
	set("speech.model", cfg.Speech.Model)
	set("speech.timeout", cfg.Speech.Timeout)

	set("frame.fps", cfg.Frame.FPS)
	set("frame.max_delta", cfg.Frame.MaxDelta)

	set("bridge.enabled", cfg.Bridge.Enabled)
	set("bridge.listen_addr", cfg.Bridge.ListenAddr)
	set("bridge.pose_every", cfg.Bridge.PoseEvery)
	set("bridge.forward_log", cfg.Bridge.ForwardLog)

	set("log.level", cfg.Log.Level)
	set("log.dir", cfg.Log.Dir)
	set("log.console", cfg.Log.Console)
}

// Load reads configuration from path, or from config.yaml in the config
// directory and the working directory when path is empty. A missing file is
// not an error. Environment variables override file values.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	v := newViper(cfg)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		if dir, err := GetConfigDir(); err == nil {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !(path != "" && os.IsNotExist(err)) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML to path, creating parent directories.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setAll(v, cfg, v.Set)
	return v.WriteConfigAs(path)
}

// Validate rejects values the components cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Asset.Source == "" {
		errs = append(errs, errors.New("asset.source is required"))
	}
	if c.Asset.TargetSize <= 0 {
		errs = append(errs, fmt.Errorf("asset.target_size must be positive, got %v", c.Asset.TargetSize))
	}
	if c.Animation.Crossfade < 0 {
		errs = append(errs, fmt.Errorf("animation.crossfade must not be negative, got %v", c.Animation.Crossfade))
	}
	switch c.Animation.FadeCurve {
	case "", "linear", "ease_in_out":
	default:
		errs = append(errs, fmt.Errorf("animation.fade_curve %q is not linear or ease_in_out", c.Animation.FadeCurve))
	}
	if c.Conversation.Pacing < 0 {
		errs = append(errs, fmt.Errorf("conversation.pacing must not be negative, got %v", c.Conversation.Pacing))
	}
	if c.Conversation.SpeechTimeout <= 0 {
		errs = append(errs, fmt.Errorf("conversation.speech_timeout must be positive, got %v", c.Conversation.SpeechTimeout))
	}
	switch c.Speech.Engine {
	case EngineSimulated, EngineOpenAI, EngineMacOS, EngineBrowser:
	default:
		errs = append(errs, fmt.Errorf("speech.engine %q is not one of simulated, openai, macos, browser", c.Speech.Engine))
	}
	if c.Speech.Engine == EngineBrowser && !c.Bridge.Enabled {
		errs = append(errs, errors.New("speech.engine browser requires bridge.enabled"))
	}
	if c.Speech.Engine == EngineOpenAI && !c.Bridge.Enabled {
		errs = append(errs, errors.New("speech.engine openai requires bridge.enabled to play audio"))
	}
	if c.Frame.FPS <= 0 || c.Frame.FPS > 1000 {
		errs = append(errs, fmt.Errorf("frame.fps must be in 1..1000, got %d", c.Frame.FPS))
	}
	if c.Bridge.Enabled && c.Bridge.ListenAddr == "" {
		errs = append(errs, errors.New("bridge.listen_addr is required when the bridge is enabled"))
	}

	return errors.Join(errs...)
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".guardavatar"), nil
}
