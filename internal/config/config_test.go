package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 500*time.Millisecond, cfg.Animation.Crossfade)
	assert.Equal(t, 500*time.Millisecond, cfg.Conversation.Pacing)
	assert.Equal(t, float32(2), cfg.Asset.TargetSize)
	assert.Equal(t, EngineSimulated, cfg.Speech.Engine)
	assert.Equal(t, 60, cfg.Frame.FPS)
}

func TestLoadMissingExplicitFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Asset, cfg.Asset)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
asset:
  source: models/robot.glb
  target_size: 3
animation:
  crossfade: 250ms
  fade_curve: ease_in_out
conversation:
  pacing: 1s
speech:
  engine: openai
  voice: onyx
bridge:
  enabled: true
`), 0o644))

	t.Setenv("GUARDAVATAR_SPEECH_VOICE", "shimmer")
	t.Setenv("GUARDAVATAR_FRAME_FPS", "30")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "models/robot.glb", cfg.Asset.Source)
	assert.Equal(t, float32(3), cfg.Asset.TargetSize)
	assert.True(t, cfg.Asset.CastShadows, "unset keys keep defaults")
	assert.Equal(t, 250*time.Millisecond, cfg.Animation.Crossfade)
	assert.Equal(t, "ease_in_out", cfg.Animation.FadeCurve)
	assert.Equal(t, time.Second, cfg.Conversation.Pacing)
	assert.Equal(t, EngineOpenAI, cfg.Speech.Engine)
	assert.Equal(t, "shimmer", cfg.Speech.Voice)
	assert.Equal(t, 30, cfg.Frame.FPS)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("speech:\n  engine: telepathy\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telepathy")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no source", func(c *Config) { c.Asset.Source = "" }, "asset.source"},
		{"zero target", func(c *Config) { c.Asset.TargetSize = 0 }, "asset.target_size"},
		{"negative crossfade", func(c *Config) { c.Animation.Crossfade = -time.Second }, "animation.crossfade"},
		{"bad curve", func(c *Config) { c.Animation.FadeCurve = "bounce" }, "fade_curve"},
		{"no timeout", func(c *Config) { c.Conversation.SpeechTimeout = 0 }, "speech_timeout"},
		{"browser without bridge", func(c *Config) { c.Speech.Engine = EngineBrowser }, "bridge.enabled"},
		{"openai without bridge", func(c *Config) { c.Speech.Engine = EngineOpenAI }, "play audio"},
		{"fps", func(c *Config) { c.Frame.FPS = 0 }, "frame.fps"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Asset.Source = "https://example.com/avatar.glb"
	cfg.Conversation.Pacing = 750 * time.Millisecond
	cfg.Bridge.Enabled = true
	cfg.Speech.Engine = EngineBrowser
	require.NoError(t, Save(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Asset.Source, loaded.Asset.Source)
	assert.Equal(t, 750*time.Millisecond, loaded.Conversation.Pacing)
	assert.Equal(t, EngineBrowser, loaded.Speech.Engine)
	assert.Equal(t, cfg.Animation.Gestures, loaded.Animation.Gestures)
}
