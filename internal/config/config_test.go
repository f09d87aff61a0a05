package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.False(t, cfg.AI.Enabled())
	assert.Equal(t, "whisper-1", cfg.Speech.ASRModel)
	assert.Equal(t, "tts-1", cfg.Speech.TTSModel)
	assert.Equal(t, "onyx", cfg.Speech.TTSVoice)
	assert.Equal(t, "mp3", cfg.Speech.TTSFormat)
	assert.Equal(t, float32(1.0), cfg.Speech.TTSSpeed)
	assert.Equal(t, 30, cfg.Speech.Timeout)
	assert.False(t, cfg.Speech.Enabled)
	assert.Equal(t, 1500*time.Millisecond, cfg.Call.ConnectDelay)
	assert.Empty(t, cfg.Call.Greeting)
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("ARK_API_KEY", "test-key")
	t.Setenv("Model", "test-model")
	t.Setenv("ARK_TEMPERATURE", "0.5")
	t.Setenv("SPEECH_API_KEY", "speech-key")
	t.Setenv("SPEECH_TTS_SPEED", "1.2")
	t.Setenv("CALL_CONNECT_DELAY_MS", "500")
	t.Setenv("CALL_GREETING", "Hello, how can I help?")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.True(t, cfg.AI.Enabled())
	require.NotNil(t, cfg.AI.Temperature)
	assert.Equal(t, 0.5, *cfg.AI.Temperature)
	assert.True(t, cfg.Speech.Enabled)
	assert.Equal(t, float32(1.2), cfg.Speech.TTSSpeed)
	assert.Equal(t, 500*time.Millisecond, cfg.Call.ConnectDelay)
	assert.Equal(t, "Hello, how can I help?", cfg.Call.Greeting)
}

func TestLoadAcceptsFullListenAddr(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "127.0.0.1:8081")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8081", cfg.Server.Addr)
}

func TestLoadRejectsBadPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "80 80")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsBadNumericEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("ARK_TEMPERATURE", "warm")

	_, err := Load()
	assert.Error(t, err)
}

func TestOpenAIKeyFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "shared-key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "shared-key", cfg.Speech.APIKey)
	assert.True(t, cfg.Speech.Enabled)
}

func TestConfigFileOverlay(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("SPEECH_API_KEY", "env-key")

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  addr: ":7070"
ai:
  api_key: file-ai-key
  model: file-model
speech:
  tts_voice: nova
call:
  connect_delay_ms: 250
  greeting: "File greeting."
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	// File values win where set.
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "file-ai-key", cfg.AI.APIKey)
	assert.Equal(t, "file-model", cfg.AI.Model)
	assert.Equal(t, "nova", cfg.Speech.TTSVoice)
	assert.Equal(t, 250*time.Millisecond, cfg.Call.ConnectDelay)
	assert.Equal(t, "File greeting.", cfg.Call.Greeting)

	// Environment values survive where the file is silent.
	assert.Equal(t, "env-key", cfg.Speech.APIKey)
	assert.Equal(t, "whisper-1", cfg.Speech.ASRModel)
}

func TestConfigFileMissing(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "CONFIG_FILE",
		"ARK_API_KEY", "ARK_ACCESS_KEY", "ARK_SECRET_KEY", "Model",
		"ARK_BASE_URL", "ARK_REGION", "ARK_TEMPERATURE", "ARK_MAX_TOKENS",
		"SPEECH_API_KEY", "OPENAI_API_KEY", "SPEECH_BASE_URL",
		"SPEECH_ASR_MODEL", "SPEECH_ASR_LANGUAGE", "SPEECH_TTS_MODEL",
		"SPEECH_TTS_VOICE", "SPEECH_TTS_SPEED", "SPEECH_TTS_FORMAT",
		"SPEECH_TIMEOUT",
		"CALL_CONNECT_DELAY_MS", "CALL_GREETING",
	} {
		t.Setenv(key, "")
	}
}
