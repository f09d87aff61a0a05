package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"gopkg.in/yaml.v3"
)

// Config aggregates every setting the service needs.
type Config struct {
	Server ServerConfig
	AI     AIConfig
	Speech SpeechConfig
	Call   CallConfig
}

// Load reads configuration from the environment, then applies the optional
// YAML file named by CONFIG_FILE on top.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	speech, err := loadSpeechConfig()
	if err != nil {
		return nil, err
	}

	call, err := loadCallConfig()
	if err != nil {
		return nil, err
	}

	cfg := &Config{Server: server, AI: ai, Speech: speech, Call: call}

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" as-is.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig describes the reasoning model.
type AIConfig struct {
	APIKey      string   `yaml:"api_key"`
	AccessKey   string   `yaml:"access_key"`
	SecretKey   string   `yaml:"secret_key"`
	Model       string   `yaml:"model"`
	BaseURL     string   `yaml:"base_url"`
	Region      string   `yaml:"region"`
	Temperature *float64 `yaml:"temperature"`
	MaxTokens   *int     `yaml:"max_tokens"`
}

// Enabled reports whether the required credentials are present.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel builds a model instance from the configuration.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("reasoning model credentials missing: set ARK_API_KEY + Model or the AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("Model")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}, nil
}

// SpeechConfig describes the remote transcription and synthesis API.
type SpeechConfig struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	ASRModel    string  `yaml:"asr_model"`
	ASRLanguage string  `yaml:"asr_language"`
	TTSModel    string  `yaml:"tts_model"`
	TTSVoice    string  `yaml:"tts_voice"`
	TTSSpeed    float32 `yaml:"tts_speed"`
	TTSFormat   string  `yaml:"tts_format"`
	Timeout     int     `yaml:"timeout"`
	Enabled     bool    `yaml:"-"`
}

func loadSpeechConfig() (SpeechConfig, error) {
	timeout, err := parseOptionalIntEnv("SPEECH_TIMEOUT")
	if err != nil {
		return SpeechConfig{}, err
	}
	timeoutSeconds := 30
	if timeout != nil {
		timeoutSeconds = *timeout
	}

	speed, err := parseOptionalFloat32Env("SPEECH_TTS_SPEED")
	if err != nil {
		return SpeechConfig{}, err
	}
	ttsSpeed := float32(1.0)
	if speed != nil {
		ttsSpeed = *speed
	}

	apiKey := strings.TrimSpace(os.Getenv("SPEECH_API_KEY"))
	if apiKey == "" {
		apiKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}

	return SpeechConfig{
		APIKey:      apiKey,
		BaseURL:     getEnvOrDefault("SPEECH_BASE_URL", "https://api.openai.com/v1"),
		ASRModel:    getEnvOrDefault("SPEECH_ASR_MODEL", "whisper-1"),
		ASRLanguage: getEnvOrDefault("SPEECH_ASR_LANGUAGE", "en"),
		TTSModel:    getEnvOrDefault("SPEECH_TTS_MODEL", "tts-1"),
		TTSVoice:    getEnvOrDefault("SPEECH_TTS_VOICE", "onyx"),
		TTSSpeed:    ttsSpeed,
		TTSFormat:   getEnvOrDefault("SPEECH_TTS_FORMAT", "mp3"),
		Timeout:     timeoutSeconds,
		Enabled:     apiKey != "",
	}, nil
}

// CallConfig tunes the emergency call session engine.
type CallConfig struct {
	ConnectDelay   time.Duration `yaml:"-"`
	ConnectDelayMs *int          `yaml:"connect_delay_ms"`
	Greeting       string        `yaml:"greeting"`
}

func loadCallConfig() (CallConfig, error) {
	delayMs, err := parseOptionalIntEnv("CALL_CONNECT_DELAY_MS")
	if err != nil {
		return CallConfig{}, err
	}
	delay := 1500 * time.Millisecond
	if delayMs != nil {
		delay = time.Duration(*delayMs) * time.Millisecond
	}

	return CallConfig{
		ConnectDelay: delay,
		Greeting:     getEnvOrDefault("CALL_GREETING", ""),
	}, nil
}

type fileConfig struct {
	Server ServerConfig `yaml:"server"`
	AI     AIConfig     `yaml:"ai"`
	Speech SpeechConfig `yaml:"speech"`
	Call   CallConfig   `yaml:"call"`
}

// applyFile overlays non-empty values from a YAML file onto the config
// already loaded from the environment.
func (c *Config) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.Server.Addr != "" {
		c.Server.Addr = fc.Server.Addr
	}
	if fc.AI.APIKey != "" {
		c.AI.APIKey = fc.AI.APIKey
	}
	if fc.AI.Model != "" {
		c.AI.Model = fc.AI.Model
	}
	if fc.AI.BaseURL != "" {
		c.AI.BaseURL = fc.AI.BaseURL
	}
	if fc.AI.Temperature != nil {
		c.AI.Temperature = fc.AI.Temperature
	}
	if fc.AI.MaxTokens != nil {
		c.AI.MaxTokens = fc.AI.MaxTokens
	}
	if fc.Speech.APIKey != "" {
		c.Speech.APIKey = fc.Speech.APIKey
		c.Speech.Enabled = true
	}
	if fc.Speech.BaseURL != "" {
		c.Speech.BaseURL = fc.Speech.BaseURL
	}
	if fc.Speech.ASRModel != "" {
		c.Speech.ASRModel = fc.Speech.ASRModel
	}
	if fc.Speech.TTSModel != "" {
		c.Speech.TTSModel = fc.Speech.TTSModel
	}
	if fc.Speech.TTSVoice != "" {
		c.Speech.TTSVoice = fc.Speech.TTSVoice
	}
	if fc.Call.ConnectDelayMs != nil {
		c.Call.ConnectDelay = time.Duration(*fc.Call.ConnectDelayMs) * time.Millisecond
	}
	if fc.Call.Greeting != "" {
		c.Call.Greeting = fc.Call.Greeting
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalFloat32Env(key string) (*float32, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	result := float32(val)
	return &result, nil
}
