package speech

// SpeechConfig carries credentials and defaults for the remote speech API.
type SpeechConfig struct {
	APIKey  string `json:"apiKey" yaml:"api_key"`
	BaseURL string `json:"baseUrl" yaml:"base_url"`

	// ASR
	ASRModel    string `json:"asrModel" yaml:"asr_model"`
	ASRLanguage string `json:"asrLanguage" yaml:"asr_language"`

	// TTS
	TTSModel  string  `json:"ttsModel" yaml:"tts_model"`
	TTSVoice  string  `json:"ttsVoice" yaml:"tts_voice"`
	TTSSpeed  float32 `json:"ttsSpeed" yaml:"tts_speed"`
	TTSFormat string  `json:"ttsFormat" yaml:"tts_format"`

	Timeout int `json:"timeout" yaml:"timeout"` // seconds
}
