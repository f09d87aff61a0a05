package speech

import "io"

// ASRRequest is one transcription request to the remote speech API.
type ASRRequest struct {
	CallID    string    `json:"callId"`
	AudioData io.Reader `json:"-"`
	Format    string    `json:"format"`   // wav, m4a, webm, etc.
	Language  string    `json:"language"` // en-US, zh-CN, etc.
}

// TTSRequest is one synthesis request to the remote speech API.
type TTSRequest struct {
	CallID string  `json:"callId"`
	Text   string  `json:"text"`
	Voice  string  `json:"voice"`
	Speed  float32 `json:"speed"`  // 0.25-4.0
	Format string  `json:"format"` // mp3, wav, etc.
}
