package speech

import (
	"bytes"
	"context"
	"errors"

	"github.com/medicura/medicura/backend/internal/model/speech"
)

var (
	// ErrTranscriptionFailed wraps any transcription failure: network
	// error, empty result, or unsupported format. The client does not
	// retry; retry policy belongs to the call engine's fallback path.
	ErrTranscriptionFailed = errors.New("transcription failed")

	// ErrSynthesisFailed wraps any remote voice-synthesis failure. The
	// playback layer falls back to the on-device synthesizer on it.
	ErrSynthesisFailed = errors.New("speech synthesis failed")
)

// Service is the stateless facade over the remote speech API.
type Service struct {
	config    *speech.SpeechConfig
	asrClient *ASRClient
	ttsClient *TTSClient
}

// NewService creates the speech service from one shared configuration.
func NewService(config *speech.SpeechConfig) *Service {
	return &Service{
		config:    config,
		asrClient: NewASRClient(config),
		ttsClient: NewTTSClient(config),
	}
}

// TranscribeAudio converts one recording artifact to text.
func (s *Service) TranscribeAudio(ctx context.Context, req *speech.ASRRequest) (*speech.ASRResponse, error) {
	return s.asrClient.Transcribe(ctx, req)
}

// SynthesizeSpeech converts reply text to audio bytes.
func (s *Service) SynthesizeSpeech(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error) {
	return s.ttsClient.Synthesize(ctx, req)
}

// TranscribeBuffer transcribes a byte slice directly.
func (s *Service) TranscribeBuffer(ctx context.Context, callID string, audioData []byte, format, language string) (*speech.ASRResponse, error) {
	req := &speech.ASRRequest{
		CallID:    callID,
		AudioData: bytes.NewReader(audioData),
		Format:    format,
		Language:  language,
	}

	return s.TranscribeAudio(ctx, req)
}

// SynthesizeToBuffer synthesizes text with the configured default voice.
func (s *Service) SynthesizeToBuffer(ctx context.Context, callID, text, voice string) (*speech.TTSResponse, error) {
	req := &speech.TTSRequest{
		CallID: callID,
		Text:   text,
		Voice:  voice,
		Speed:  s.config.TTSSpeed,
		Format: s.config.TTSFormat,
	}

	return s.SynthesizeSpeech(ctx, req)
}
