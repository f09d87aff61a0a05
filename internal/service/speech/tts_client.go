package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	speechmodel "github.com/medicura/medicura/backend/internal/model/speech"
)

// TTSClient calls the remote voice-synthesis endpoint.
type TTSClient struct {
	config *speechmodel.SpeechConfig
	client *http.Client
}

type ttsServerRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	Speed          float32 `json:"speed,omitempty"`
	ResponseFormat string  `json:"response_format,omitempty"`
}

// NewTTSClient creates a synthesis client.
func NewTTSClient(config *speechmodel.SpeechConfig) *TTSClient {
	timeout := 30 * time.Second
	if config != nil && config.Timeout > 0 {
		timeout = time.Duration(config.Timeout) * time.Second
	}

	return &TTSClient{
		config: config,
		client: &http.Client{Timeout: timeout},
	}
}

// Synthesize converts text into audio bytes in the requested format.
func (c *TTSClient) Synthesize(ctx context.Context, req *speechmodel.TTSRequest) (*speechmodel.TTSResponse, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("%w: text is empty", ErrSynthesisFailed)
	}

	apiKey, baseURL, err := resolveCredentials(c.config)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}

	voice := strings.TrimSpace(req.Voice)
	if voice == "" {
		voice = c.config.TTSVoice
	}

	format := strings.TrimSpace(req.Format)
	if format == "" {
		format = "mp3"
	}

	payload := ttsServerRequest{
		Model:          c.config.TTSModel,
		Input:          req.Text,
		Voice:          voice,
		Speed:          req.Speed,
		ResponseFormat: format,
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrSynthesisFailed, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/audio/speech", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("%w: status %d: %s", ErrSynthesisFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read audio: %v", ErrSynthesisFailed, err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: empty audio response", ErrSynthesisFailed)
	}

	log.Printf("[speech] TTS done call=%s voice=%s bytes=%d took=%s", req.CallID, voice, len(audio), time.Since(start).Round(time.Millisecond))

	return &speechmodel.TTSResponse{
		CallID:    req.CallID,
		AudioData: audio,
		Format:    format,
		RequestID: uuid.NewString(),
		CreatedAt: time.Now(),
	}, nil
}
