package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	speechmodel "github.com/medicura/medicura/backend/internal/model/speech"
)

// supportedASRFormats lists the recording formats the remote API accepts.
var supportedASRFormats = map[string]struct{}{
	"wav":  {},
	"mp3":  {},
	"m4a":  {},
	"webm": {},
	"ogg":  {},
	"flac": {},
}

// ASRClient calls the remote transcription endpoint.
type ASRClient struct {
	config *speechmodel.SpeechConfig
	client *http.Client
}

type asrServerResponse struct {
	Text string `json:"text"`
}

type asrServerError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// NewASRClient creates a transcription client.
func NewASRClient(config *speechmodel.SpeechConfig) *ASRClient {
	timeout := 30 * time.Second
	if config != nil && config.Timeout > 0 {
		timeout = time.Duration(config.Timeout) * time.Second
	}

	return &ASRClient{
		config: config,
		client: &http.Client{Timeout: timeout},
	}
}

// Transcribe sends one recording artifact and returns its transcript.
// No retry here: a failed turn is recovered by the call engine.
func (c *ASRClient) Transcribe(ctx context.Context, req *speechmodel.ASRRequest) (*speechmodel.ASRResponse, error) {
	apiKey, baseURL, err := resolveCredentials(c.config)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}

	format := strings.ToLower(strings.TrimSpace(req.Format))
	if format == "" {
		format = "wav"
	}
	if _, ok := supportedASRFormats[format]; !ok {
		return nil, fmt.Errorf("%w: unsupported audio format %q", ErrTranscriptionFailed, req.Format)
	}

	requestID := uuid.NewString()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "recording."+format)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrTranscriptionFailed, err)
	}
	if _, err := io.Copy(part, req.AudioData); err != nil {
		return nil, fmt.Errorf("%w: read audio: %v", ErrTranscriptionFailed, err)
	}
	if err := writer.WriteField("model", c.config.ASRModel); err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrTranscriptionFailed, err)
	}
	if req.Language != "" {
		if err := writer.WriteField("language", req.Language); err != nil {
			return nil, fmt.Errorf("%w: build request: %v", ErrTranscriptionFailed, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrTranscriptionFailed, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/audio/transcriptions", body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrTranscriptionFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr asrServerError
		if json.Unmarshal(payload, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("%w: %s (status %d)", ErrTranscriptionFailed, apiErr.Error.Message, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: status %d", ErrTranscriptionFailed, resp.StatusCode)
	}

	var result asrServerResponse
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrTranscriptionFailed, err)
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty transcription result", ErrTranscriptionFailed)
	}

	log.Printf("[speech] ASR done call=%s chars=%d took=%s", req.CallID, len(text), time.Since(start).Round(time.Millisecond))

	return &speechmodel.ASRResponse{
		CallID:    req.CallID,
		Text:      text,
		RequestID: requestID,
		CreatedAt: time.Now(),
	}, nil
}
