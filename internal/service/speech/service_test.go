package speech

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	speechmodel "github.com/medicura/medicura/backend/internal/model/speech"
)

func testConfig(baseURL string) *speechmodel.SpeechConfig {
	return &speechmodel.SpeechConfig{
		APIKey:      "test-key",
		BaseURL:     baseURL,
		ASRModel:    "whisper-1",
		ASRLanguage: "en",
		TTSModel:    "tts-1",
		TTSVoice:    "onyx",
		TTSSpeed:    1.0,
		TTSFormat:   "mp3",
		Timeout:     5,
	}
}

func TestTranscribeBuffer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart err: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("unexpected model: %s", got)
		}
		json.NewEncoder(w).Encode(map[string]string{"text": "chest pain"})
	}))
	defer srv.Close()

	svc := NewService(testConfig(srv.URL))

	resp, err := svc.TranscribeBuffer(context.Background(), "call-1", []byte("audio"), "wav", "en")
	if err != nil {
		t.Fatalf("TranscribeBuffer err: %v", err)
	}
	if resp.Text != "chest pain" {
		t.Fatalf("unexpected text: %q", resp.Text)
	}
	if resp.CallID != "call-1" {
		t.Fatalf("unexpected call id: %s", resp.CallID)
	}
}

func TestTranscribeEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"text": "  "})
	}))
	defer srv.Close()

	svc := NewService(testConfig(srv.URL))

	_, err := svc.TranscribeBuffer(context.Background(), "call-1", []byte("audio"), "wav", "en")
	if !errors.Is(err, ErrTranscriptionFailed) {
		t.Fatalf("expected ErrTranscriptionFailed, got %v", err)
	}
}

func TestTranscribeUnsupportedFormat(t *testing.T) {
	svc := NewService(testConfig("http://127.0.0.1:1"))

	_, err := svc.TranscribeBuffer(context.Background(), "call-1", []byte("audio"), "aiff", "en")
	if !errors.Is(err, ErrTranscriptionFailed) {
		t.Fatalf("expected ErrTranscriptionFailed, got %v", err)
	}
}

func TestTranscribeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"message": "upstream down"}})
	}))
	defer srv.Close()

	svc := NewService(testConfig(srv.URL))

	_, err := svc.TranscribeBuffer(context.Background(), "call-1", []byte("audio"), "wav", "en")
	if !errors.Is(err, ErrTranscriptionFailed) {
		t.Fatalf("expected ErrTranscriptionFailed, got %v", err)
	}
}

func TestSynthesizeToBuffer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/speech" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req ttsServerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request err: %v", err)
		}
		if req.Voice != "onyx" {
			t.Errorf("unexpected voice: %s", req.Voice)
		}
		if req.Input != "stay calm" {
			t.Errorf("unexpected input: %s", req.Input)
		}
		w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	svc := NewService(testConfig(srv.URL))

	resp, err := svc.SynthesizeToBuffer(context.Background(), "call-1", "stay calm", "")
	if err != nil {
		t.Fatalf("SynthesizeToBuffer err: %v", err)
	}
	if string(resp.AudioData) != "mp3-bytes" {
		t.Fatalf("unexpected audio: %q", resp.AudioData)
	}
	if resp.Format != "mp3" {
		t.Fatalf("unexpected format: %s", resp.Format)
	}
}

func TestSynthesizeEmptyText(t *testing.T) {
	svc := NewService(testConfig("http://127.0.0.1:1"))

	_, err := svc.SynthesizeToBuffer(context.Background(), "call-1", "   ", "")
	if !errors.Is(err, ErrSynthesisFailed) {
		t.Fatalf("expected ErrSynthesisFailed, got %v", err)
	}
}

func TestSynthesizeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	svc := NewService(testConfig(srv.URL))

	_, err := svc.SynthesizeToBuffer(context.Background(), "call-1", "stay calm", "")
	if !errors.Is(err, ErrSynthesisFailed) {
		t.Fatalf("expected ErrSynthesisFailed, got %v", err)
	}
}
