package call

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	callmodel "github.com/medicura/medicura/backend/internal/model/call"
	speechmodel "github.com/medicura/medicura/backend/internal/model/speech"
	callsvc "github.com/medicura/medicura/backend/internal/service/call"
	"github.com/medicura/medicura/backend/internal/service/capture"
	"github.com/medicura/medicura/backend/internal/service/playback"
)

type scriptedTranscriber struct {
	text string
}

func (s *scriptedTranscriber) TranscribeBuffer(ctx context.Context, callID string, audio []byte, format, language string) (*speechmodel.ASRResponse, error) {
	return &speechmodel.ASRResponse{CallID: callID, Text: s.text}, nil
}

type scriptedReasoner struct {
	reply string
}

func (s *scriptedReasoner) GenerateResponse(ctx context.Context, callID string, history []callmodel.Turn, utterance string) (string, error) {
	return s.reply, nil
}

type scriptedSynth struct{}

func (scriptedSynth) SynthesizeToBuffer(ctx context.Context, callID, text, voice string) (*speechmodel.TTSResponse, error) {
	return &speechmodel.TTSResponse{CallID: callID, AudioData: []byte("mp3-bytes"), Format: "mp3"}, nil
}

// newTestRouter assembles the full call surface around the device
// gateway, mirroring the production wiring.
func newTestRouter() http.Handler {
	hub := NewHub()
	registry := callsvc.NewRegistry(func(id string) *callsvc.Engine {
		gateway := hub.Create(id)
		recorder := capture.NewRecorder(gateway)
		player := playback.NewPlayer(scriptedSynth{}, gateway, gateway, "onyx")
		return callsvc.NewEngine(id, callsvc.Config{ConnectDelay: 0},
			callsvc.NewMicrophone(recorder),
			&scriptedTranscriber{text: "I have chest pain"},
			&scriptedReasoner{reply: "Stay calm and sit down."},
			callsvc.NewSpeaker(player))
	})

	handler := New(registry, hub)
	r := chi.NewRouter()
	r.Route("/api", func(api chi.Router) {
		handler.RegisterRoutes(api)
	})
	return r
}

func createCall(t *testing.T, router http.Handler) string {
	t.Helper()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/calls", nil))
	if rr.Code != http.StatusCreated {
		t.Fatalf("unexpected create status: %d", rr.Code)
	}

	var created struct {
		ID    string `json:"id"`
		State string `json:"state"`
		WsURL string `json:"wsUrl"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.State != "idle" {
		t.Fatalf("expected idle state, got %s", created.State)
	}
	if !strings.HasPrefix(created.ID, "call_") {
		t.Fatalf("unexpected call id: %s", created.ID)
	}
	if created.WsURL != "/api/calls/"+created.ID+"/ws" {
		t.Fatalf("unexpected ws url: %s", created.WsURL)
	}
	return created.ID
}

func getSnapshot(t *testing.T, router http.Handler, id string) callmodel.Session {
	t.Helper()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/calls/"+id, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected snapshot status: %d", rr.Code)
	}

	var snap callmodel.Session
	if err := json.NewDecoder(rr.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	return snap
}

func awaitCallState(t *testing.T, router http.Handler, id, want string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if getSnapshot(t, router, id).State == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("call %s never reached state %s (now %s)", id, want, getSnapshot(t, router, id).State)
}

func TestCreateAndGetCall(t *testing.T) {
	router := newTestRouter()
	id := createCall(t, router)

	snap := getSnapshot(t, router, id)
	if snap.ID != id {
		t.Fatalf("expected id %s, got %s", id, snap.ID)
	}
	if len(snap.Turns) != 0 {
		t.Fatalf("expected empty history, got %d turns", len(snap.Turns))
	}
}

func TestGetUnknownCall(t *testing.T) {
	router := newTestRouter()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/calls/call_missing", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
}

func TestPrimaryActionStartsCall(t *testing.T) {
	router := newTestRouter()
	id := createCall(t, router)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/calls/"+id+"/primary", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected primary status: %d", rr.Code)
	}

	// Headless device: greeting playback and mic permission resolve
	// immediately, so the call settles into listening.
	awaitCallState(t, router, id, "listening")

	snap := getSnapshot(t, router, id)
	if len(snap.Turns) != 1 || snap.Turns[0].Role != callmodel.RoleAssistant {
		t.Fatalf("expected greeting turn, got %+v", snap.Turns)
	}
}

func TestStopListeningRunsTurn(t *testing.T) {
	router := newTestRouter()
	id := createCall(t, router)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/calls/"+id+"/primary", nil))
	awaitCallState(t, router, id, "listening")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/calls/"+id+"/stop-listening", nil))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("unexpected stop-listening status: %d", rr.Code)
	}

	awaitCallState(t, router, id, "listening")

	// No audio arrived, so the turn completed via the fallback pair.
	snap := getSnapshot(t, router, id)
	if len(snap.Turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(snap.Turns))
	}
	if snap.Turns[1].Text != callsvc.FallbackTranscript {
		t.Fatalf("unexpected transcript turn: %q", snap.Turns[1].Text)
	}
}

func TestStopListeningConflict(t *testing.T) {
	router := newTestRouter()
	id := createCall(t, router)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/calls/"+id+"/stop-listening", nil))
	if rr.Code != http.StatusConflict {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
}

func TestEndCall(t *testing.T) {
	router := newTestRouter()
	id := createCall(t, router)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/calls/"+id+"/primary", nil))
	awaitCallState(t, router, id, "listening")

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/calls/"+id+"/end", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("unexpected end status on attempt %d: %d", i+1, rr.Code)
		}
	}

	snap := getSnapshot(t, router, id)
	if snap.State != "ended" {
		t.Fatalf("expected ended state, got %s", snap.State)
	}
	if len(snap.Turns) != 0 {
		t.Fatalf("expected cleared history, got %d turns", len(snap.Turns))
	}
}

func TestCreateEvictsPreviousCall(t *testing.T) {
	router := newTestRouter()
	first := createCall(t, router)
	_ = createCall(t, router)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/calls/"+first, nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected evicted call to be gone, got %d", rr.Code)
	}
}

func TestElapsedStream(t *testing.T) {
	router := newTestRouter()
	id := createCall(t, router)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/calls/"+id+"/elapsed", nil).WithContext(ctx)
	router.ServeHTTP(rr, req)

	if ct := rr.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type: %s", ct)
	}
	if body := rr.Body.String(); !strings.Contains(body, "elapsedMs") {
		t.Fatalf("expected elapsed payload, got: %s", body)
	}
}

func TestHealth(t *testing.T) {
	router := newTestRouter()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/calls/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
}
