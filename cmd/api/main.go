package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/medicura/medicura/backend/internal/config"
	"github.com/medicura/medicura/backend/internal/handler"
	callHandler "github.com/medicura/medicura/backend/internal/handler/call"
	callModel "github.com/medicura/medicura/backend/internal/model/call"
	speechModel "github.com/medicura/medicura/backend/internal/model/speech"
	"github.com/medicura/medicura/backend/internal/service/ai"
	callService "github.com/medicura/medicura/backend/internal/service/call"
	"github.com/medicura/medicura/backend/internal/service/capture"
	"github.com/medicura/medicura/backend/internal/service/playback"
	"github.com/medicura/medicura/backend/internal/service/speech"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Initialize AI service
	var aiService *ai.Service
	if cfg.AI.Enabled() {
		aiService, err = ai.NewService(ctx, cfg.AI)
		if err != nil {
			log.Printf("warning: failed to initialize AI service: %v", err)
			log.Println("continuing without AI reasoning, calls will use the fallback reply")
		} else {
			log.Println("AI service initialized successfully")
		}
	} else {
		log.Println("Ark credentials not configured, skipping AI initialization")
	}

	// Initialize Speech service
	var speechService *speech.Service
	if cfg.Speech.Enabled {
		speechConfig := &speechModel.SpeechConfig{
			APIKey:      cfg.Speech.APIKey,
			BaseURL:     cfg.Speech.BaseURL,
			ASRModel:    cfg.Speech.ASRModel,
			ASRLanguage: cfg.Speech.ASRLanguage,
			TTSModel:    cfg.Speech.TTSModel,
			TTSVoice:    cfg.Speech.TTSVoice,
			TTSSpeed:    cfg.Speech.TTSSpeed,
			TTSFormat:   cfg.Speech.TTSFormat,
			Timeout:     cfg.Speech.Timeout,
		}
		speechService = speech.NewService(speechConfig)
		log.Println("Speech service initialized successfully")
	} else {
		log.Println("Speech credentials not configured, remote transcription and synthesis disabled")
	}

	hub := callHandler.NewHub()
	registry := callService.NewRegistry(newEngineFactory(cfg, hub, aiService, speechService))
	defer registry.Shutdown(context.Background())

	router := handler.NewRouter(registry, hub)

	startServer(ctx, cfg.Server, router)
}

// newEngineFactory binds the per-call device gateway and the shared
// services into one session engine.
func newEngineFactory(cfg *config.Config, hub *callHandler.Hub, aiService *ai.Service, speechService *speech.Service) callService.EngineFactory {
	engineCfg := callService.Config{
		ConnectDelay: cfg.Call.ConnectDelay,
		Greeting:     cfg.Call.Greeting,
		Language:     cfg.Speech.ASRLanguage,
	}

	return func(id string) *callService.Engine {
		gateway := hub.Create(id)
		recorder := capture.NewRecorder(gateway)

		var synth playback.Synthesizer
		var transcriber callService.Transcriber
		if speechService != nil {
			synth = speechService
			transcriber = speechService
		} else {
			transcriber = unavailableTranscriber{}
		}

		var reasoner callService.Reasoner
		if aiService != nil {
			reasoner = aiService
		} else {
			reasoner = unavailableReasoner{}
		}

		player := playback.NewPlayer(synth, gateway, gateway, cfg.Speech.TTSVoice)

		return callService.NewEngine(id, engineCfg,
			callService.NewMicrophone(recorder),
			transcriber,
			reasoner,
			callService.NewSpeaker(player))
	}
}

// unavailableTranscriber reports the missing speech credentials. The
// engine absorbs the error through its fallback turn.
type unavailableTranscriber struct{}

func (unavailableTranscriber) TranscribeBuffer(context.Context, string, []byte, string, string) (*speechModel.ASRResponse, error) {
	return nil, speech.ErrTranscriptionFailed
}

// unavailableReasoner does the same for the missing chat model.
type unavailableReasoner struct{}

func (unavailableReasoner) GenerateResponse(context.Context, string, []callModel.Turn, string) (string, error) {
	return "", ai.ErrReasoningFailed
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("MediCura call backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
