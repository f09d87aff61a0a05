package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/medicura/medicura/backend/internal/config"
	speechmodel "github.com/medicura/medicura/backend/internal/model/speech"
	"github.com/medicura/medicura/backend/internal/service/ai"
	"github.com/medicura/medicura/backend/internal/service/speech"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] could not load .env, using system environment: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	mode := flag.String("mode", "", "test mode: asr, tts, or turn")
	audioPath := flag.String("audio", "", "input audio file path (asr, turn)")
	text := flag.String("text", "", "input text (tts)")
	outputPath := flag.String("out", "", "output audio file path (tts, turn; default is generated)")
	format := flag.String("format", "", "audio format (asr: input format; tts: output format)")
	language := flag.String("lang", "", "language code, defaults to the configured ASR language")
	voice := flag.String("voice", "", "voice id, defaults to the configured TTS voice")
	callID := flag.String("call", "", "call id, generated when empty")
	timeout := flag.Duration("timeout", 45*time.Second, "request timeout")

	flag.Parse()

	if *mode != "asr" && *mode != "tts" && *mode != "turn" {
		flag.Usage()
		log.Fatal("pick a mode with -mode=asr, -mode=tts, or -mode=turn")
	}

	if !cfg.Speech.Enabled {
		log.Fatal("speech service not configured, set SPEECH_API_KEY or OPENAI_API_KEY first")
	}

	id := *callID
	if id == "" {
		id = fmt.Sprintf("manual-%d", time.Now().UnixNano())
	}

	svc := speech.NewService(&speechmodel.SpeechConfig{
		APIKey:      cfg.Speech.APIKey,
		BaseURL:     cfg.Speech.BaseURL,
		ASRModel:    cfg.Speech.ASRModel,
		ASRLanguage: cfg.Speech.ASRLanguage,
		TTSModel:    cfg.Speech.TTSModel,
		TTSVoice:    cfg.Speech.TTSVoice,
		TTSSpeed:    cfg.Speech.TTSSpeed,
		TTSFormat:   cfg.Speech.TTSFormat,
		Timeout:     cfg.Speech.Timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch *mode {
	case "asr":
		runASR(ctx, svc, cfg, id, *audioPath, *format, *language)
	case "tts":
		runTTS(ctx, svc, cfg, id, *text, *voice, *format, *outputPath)
	case "turn":
		runTurn(ctx, svc, cfg, id, *audioPath, *format, *language, *voice, *outputPath)
	}
}

func runASR(ctx context.Context, svc *speech.Service, cfg *config.Config, callID, audioPath, format, language string) {
	text := transcribeFile(ctx, svc, cfg, callID, audioPath, format, language)
	log.Printf("ASR succeeded: text=%q", text)
}

func runTTS(ctx context.Context, svc *speech.Service, cfg *config.Config, callID, text, voice, format, outputPath string) {
	if strings.TrimSpace(text) == "" {
		log.Fatal("tts mode needs -text")
	}
	synthesizeToFile(ctx, svc, cfg, callID, text, voice, format, outputPath)
}

// runTurn drives one full call turn offline: audio file in, transcript,
// assistant reply, synthesized reply audio out.
func runTurn(ctx context.Context, svc *speech.Service, cfg *config.Config, callID, audioPath, format, language, voice, outputPath string) {
	if !cfg.AI.Enabled() {
		log.Fatal("turn mode needs the Ark reasoning credentials")
	}

	aiSvc, err := ai.NewService(ctx, cfg.AI)
	if err != nil {
		log.Fatalf("failed to initialize AI service: %v", err)
	}

	transcript := transcribeFile(ctx, svc, cfg, callID, audioPath, format, language)
	log.Printf("caller: %q", transcript)

	reply, err := aiSvc.GenerateResponse(ctx, callID, nil, transcript)
	if err != nil {
		log.Fatalf("reasoning failed: %v", err)
	}
	log.Printf("assistant: %q", reply)

	synthesizeToFile(ctx, svc, cfg, callID, reply, voice, "", outputPath)
}

func transcribeFile(ctx context.Context, svc *speech.Service, cfg *config.Config, callID, audioPath, format, language string) string {
	if audioPath == "" {
		log.Fatal("this mode needs -audio")
	}

	file, err := os.Open(audioPath)
	if err != nil {
		log.Fatalf("failed to open audio file: %v", err)
	}
	defer file.Close()

	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(audioPath)), ".")
		if format == "" {
			format = "wav"
		}
	}

	if language == "" {
		language = cfg.Speech.ASRLanguage
	}

	req := &speechmodel.ASRRequest{
		CallID:    callID,
		AudioData: file,
		Format:    format,
		Language:  language,
	}

	log.Printf("transcribing: call=%s format=%s language=%s", callID, format, language)

	resp, err := svc.TranscribeAudio(ctx, req)
	if err != nil {
		log.Fatalf("ASR request failed: %v", err)
	}
	return resp.Text
}

func synthesizeToFile(ctx context.Context, svc *speech.Service, cfg *config.Config, callID, text, voice, format, outputPath string) {
	if voice == "" {
		voice = cfg.Speech.TTSVoice
	}
	if format == "" {
		format = cfg.Speech.TTSFormat
	}
	if outputPath == "" {
		outputPath = fmt.Sprintf("tts-output-%d.%s", time.Now().Unix(), format)
	}

	req := &speechmodel.TTSRequest{
		CallID: callID,
		Text:   text,
		Voice:  voice,
		Speed:  cfg.Speech.TTSSpeed,
		Format: format,
	}

	log.Printf("synthesizing: call=%s voice=%s format=%s", callID, voice, format)

	resp, err := svc.SynthesizeSpeech(ctx, req)
	if err != nil {
		log.Fatalf("TTS request failed: %v", err)
	}

	if err := os.WriteFile(outputPath, resp.AudioData, 0o644); err != nil {
		log.Fatalf("failed to write audio file: %v", err)
	}

	log.Printf("TTS succeeded: wrote %s (%d bytes)", outputPath, len(resp.AudioData))
}
