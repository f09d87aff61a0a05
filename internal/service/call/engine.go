package call

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	callmodel "github.com/medicura/medicura/backend/internal/model/call"
	speechmodel "github.com/medicura/medicura/backend/internal/model/speech"
	"github.com/medicura/medicura/backend/internal/service/capture"
	"github.com/medicura/medicura/backend/internal/service/playback"
)

var (
	// ErrNotIdle means Start was invoked on a session already past Idle.
	ErrNotIdle = errors.New("call already started")

	// ErrNotListening means StopListening arrived outside the Listening
	// state; the primary-action button treats this as a no-op.
	ErrNotListening = errors.New("call is not listening")
)

// DefaultGreeting opens every call when no override is configured.
const DefaultGreeting = "Emergency assistance, this is Dr. Careo. I'm here with you. Tell me what's happening."

// Canned turn pair substituted when transcription or reasoning fails,
// so a remote fault never strands the caller mid-conversation.
const (
	FallbackTranscript = "I need help, I'm not feeling well."
	FallbackReply      = "I'm having trouble hearing you clearly. Please stay calm and stay on the line. If someone is with you, ask them to stay close. Can you tell me again what's happening?"
)

// Recording is the capture handle the engine owns while Listening.
type Recording interface {
	ID() string
	Write(chunk []byte) (int, error)
	SetFormat(format string)
}

// Microphone acquires and releases the capture device.
type Microphone interface {
	Acquire(ctx context.Context) (Recording, error)
	Stop(rec Recording) (*capture.Artifact, error)
	Abort(rec Recording)
}

// Transcriber converts a finished recording to text.
type Transcriber interface {
	TranscribeBuffer(ctx context.Context, callID string, audio []byte, format, language string) (*speechmodel.ASRResponse, error)
}

// Reasoner produces the assistant reply from history plus the newest
// utterance.
type Reasoner interface {
	GenerateResponse(ctx context.Context, callID string, history []callmodel.Turn, utterance string) (string, error)
}

// Speaker plays reply text and reports exactly one terminal event.
type Speaker interface {
	Speak(ctx context.Context, callID, text string) (<-chan playback.Event, error)
	Cancel()
}

// EventKind tags engine notifications to the transport layer.
type EventKind int

const (
	EventStateChanged EventKind = iota
	EventTranscript
	EventResponse
	EventError
)

// Event is one observation pushed to subscribers.
type Event struct {
	Kind  EventKind
	State callmodel.State
	Text  string
}

// Config tunes one call session.
type Config struct {
	ConnectDelay time.Duration
	Greeting     string
	Language     string
}

// Engine is the call session state machine. It owns the conversation
// history and drives Capture → Transcription → Reasoning → Playback
// turns until the call ends. All transitions go through the mutex; every
// asynchronous continuation carries the generation it was started under
// and is discarded when the generation has moved on.
type Engine struct {
	id          string
	cfg         Config
	mic         Microphone
	transcriber Transcriber
	reasoner    Reasoner
	speaker     Speaker
	timer       *Timer

	mu           sync.Mutex
	state        callmodel.State
	generation   uint64
	history      []callmodel.Turn
	seq          int
	startedAt    time.Time
	createdAt    time.Time
	recording    Recording
	transcript   string
	responseText string
	ctx          context.Context
	cancel       context.CancelFunc

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

// NewEngine assembles a session in the Idle state.
func NewEngine(id string, cfg Config, mic Microphone, transcriber Transcriber, reasoner Reasoner, speaker Speaker) *Engine {
	if cfg.Greeting == "" {
		cfg.Greeting = DefaultGreeting
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	return &Engine{
		id:          id,
		cfg:         cfg,
		mic:         mic,
		transcriber: transcriber,
		reasoner:    reasoner,
		speaker:     speaker,
		timer:       NewTimer(),
		state:       callmodel.StateIdle,
		createdAt:   time.Now(),
		subs:        map[int]chan Event{},
	}
}

// ID returns the call identifier.
func (e *Engine) ID() string { return e.id }

// State returns the current session state.
func (e *Engine) State() callmodel.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Elapsed returns the wall-clock call duration.
func (e *Engine) Elapsed() time.Duration { return e.timer.Elapsed() }

// Subscribe registers an observer. The returned cancel func must be
// called to release it. Slow observers lose events rather than block
// the state machine.
func (e *Engine) Subscribe() (<-chan Event, func()) {
	e.subMu.Lock()
	defer e.subMu.Unlock()

	id := e.nextSub
	e.nextSub++
	ch := make(chan Event, 32)
	e.subs[id] = ch

	return ch, func() {
		e.subMu.Lock()
		defer e.subMu.Unlock()
		if _, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(ch)
		}
	}
}

func (e *Engine) publish(ev Event) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (e *Engine) setStateLocked(s callmodel.State) {
	if e.state == s {
		return
	}
	log.Printf("[call] %s: %s -> %s", e.id, e.state, s)
	e.state = s
	e.publish(Event{Kind: EventStateChanged, State: s})
}

// Start begins the call: Idle → Connecting, then after the simulated
// connect delay the greeting is appended and played.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.state != callmodel.StateIdle {
		e.mu.Unlock()
		return ErrNotIdle
	}

	e.generation++
	gen := e.generation
	e.history = nil
	e.seq = 0
	e.transcript = ""
	e.responseText = ""
	e.startedAt = time.Now()
	e.timer.Start(e.startedAt)
	e.ctx, e.cancel = context.WithCancel(context.WithoutCancel(ctx))
	sessionCtx := e.ctx
	delay := e.cfg.ConnectDelay
	e.setStateLocked(callmodel.StateConnecting)
	e.mu.Unlock()

	go func() {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-sessionCtx.Done():
				return
			}
		}
		e.onConnected(gen)
	}()

	return nil
}

func (e *Engine) onConnected(gen uint64) {
	e.mu.Lock()
	if gen != e.generation || e.state != callmodel.StateConnecting {
		e.mu.Unlock()
		return
	}

	greeting := e.cfg.Greeting
	e.appendTurnLocked(callmodel.RoleAssistant, greeting)
	e.responseText = greeting
	e.setStateLocked(callmodel.StateAwaitingGreetingPlayback)
	e.publish(Event{Kind: EventResponse, State: e.state, Text: greeting})
	e.startSpeakingLocked(gen, greeting)
	e.mu.Unlock()
}

// startSpeakingLocked hands text to the speaker and watches its event
// stream. Callers hold the engine mutex.
func (e *Engine) startSpeakingLocked(gen uint64, text string) {
	events, err := e.speaker.Speak(e.ctx, e.id, text)
	if err != nil {
		// The speaker never plays two things at once under the
		// single-flight rule; a refusal here means playback is
		// unavailable, so resume listening rather than stall.
		log.Printf("[call] %s: speak refused: %v", e.id, err)
		go e.onPlaybackFinished(gen, playback.Event{Kind: playback.EventFailed, Err: err})
		return
	}

	go func() {
		for ev := range events {
			switch ev.Kind {
			case playback.EventStarted:
				e.onPlaybackStarted(gen)
			case playback.EventCompleted, playback.EventFailed:
				e.onPlaybackFinished(gen, ev)
				return
			}
		}
		// Channel closed without a terminal event; treat as finished so
		// the call is never stuck in Speaking.
		e.onPlaybackFinished(gen, playback.Event{Kind: playback.EventFailed})
	}()
}

func (e *Engine) onPlaybackStarted(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.generation {
		return
	}
	if e.state == callmodel.StateAwaitingGreetingPlayback {
		e.setStateLocked(callmodel.StateSpeaking)
	}
}

func (e *Engine) onPlaybackFinished(gen uint64, ev playback.Event) {
	e.mu.Lock()
	if gen != e.generation {
		e.mu.Unlock()
		return
	}
	switch e.state {
	case callmodel.StateAwaitingGreetingPlayback, callmodel.StateSpeaking:
	default:
		e.mu.Unlock()
		return
	}
	if ev.Kind == playback.EventFailed && ev.Err != nil {
		log.Printf("[call] %s: playback failed, resuming listening: %v", e.id, ev.Err)
	}
	sessionCtx := e.ctx
	e.mu.Unlock()

	// Acquiring the microphone may round-trip to the device for
	// permission, so it runs outside the lock.
	go func() {
		rec, err := e.mic.Acquire(sessionCtx)
		e.onMicrophoneAcquired(gen, rec, err)
	}()
}

func (e *Engine) onMicrophoneAcquired(gen uint64, rec Recording, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.generation {
		if rec != nil {
			e.mic.Abort(rec)
		}
		return
	}

	if err != nil {
		// Resource acquisition is the one terminal failure class: the
		// caller is told and the session returns to Idle.
		log.Printf("[call] %s: microphone acquisition failed: %v", e.id, err)
		e.publish(Event{Kind: EventError, State: e.state, Text: err.Error()})
		e.generation++
		if e.cancel != nil {
			e.cancel()
		}
		e.teardownLocked()
		e.setStateLocked(callmodel.StateIdle)
		return
	}

	e.recording = rec
	e.setStateLocked(callmodel.StateListening)
}

// WriteAudio feeds one captured audio chunk from the device. Chunks
// arriving outside Listening are dropped.
func (e *Engine) WriteAudio(chunk []byte, format string) {
	e.mu.Lock()
	rec := e.recording
	e.mu.Unlock()

	if rec == nil || len(chunk) == 0 {
		return
	}
	rec.SetFormat(format)
	if _, err := rec.Write(chunk); err != nil {
		log.Printf("[call] %s: dropped audio chunk: %v", e.id, err)
	}
}

// StopListening ends the caller's utterance and runs the
// transcription + reasoning pipeline. Also invoked when capture itself
// reports completion.
func (e *Engine) StopListening() error {
	e.mu.Lock()
	if e.state != callmodel.StateListening {
		e.mu.Unlock()
		return ErrNotListening
	}

	gen := e.generation
	rec := e.recording
	e.recording = nil
	e.setStateLocked(callmodel.StateProcessing)

	historySnapshot := make([]callmodel.Turn, len(e.history))
	copy(historySnapshot, e.history)
	sessionCtx := e.ctx
	e.mu.Unlock()

	go e.process(sessionCtx, gen, rec, historySnapshot)
	return nil
}

// process runs transcription then reasoning. Any failure substitutes
// the canned fallback pair so the conversational loop continues; the
// caller experience on a remote fault differs only in reply content.
func (e *Engine) process(ctx context.Context, gen uint64, rec Recording, history []callmodel.Turn) {
	transcript := FallbackTranscript
	reply := FallbackReply

	artifact, err := e.mic.Stop(rec)
	if err != nil {
		log.Printf("[call] %s: recording unusable, using fallback turn: %v", e.id, err)
		e.onProcessed(gen, transcript, reply)
		return
	}

	asr, err := e.transcriber.TranscribeBuffer(ctx, e.id, artifact.Data, artifact.Format, e.cfg.Language)
	if err != nil {
		log.Printf("[call] %s: transcription failed, using fallback turn: %v", e.id, err)
		e.onProcessed(gen, transcript, reply)
		return
	}

	answer, err := e.reasoner.GenerateResponse(ctx, e.id, history, asr.Text)
	if err != nil {
		log.Printf("[call] %s: reasoning failed, using fallback turn: %v", e.id, err)
		e.onProcessed(gen, transcript, reply)
		return
	}

	e.onProcessed(gen, asr.Text, answer)
}

func (e *Engine) onProcessed(gen uint64, transcript, reply string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.generation || e.state != callmodel.StateProcessing {
		return
	}

	e.appendTurnLocked(callmodel.RoleUser, transcript)
	e.appendTurnLocked(callmodel.RoleAssistant, reply)
	e.transcript = transcript
	e.responseText = reply
	e.publish(Event{Kind: EventTranscript, State: e.state, Text: transcript})
	e.publish(Event{Kind: EventResponse, State: e.state, Text: reply})
	e.setStateLocked(callmodel.StateSpeaking)
	e.startSpeakingLocked(gen, reply)
}

// End terminates the call from any state. Idempotent: every side effect
// runs regardless of the others, and a second End observes the same
// final state.
func (e *Engine) End() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.generation++
	if e.cancel != nil {
		e.cancel()
	}
	e.speaker.Cancel()
	e.teardownLocked()
	e.setStateLocked(callmodel.StateEnded)
}

// teardownLocked releases every held resource and clears conversation
// state. Callers hold the engine mutex.
func (e *Engine) teardownLocked() {
	if e.recording != nil {
		e.mic.Abort(e.recording)
		e.recording = nil
	}
	e.timer.Stop()
	e.history = nil
	e.seq = 0
	e.transcript = ""
	e.responseText = ""
}

// PrimaryAction dispatches the overloaded call button: Idle starts the
// call, Listening stops the utterance, anything else is a no-op.
func (e *Engine) PrimaryAction(ctx context.Context) error {
	switch e.State() {
	case callmodel.StateIdle:
		return e.Start(ctx)
	case callmodel.StateListening:
		return e.StopListening()
	default:
		return nil
	}
}

// Snapshot returns a read-only copy for the UI layer.
func (e *Engine) Snapshot() callmodel.Session {
	e.mu.Lock()
	defer e.mu.Unlock()

	turns := make([]callmodel.Turn, len(e.history))
	copy(turns, e.history)

	return callmodel.Session{
		ID:           e.id,
		State:        e.state.String(),
		StartedAt:    e.startedAt,
		ElapsedMs:    e.timer.Elapsed().Milliseconds(),
		Turns:        turns,
		Transcript:   e.transcript,
		ResponseText: e.responseText,
		CreatedAt:    e.createdAt,
	}
}

func (e *Engine) appendTurnLocked(role callmodel.Role, text string) {
	e.seq++
	e.history = append(e.history, callmodel.Turn{Role: role, Text: text, Sequence: e.seq})
}
