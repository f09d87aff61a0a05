package playback

import (
	"context"
	"errors"
	"log"
	"sync"

	speechmodel "github.com/medicura/medicura/backend/internal/model/speech"
)

// ErrPlaybackFailed means both the remote synthesis path and the
// on-device fallback failed. The call engine still resumes listening.
var ErrPlaybackFailed = errors.New("playback failed")

// errPlayerBusy guards the single-flight rule; the engine should make
// it unreachable.
var errPlayerBusy = errors.New("playback already active")

// EventKind tags playback lifecycle events.
type EventKind int

const (
	EventStarted EventKind = iota
	EventCompleted
	EventFailed
)

// Event is one playback lifecycle notification. Exactly one terminal
// event (Completed or Failed) is delivered per Speak call.
type Event struct {
	Kind EventKind
	Err  error
}

// Synthesizer produces audio for reply text. Satisfied by the speech
// service.
type Synthesizer interface {
	SynthesizeToBuffer(ctx context.Context, callID, text, voice string) (*speechmodel.TTSResponse, error)
}

// AudioSink plays synthesized audio on the device loudspeaker (never
// the earpiece) at full non-ducked volume, returning when playback ends.
type AudioSink interface {
	Play(ctx context.Context, callID string, audio []byte, format string) error
}

// LocalSynthesizer is the on-device fallback voice. Implementations
// report progress through the callback set.
type LocalSynthesizer interface {
	Speak(ctx context.Context, text string, voice LocalVoice, events LocalEvents)
}

// LocalEvents carries the fallback synthesizer callbacks. Any callback
// may be nil.
type LocalEvents struct {
	OnStart func()
	OnDone  func()
	OnError func(error)
}

// Ticket tracks one in-flight Speak call.
type Ticket struct {
	callID string
	events chan Event
	cancel context.CancelFunc

	mu       sync.Mutex
	finished bool
}

// Events delivers Started followed by exactly one terminal event, then
// closes.
func (t *Ticket) Events() <-chan Event { return t.events }

func (t *Ticket) emit(ev Event) {
	t.mu.Lock()
	if t.finished {
		t.mu.Unlock()
		return
	}
	if ev.Kind != EventStarted {
		t.finished = true
	}
	t.mu.Unlock()

	t.events <- ev
	if ev.Kind != EventStarted {
		close(t.events)
	}
}

// Player drives reply playback: remote synthesis first, on-device
// fallback second.
type Player struct {
	synth Synthesizer
	sink  AudioSink
	local LocalSynthesizer
	voice string

	mu     sync.Mutex
	active *Ticket
}

// NewPlayer wires the playback chain. synth may be nil when no remote
// speech credentials are configured; local may be nil when no fallback
// voice exists on the device.
func NewPlayer(synth Synthesizer, sink AudioSink, local LocalSynthesizer, voice string) *Player {
	return &Player{synth: synth, sink: sink, local: local, voice: voice}
}

// Speak starts playback of text and returns the ticket tracking it.
func (p *Player) Speak(ctx context.Context, callID, text string) (*Ticket, error) {
	p.mu.Lock()
	if p.active != nil {
		p.mu.Unlock()
		return nil, errPlayerBusy
	}

	ctx, cancel := context.WithCancel(ctx)
	ticket := &Ticket{
		callID: callID,
		events: make(chan Event, 3),
		cancel: cancel,
	}
	p.active = ticket
	p.mu.Unlock()

	go p.run(ctx, ticket, text)
	return ticket, nil
}

// Cancel stops any active playback immediately. Idempotent.
func (p *Player) Cancel() {
	p.mu.Lock()
	ticket := p.active
	p.mu.Unlock()

	if ticket != nil {
		ticket.cancel()
	}
}

// Active reports whether a playback is in flight.
func (p *Player) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active != nil
}

func (p *Player) run(ctx context.Context, ticket *Ticket, text string) {
	defer func() {
		ticket.cancel()
		p.mu.Lock()
		if p.active == ticket {
			p.active = nil
		}
		p.mu.Unlock()
	}()

	resp, err := p.synthesize(ctx, ticket.callID, text)
	if err == nil {
		ticket.emit(Event{Kind: EventStarted})
		if playErr := p.sink.Play(ctx, ticket.callID, resp.AudioData, resp.Format); playErr == nil {
			ticket.emit(Event{Kind: EventCompleted})
			return
		} else {
			err = playErr
		}
	}

	if ctx.Err() != nil {
		ticket.emit(Event{Kind: EventFailed, Err: ctx.Err()})
		return
	}

	log.Printf("[playback] remote path failed call=%s, using fallback voice: %v", ticket.callID, err)
	p.speakLocal(ctx, ticket, text, err)
}

func (p *Player) synthesize(ctx context.Context, callID, text string) (*speechmodel.TTSResponse, error) {
	if p.synth == nil {
		return nil, errors.New("remote synthesis not configured")
	}
	return p.synth.SynthesizeToBuffer(ctx, callID, text, p.voice)
}

func (p *Player) speakLocal(ctx context.Context, ticket *Ticket, text string, cause error) {
	if p.local == nil {
		ticket.emit(Event{Kind: EventFailed, Err: errors.Join(ErrPlaybackFailed, cause)})
		return
	}

	done := make(chan error, 1)
	p.local.Speak(ctx, text, CalmVoice(), LocalEvents{
		OnStart: func() { ticket.emit(Event{Kind: EventStarted}) },
		OnDone:  func() { done <- nil },
		OnError: func(err error) { done <- err },
	})

	select {
	case err := <-done:
		if err != nil {
			ticket.emit(Event{Kind: EventFailed, Err: errors.Join(ErrPlaybackFailed, err)})
			return
		}
		ticket.emit(Event{Kind: EventCompleted})
	case <-ctx.Done():
		ticket.emit(Event{Kind: EventFailed, Err: ctx.Err()})
	}
}
