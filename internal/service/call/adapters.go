package call

import (
	"context"

	"github.com/medicura/medicura/backend/internal/service/capture"
	"github.com/medicura/medicura/backend/internal/service/playback"
)

// recorderMicrophone adapts a capture.Recorder to the engine's
// Microphone interface.
type recorderMicrophone struct {
	recorder *capture.Recorder
}

// NewMicrophone wraps a recorder for use by the engine.
func NewMicrophone(recorder *capture.Recorder) Microphone {
	return recorderMicrophone{recorder: recorder}
}

func (m recorderMicrophone) Acquire(ctx context.Context) (Recording, error) {
	handle, err := m.recorder.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return handle, nil
}

func (m recorderMicrophone) Stop(rec Recording) (*capture.Artifact, error) {
	return m.recorder.Stop(rec.(*capture.Handle))
}

func (m recorderMicrophone) Abort(rec Recording) {
	if handle, ok := rec.(*capture.Handle); ok {
		m.recorder.Abort(handle)
	}
}

// playerSpeaker adapts a playback.Player to the engine's Speaker
// interface.
type playerSpeaker struct {
	player *playback.Player
}

// NewSpeaker wraps a player for use by the engine.
func NewSpeaker(player *playback.Player) Speaker {
	return playerSpeaker{player: player}
}

func (s playerSpeaker) Speak(ctx context.Context, callID, text string) (<-chan playback.Event, error) {
	ticket, err := s.player.Speak(ctx, callID, text)
	if err != nil {
		return nil, err
	}
	return ticket.Events(), nil
}

func (s playerSpeaker) Cancel() {
	s.player.Cancel()
}
