package call

import "time"

// State enumerates the call session lifecycle. The engine switches on it
// exhaustively; independent boolean flags are deliberately absent.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateAwaitingGreetingPlayback
	StateListening
	StateProcessing
	StateSpeaking
	StateEnded
)

// String returns the wire name used in websocket and REST payloads.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateAwaitingGreetingPlayback:
		return "awaiting_greeting_playback"
	case StateListening:
		return "listening"
	case StateProcessing:
		return "processing"
	case StateSpeaking:
		return "speaking"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Session is the read-only snapshot handed to the transport layer.
// The engine owns the live aggregate; callers never mutate this copy.
type Session struct {
	ID           string    `json:"id"`
	State        string    `json:"state"`
	StartedAt    time.Time `json:"startedAt"`
	ElapsedMs    int64     `json:"elapsedMs"`
	Turns        []Turn    `json:"turns"`
	Transcript   string    `json:"transcript,omitempty"`
	ResponseText string    `json:"responseText,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}
