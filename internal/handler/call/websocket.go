package call

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	callsvc "github.com/medicura/medicura/backend/internal/service/call"
	"github.com/medicura/medicura/backend/internal/service/capture"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type inboundMessage struct {
	Type      string          `json:"type"`
	CallID    string          `json:"callId"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	CallID    string      `json:"callId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// audioMessage carries one captured microphone chunk from the device.
type audioMessage struct {
	AudioData []byte `json:"audioData"`
	Format    string `json:"format"`
}

// permissionMessage answers a server permission-request.
type permissionMessage struct {
	RequestID string `json:"requestId"`
	Granted   bool   `json:"granted"`
}

// playbackDoneMessage acknowledges one audio or speak round-trip.
type playbackDoneMessage struct {
	RequestID string `json:"requestId"`
	Error     string `json:"error,omitempty"`
}

// handleWebSocket attaches the device to its call. The peer streams
// microphone audio, answers permission requests, plays pushed audio,
// and acknowledges playback; the server forwards every session event.
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.lookup(w, r)
	if !ok {
		return
	}

	gateway, ok := h.hub.Get(engine.ID())
	if !ok {
		http.Error(w, "call has no device slot", http.StatusConflict)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[websocket] device connected for call: %s", engine.ID())

	wsc := newWSConn(conn)
	gateway.Bind(wsc)
	defer gateway.Unbind(wsc)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	go pingLoop(ctx, wsc)
	go forwardEvents(ctx, wsc, engine)

	sendData(wsc, engine.ID(), "state", map[string]any{
		"state": engine.State().String(),
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			var msg inboundMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("[websocket] read error: %v", err)
				}
				return
			}

			conn.SetReadDeadline(time.Now().Add(60 * time.Second))

			if msg.CallID != "" && msg.CallID != engine.ID() {
				sendError(wsc, "call mismatch")
				continue
			}

			handleDeviceMessage(wsc, engine, gateway, &msg)
		}
	}
}

func handleDeviceMessage(wsc *wsConn, engine *callsvc.Engine, gateway *Gateway, msg *inboundMessage) {
	switch msg.Type {
	case "audio":
		var audio audioMessage
		if err := json.Unmarshal(msg.Data, &audio); err != nil {
			sendError(wsc, "invalid audio payload")
			return
		}
		engine.WriteAudio(audio.AudioData, audio.Format)

	case "permission":
		var perm permissionMessage
		if err := json.Unmarshal(msg.Data, &perm); err != nil {
			sendError(wsc, "invalid permission payload")
			return
		}
		if perm.Granted {
			gateway.resolve(perm.RequestID, nil)
		} else {
			gateway.resolve(perm.RequestID, capture.ErrPermissionDenied)
		}

	case "playback-done":
		var done playbackDoneMessage
		if err := json.Unmarshal(msg.Data, &done); err != nil {
			sendError(wsc, "invalid playback-done payload")
			return
		}
		var ackErr error
		if done.Error != "" {
			ackErr = errors.New(done.Error)
		}
		gateway.resolve(done.RequestID, ackErr)

	case "stop":
		if err := engine.StopListening(); err != nil {
			sendError(wsc, err.Error())
		}

	case "end":
		engine.End()

	default:
		sendError(wsc, "unsupported message type: "+msg.Type)
	}
}

// forwardEvents pushes every session event to the device until the
// subscription or connection ends.
func forwardEvents(ctx context.Context, wsc *wsConn, engine *callsvc.Engine) {
	events, unsubscribe := engine.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, open := <-events:
			if !open {
				return
			}
			switch ev.Kind {
			case callsvc.EventStateChanged:
				sendData(wsc, engine.ID(), "state", map[string]any{
					"state": ev.State.String(),
				})
			case callsvc.EventTranscript:
				sendData(wsc, engine.ID(), "transcript", map[string]any{
					"text": ev.Text,
				})
			case callsvc.EventResponse:
				sendData(wsc, engine.ID(), "response", map[string]any{
					"text": ev.Text,
				})
			case callsvc.EventError:
				sendError(wsc, ev.Text)
			}
		}
	}
}

func sendData(wsc *wsConn, callID, msgType string, data map[string]any) {
	msg := outgoingMessage{
		Type:      msgType,
		CallID:    callID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	if err := wsc.writeJSON(msg); err != nil {
		log.Printf("[websocket] write %s failed: %v", msgType, err)
	}
}

func sendError(wsc *wsConn, message string) {
	msg := outgoingMessage{
		Type:      "error",
		Data:      map[string]string{"message": message},
		Timestamp: time.Now().Unix(),
	}
	if err := wsc.writeJSON(msg); err != nil {
		log.Printf("[websocket] write error failed: %v", err)
	}
}

// pingLoop keeps the device connection alive.
func pingLoop(ctx context.Context, wsc *wsConn) {
	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := wsc.ping(); err != nil {
				return
			}
		}
	}
}
