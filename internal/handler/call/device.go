package call

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/medicura/medicura/backend/internal/service/capture"
	"github.com/medicura/medicura/backend/internal/service/playback"
)

var errDeviceGone = errors.New("device disconnected")

// wsConn serializes writes to one websocket connection. gorilla/websocket
// allows a single concurrent writer.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{conn: conn}
}

func (c *wsConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

// Gateway is the server-side proxy for one call's device. The engine
// talks to it through the capture and playback interfaces; the
// websocket handler routes the device's answers back in. With no device
// bound the gateway runs headless: permission is granted and playback
// completes immediately, which keeps the call loop usable from plain
// REST clients.
type Gateway struct {
	callID string

	mu      sync.Mutex
	conn    *wsConn
	pending map[string]chan error
}

// NewGateway creates an unbound gateway for one call.
func NewGateway(callID string) *Gateway {
	return &Gateway{
		callID:  callID,
		pending: make(map[string]chan error),
	}
}

// Bind attaches the device connection. A newer connection replaces an
// older one; round-trips waiting on the old connection fail over.
func (g *Gateway) Bind(conn *wsConn) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.conn = conn
}

// Unbind detaches the connection and fails every pending round-trip.
func (g *Gateway) Unbind(conn *wsConn) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn != conn {
		return
	}
	g.conn = nil
	for id, ch := range g.pending {
		ch <- errDeviceGone
		delete(g.pending, id)
	}
}

// RequestMicrophone asks the device for microphone access and waits for
// its answer.
func (g *Gateway) RequestMicrophone(ctx context.Context) error {
	err := g.roundTrip(ctx, "permission-request", map[string]any{})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errDeviceGone):
		// Device dropped mid-request; treat like a denial so the
		// session lands back in Idle rather than hanging.
		return capture.ErrPermissionDenied
	default:
		return err
	}
}

// Play pushes synthesized audio to the device and waits for its
// playback-done acknowledgement.
func (g *Gateway) Play(ctx context.Context, callID string, audio []byte, format string) error {
	return g.roundTrip(ctx, "audio", map[string]any{
		"audioData": audio,
		"format":    format,
	})
}

// Speak asks the device to voice text with its built-in synthesizer.
func (g *Gateway) Speak(ctx context.Context, text string, voice playback.LocalVoice, events playback.LocalEvents) {
	if events.OnStart != nil {
		events.OnStart()
	}

	err := g.roundTrip(ctx, "speak", map[string]any{
		"text":     text,
		"language": voice.Language,
		"pitch":    voice.Pitch,
		"rate":     voice.Rate,
	})
	if err != nil {
		if events.OnError != nil {
			events.OnError(err)
		}
		return
	}
	if events.OnDone != nil {
		events.OnDone()
	}
}

// roundTrip sends one correlated request to the device and waits for
// resolve. Headless gateways succeed immediately.
func (g *Gateway) roundTrip(ctx context.Context, msgType string, data map[string]any) error {
	g.mu.Lock()
	conn := g.conn
	if conn == nil {
		g.mu.Unlock()
		return nil
	}

	requestID := uuid.NewString()
	done := make(chan error, 1)
	g.pending[requestID] = done
	g.mu.Unlock()

	data["requestId"] = requestID
	msg := outgoingMessage{
		Type:      msgType,
		CallID:    g.callID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	if err := conn.writeJSON(msg); err != nil {
		g.drop(requestID)
		return fmt.Errorf("send %s to device: %w", msgType, err)
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		g.drop(requestID)
		return ctx.Err()
	}
}

// resolve completes the round-trip identified by requestID.
func (g *Gateway) resolve(requestID string, err error) {
	g.mu.Lock()
	ch, ok := g.pending[requestID]
	if ok {
		delete(g.pending, requestID)
	}
	g.mu.Unlock()

	if !ok {
		log.Printf("[call] %s: stale device ack ignored request=%s", g.callID, requestID)
		return
	}
	ch <- err
}

func (g *Gateway) drop(requestID string) {
	g.mu.Lock()
	delete(g.pending, requestID)
	g.mu.Unlock()
}

// Hub tracks the device gateway per call. One call is live per device,
// so creating a gateway retires every older one.
type Hub struct {
	mu       sync.Mutex
	gateways map[string]*Gateway
}

// NewHub bootstraps an empty gateway hub.
func NewHub() *Hub {
	return &Hub{gateways: make(map[string]*Gateway)}
}

// Create provisions the gateway for a new call, replacing all others.
func (h *Hub) Create(callID string) *Gateway {
	h.mu.Lock()
	defer h.mu.Unlock()
	gw := NewGateway(callID)
	h.gateways = map[string]*Gateway{callID: gw}
	return gw
}

// Get looks up the gateway for a call.
func (h *Hub) Get(callID string) (*Gateway, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	gw, ok := h.gateways[callID]
	return gw, ok
}
