package call

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	callmodel "github.com/medicura/medicura/backend/internal/model/call"
	callsvc "github.com/medicura/medicura/backend/internal/service/call"
	"github.com/medicura/medicura/backend/pkg/utils"
)

// Handler exposes the emergency call session over HTTP.
type Handler struct {
	registry *callsvc.Registry
	hub      *Hub
}

// New creates the call handler.
func New(registry *callsvc.Registry, hub *Hub) *Handler {
	return &Handler{
		registry: registry,
		hub:      hub,
	}
}

// RegisterRoutes mounts the call routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/calls", func(callRouter chi.Router) {
		callRouter.Get("/health", h.handleHealth)
		callRouter.Post("/", h.handleCreate)

		callRouter.Route("/{callID}", func(one chi.Router) {
			one.Get("/", h.handleGet)
			one.Post("/stop-listening", h.handleStopListening)
			one.Post("/end", h.handleEnd)
			one.Post("/primary", h.handlePrimaryAction)
			one.Get("/elapsed", h.handleElapsed)
			one.Get("/ws", h.handleWebSocket)
		})
	})
}

// handleCreate provisions a new call session. Any previous live call is
// ended first.
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	engine := h.registry.Create(r.Context())

	log.Printf("[call] created session %s", engine.ID())
	utils.RespondJSON(w, http.StatusCreated, map[string]string{
		"id":    engine.ID(),
		"state": engine.State().String(),
		"wsUrl": "/api/calls/" + engine.ID() + "/ws",
	})
}

// handleGet returns the session snapshot.
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.lookup(w, r)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, engine.Snapshot())
}

// handleStopListening ends the caller's utterance and starts the
// processing pipeline.
func (h *Handler) handleStopListening(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.lookup(w, r)
	if !ok {
		return
	}

	if err := engine.StopListening(); err != nil {
		if errors.Is(err, callsvc.ErrNotListening) {
			utils.RespondError(w, http.StatusConflict, "call is not listening")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusAccepted, map[string]string{"state": engine.State().String()})
}

// handleEnd terminates the call.
func (h *Handler) handleEnd(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.lookup(w, r)
	if !ok {
		return
	}

	engine.End()
	utils.RespondJSON(w, http.StatusOK, map[string]string{"state": engine.State().String()})
}

// handlePrimaryAction runs the context-dependent main button: start
// when idle, stop listening when listening, otherwise nothing.
func (h *Handler) handlePrimaryAction(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.lookup(w, r)
	if !ok {
		return
	}

	if err := engine.PrimaryAction(r.Context()); err != nil {
		utils.RespondError(w, http.StatusConflict, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"state": engine.State().String()})
}

// handleElapsed streams the call duration as SSE until the call ends or
// the client disconnects.
func (h *Handler) handleElapsed(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.lookup(w, r)
	if !ok {
		return
	}

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	utils.SetupSSEHeaders(w)

	ctx := r.Context()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	send := func() {
		utils.SendSSEEvent(w, flusher, "elapsed", map[string]any{
			"elapsedMs": engine.Elapsed().Milliseconds(),
			"state":     engine.State().String(),
		})
	}
	send()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			send()
			if engine.State() == callmodel.StateEnded {
				return
			}
		}
	}
}

// handleHealth reports liveness.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "call",
	})
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*callsvc.Engine, bool) {
	callID := chi.URLParam(r, "callID")
	if callID == "" {
		utils.RespondError(w, http.StatusBadRequest, "callID is required")
		return nil, false
	}

	engine, err := h.registry.Get(r.Context(), callID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, "call not found")
		return nil, false
	}
	return engine, true
}
