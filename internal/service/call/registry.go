package call

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrCallNotFound means the identifier matches no known session.
var ErrCallNotFound = errors.New("call not found")

// EngineFactory builds a session engine for a fresh call id. The
// transport layer binds device-facing collaborators per call here.
type EngineFactory func(id string) *Engine

// Registry tracks call sessions by id. One call may be live per device;
// creating a new one ends and evicts the previous.
type Registry struct {
	factory EngineFactory

	mu      sync.RWMutex
	engines map[string]*Engine
	live    string
}

// NewRegistry bootstraps the in-memory session registry.
func NewRegistry(factory EngineFactory) *Registry {
	return &Registry{
		factory: factory,
		engines: make(map[string]*Engine),
	}
}

// Create provisions a new call session, ending any live one first.
func (r *Registry) Create(_ context.Context) *Engine {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.live != "" {
		if prev, ok := r.engines[r.live]; ok {
			prev.End()
			delete(r.engines, r.live)
		}
	}

	id := "call_" + uuid.NewString()
	engine := r.factory(id)
	r.engines[id] = engine
	r.live = id
	return engine
}

// Get retrieves a session by identifier.
func (r *Registry) Get(_ context.Context, id string) (*Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	engine, ok := r.engines[id]
	if !ok {
		return nil, ErrCallNotFound
	}
	return engine, nil
}

// End terminates a session and keeps its terminal snapshot readable
// until the next call replaces it.
func (r *Registry) End(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	engine, ok := r.engines[id]
	if !ok {
		return ErrCallNotFound
	}
	engine.End()
	return nil
}

// Shutdown ends every tracked session. Used on process exit.
func (r *Registry) Shutdown(_ context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, engine := range r.engines {
		engine.End()
	}
}
