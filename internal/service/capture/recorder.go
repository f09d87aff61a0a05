package capture

import (
	"bytes"
	"context"
	"errors"
	"log"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrPermissionDenied means microphone permission was not granted.
	// Terminal for the call attempt; the session returns to idle.
	ErrPermissionDenied = errors.New("microphone permission denied")

	// ErrDeviceBusy means a capture is already active. The engine's
	// single-flight rule should make this unreachable; if it fires
	// anyway it is treated as fatal.
	ErrDeviceBusy = errors.New("capture device busy")

	// ErrEmptyRecording means the capture finished without audio.
	ErrEmptyRecording = errors.New("recording captured no audio")

	errHandleClosed = errors.New("capture handle already closed")
)

// Permissions asks the device owner for microphone access.
type Permissions interface {
	RequestMicrophone(ctx context.Context) error
}

// GrantedPermissions always grants. Used by tools and tests.
type GrantedPermissions struct{}

// RequestMicrophone implements Permissions.
func (GrantedPermissions) RequestMicrophone(context.Context) error { return nil }

// Artifact is one finalized recording, referenced by id.
type Artifact struct {
	ID     string
	Data   []byte
	Format string
}

// Handle is one in-flight recording. The caller streams audio chunks
// into it until the recorder stops or aborts it.
type Handle struct {
	id     string
	mu     sync.Mutex
	buf    bytes.Buffer
	format string
	closed bool
}

// ID returns the recording identifier.
func (h *Handle) ID() string { return h.id }

// Write appends one audio chunk to the recording.
func (h *Handle) Write(chunk []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, errHandleClosed
	}
	return h.buf.Write(chunk)
}

// SetFormat records the container format reported by the device.
func (h *Handle) SetFormat(format string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if format != "" {
		h.format = format
	}
}

func (h *Handle) finalize() ([]byte, string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return h.buf.Bytes(), h.format
}

// Recorder owns exclusive access to the microphone. At most one handle
// is active at a time; the device is released on every exit path.
type Recorder struct {
	permissions Permissions

	mu     sync.Mutex
	active *Handle
}

// NewRecorder creates a recorder gated by the given permission source.
func NewRecorder(permissions Permissions) *Recorder {
	return &Recorder{permissions: permissions}
}

// Acquire requests microphone permission and claims the device.
func (r *Recorder) Acquire(ctx context.Context) (*Handle, error) {
	if err := r.permissions.RequestMicrophone(ctx); err != nil {
		return nil, ErrPermissionDenied
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		return nil, ErrDeviceBusy
	}

	handle := &Handle{id: uuid.NewString(), format: "wav"}
	r.active = handle
	log.Printf("[capture] acquired microphone recording=%s", handle.id)
	return handle, nil
}

// Stop finalizes the recording and releases the device. The device is
// released even when the recording is empty.
func (r *Recorder) Stop(h *Handle) (*Artifact, error) {
	r.release(h)

	data, format := h.finalize()
	if len(data) == 0 {
		return nil, ErrEmptyRecording
	}

	log.Printf("[capture] stopped recording=%s bytes=%d format=%s", h.id, len(data), format)
	return &Artifact{ID: h.id, Data: data, Format: format}, nil
}

// Abort discards the recording and releases the device. Idempotent.
func (r *Recorder) Abort(h *Handle) {
	if h == nil {
		return
	}
	r.release(h)
	h.finalize()
	log.Printf("[capture] aborted recording=%s", h.id)
}

// Active reports whether a capture is in flight.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}

func (r *Recorder) release(h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == h {
		r.active = nil
	}
}
