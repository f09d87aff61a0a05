package capture

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type deniedPermissions struct{}

func (deniedPermissions) RequestMicrophone(context.Context) error {
	return errors.New("denied by user")
}

func TestAcquireStopRoundTrip(t *testing.T) {
	rec := NewRecorder(GrantedPermissions{})

	handle, err := rec.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, rec.Active())

	_, err = handle.Write([]byte("chunk-1"))
	require.NoError(t, err)
	_, err = handle.Write([]byte("chunk-2"))
	require.NoError(t, err)
	handle.SetFormat("m4a")

	artifact, err := rec.Stop(handle)
	require.NoError(t, err)
	assert.Equal(t, "chunk-1chunk-2", string(artifact.Data))
	assert.Equal(t, "m4a", artifact.Format)
	assert.Equal(t, handle.ID(), artifact.ID)
	assert.False(t, rec.Active())
}

func TestAcquirePermissionDenied(t *testing.T) {
	rec := NewRecorder(deniedPermissions{})

	_, err := rec.Acquire(context.Background())
	require.ErrorIs(t, err, ErrPermissionDenied)
	assert.False(t, rec.Active())
}

func TestAcquireWhileActive(t *testing.T) {
	rec := NewRecorder(GrantedPermissions{})

	_, err := rec.Acquire(context.Background())
	require.NoError(t, err)

	_, err = rec.Acquire(context.Background())
	require.ErrorIs(t, err, ErrDeviceBusy)
}

func TestStopEmptyRecordingReleasesDevice(t *testing.T) {
	rec := NewRecorder(GrantedPermissions{})

	handle, err := rec.Acquire(context.Background())
	require.NoError(t, err)

	_, err = rec.Stop(handle)
	require.ErrorIs(t, err, ErrEmptyRecording)

	// Device must be free again despite the error.
	assert.False(t, rec.Active())
	_, err = rec.Acquire(context.Background())
	require.NoError(t, err)
}

func TestAbortReleasesAndClosesHandle(t *testing.T) {
	rec := NewRecorder(GrantedPermissions{})

	handle, err := rec.Acquire(context.Background())
	require.NoError(t, err)

	rec.Abort(handle)
	assert.False(t, rec.Active())

	_, err = handle.Write([]byte("late chunk"))
	require.Error(t, err)

	// Aborting twice is harmless.
	rec.Abort(handle)
	rec.Abort(nil)
}
