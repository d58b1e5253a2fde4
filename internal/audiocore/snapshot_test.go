package audiocore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceSnapshotReflectsCurrentState(t *testing.T) {
	h := NewAudioHandler(newFakeDevice(), nil)
	handle, err := h.CreateSourceFromWaveform(WaveformSine, 440, 0, 1)
	require.NoError(t, err)

	src := h.Source(handle)
	src.SetGain(0.5)
	src.SetPosition(Vec3{X: 1, Y: 2, Z: 3})
	require.NoError(t, src.Play())

	snap, ok := h.SourceSnapshot(handle)
	require.True(t, ok)
	assert.Equal(t, handle, snap.Handle)
	assert.Equal(t, StatePlaying, snap.State)
	assert.Equal(t, Vec3{X: 1, Y: 2, Z: 3}, snap.Position)
	assert.InDelta(t, 0.5, snap.Gain, 1e-9)
}

func TestSourceSnapshotMissingHandleReturnsFalse(t *testing.T) {
	h := NewAudioHandler(newFakeDevice(), nil)
	_, ok := h.SourceSnapshot(999)
	assert.False(t, ok)
}

func TestListenerSnapshotReflectsCurrentState(t *testing.T) {
	h := NewAudioHandler(newFakeDevice(), nil)
	h.Listener.SetGain(0.25)
	h.Listener.SetPosition(Vec3{X: 5})

	snap := h.Listener.Snapshot()
	assert.InDelta(t, 0.25, snap.Gain, 1e-9)
	assert.Equal(t, Vec3{X: 5}, snap.Position)
}
