package audiocore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBufferMapInternsByFilename(t *testing.T) {
	m := NewBufferMap()

	a := m.Intern("ding.wav", &AudioBuffer{SampleRate: 44100, Channels: 1, Samples: make([]float32, 10)})
	b, ok := m.Lookup("ding.wav")

	assert.True(t, ok)
	assert.Same(t, a, b)
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 2, a.RefCount())
}

func TestBufferMapInternRaceKeepsFirstWinner(t *testing.T) {
	m := NewBufferMap()

	first := m.Intern("ding.wav", &AudioBuffer{SampleRate: 44100})
	second := m.Intern("ding.wav", &AudioBuffer{SampleRate: 22050})

	assert.Same(t, first, second)
	assert.Equal(t, 1, m.Len())
}

func TestBufferMapReleaseEvictsAtZeroRefs(t *testing.T) {
	m := NewBufferMap()
	m.Intern("ding.wav", &AudioBuffer{})
	m.Lookup("ding.wav") // second reference

	m.Release("ding.wav")
	assert.Equal(t, 1, m.Len(), "one reference remains")

	m.Release("ding.wav")
	assert.Equal(t, 0, m.Len())
}

func TestBufferMapReleaseUnknownFilenameIsNoOp(t *testing.T) {
	m := NewBufferMap()
	m.Release("never-interned.wav")
	assert.Equal(t, 0, m.Len())
}

func TestBufferDuration(t *testing.T) {
	buf := &AudioBuffer{SampleRate: 48000, Channels: 2, Samples: make([]float32, 48000*2)}
	assert.InDelta(t, 1.0, buf.Duration(), 1e-9)
}
