package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGHDL(t *testing.T) {
	m, err := Parse([]byte("GHDL ding.wav"))
	require.NoError(t, err)
	assert.Equal(t, TagGHDL, m.Tag)
	assert.Equal(t, "ding.wav", m.Filename)
	assert.Equal(t, -1, m.Handle)
}

func TestParsePTFI(t *testing.T) {
	m, err := Parse([]byte("PTFI missing.wav 128"))
	require.NoError(t, err)
	assert.Equal(t, "missing.wav", m.Filename)
	assert.Equal(t, 128, m.Size)
}

func TestParseWave(t *testing.T) {
	m, err := Parse([]byte("WAVE 1 261.63 0 2"))
	require.NoError(t, err)
	assert.Equal(t, TagWAVE, m.Tag)
	assert.Equal(t, 1, m.Waveform)
	assert.InDeltaSlice(t, []float64{261.63, 0, 2}, m.Floats, 1e-9)
}

func TestParseHandleOnly(t *testing.T) {
	for _, tag := range []string{"RHDL", "PLAY", "STOP", "PAUS", "STAT"} {
		m, err := Parse([]byte(tag + " 3"))
		require.NoError(t, err)
		assert.Equal(t, 3, m.Handle)
	}
}

func TestParseSSVEAcceptsBothArities(t *testing.T) {
	short, err := Parse([]byte("SSVE 3 2.0"))
	require.NoError(t, err)
	assert.Len(t, short.Floats, 1)

	long, err := Parse([]byte("SSVE 3 1.0 2.0 3.0"))
	require.NoError(t, err)
	assert.Len(t, long.Floats, 3)
}

func TestParseSSDIBothForms(t *testing.T) {
	angle, err := Parse([]byte("SSDI 3 1.57"))
	require.NoError(t, err)
	assert.Len(t, angle.Floats, 1)

	cartesian, err := Parse([]byte("SSDI 3 0 0 1"))
	require.NoError(t, err)
	assert.Len(t, cartesian.Floats, 3)
}

func TestParseSync(t *testing.T) {
	m, err := Parse([]byte("SYNC"))
	require.NoError(t, err)
	assert.Equal(t, TagSYNC, m.Tag)
}

func TestParseUnknownTag(t *testing.T) {
	_, err := Parse([]byte("ZZZZ 1 2 3"))
	assert.ErrorIs(t, err, ErrBadFormat)
}

func TestParseArityMismatch(t *testing.T) {
	_, err := Parse([]byte("GHDL"))
	assert.ErrorIs(t, err, ErrBadFormat)

	_, err = Parse([]byte("SSPO 1 2 3"))
	assert.ErrorIs(t, err, ErrBadFormat)
}

// TestParseArityMismatchStillReportsTag ensures a recognized-but-malformed
// packet carries enough information for a caller to know it owes the
// client a sentinel response, even though the rest of the Message is
// unusable.
func TestParseArityMismatchStillReportsTag(t *testing.T) {
	m, err := Parse([]byte("GHDL a b"))
	assert.ErrorIs(t, err, ErrBadFormat)
	assert.Equal(t, TagGHDL, m.Tag)

	m, err = Parse([]byte("STAT abc"))
	assert.ErrorIs(t, err, ErrBadFormat)
	assert.Equal(t, TagSTAT, m.Tag)

	// An unrecognized tag has no Tag to report.
	m, err = Parse([]byte("ZZZZ 1 2 3"))
	assert.ErrorIs(t, err, ErrBadFormat)
	assert.Equal(t, Tag(""), m.Tag)
}

func TestParseOversizedPacket(t *testing.T) {
	huge := make([]byte, MaxPacketSize)
	for i := range huge {
		huge[i] = 'a'
	}
	_, err := Parse(huge)
	assert.ErrorIs(t, err, ErrOversized)
}

func TestSSDRAndSSRVParseButAreUnsupported(t *testing.T) {
	m, err := Parse([]byte("SSDR 3 1.0"))
	require.NoError(t, err)
	assert.True(t, UnsupportedTags[m.Tag])

	m, err = Parse([]byte("SSRV 3 1.0 2.0"))
	require.NoError(t, err)
	assert.True(t, UnsupportedTags[m.Tag])
}

func TestRespondsOnFailure(t *testing.T) {
	assert.True(t, RespondsOnFailure(TagGHDL))
	assert.True(t, RespondsOnFailure(TagWAVE))
	assert.True(t, RespondsOnFailure(TagSTAT))
	assert.False(t, RespondsOnFailure(TagPLAY))
}

func TestFailureResponse(t *testing.T) {
	assert.Equal(t, EncodeInt(-1), FailureResponse(TagGHDL))
	assert.Equal(t, EncodeInt(0), FailureResponse(TagSTAT))
}
