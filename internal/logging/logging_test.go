package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetOutputRejectsNilWriters(t *testing.T) {
	Init()

	err := SetOutput(nil, &bytes.Buffer{})
	assert.Error(t, err)

	err = SetOutput(&bytes.Buffer{}, nil)
	assert.Error(t, err)
}

func TestSetOutputRedirectsLoggers(t *testing.T) {
	Init()

	var structured, human bytes.Buffer
	require.NoError(t, SetOutput(&structured, &human))

	Structured().Info("hello from structured")
	HumanReadable().Info("hello from human")

	assert.Contains(t, structured.String(), "hello from structured")
	assert.Contains(t, human.String(), "hello from human")
}

func TestForServiceAddsAttribute(t *testing.T) {
	Init()

	var buf bytes.Buffer
	require.NoError(t, SetOutput(&buf, &bytes.Buffer{}))

	ForService("netserver").Info("listening")
	assert.Contains(t, buf.String(), `"service":"netserver"`)
}

func TestDefaultReplaceAttrTruncatesFloats(t *testing.T) {
	a := defaultReplaceAttr(nil, slog.Float64("gain", 0.123456))
	assert.InDelta(t, 0.12, a.Value.Float64(), 1e-9)
}
