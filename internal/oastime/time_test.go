package oastime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUnsetSentinel(t *testing.T) {
	var zero Time
	assert.False(t, zero.HasTime())
	assert.True(t, Now().HasTime())
}

func TestAddSub(t *testing.T) {
	start := Now()
	end := start.Add(2 * time.Second)
	assert.True(t, end.After(start))
	assert.Equal(t, 2*time.Second, end.Sub(start))
}

func TestFractionClamped(t *testing.T) {
	start := Now()
	end := start.Add(1 * time.Second)

	assert.InDelta(t, 0.0, Fraction(start, start, end), 1e-9)
	assert.InDelta(t, 1.0, Fraction(end, start, end), 1e-9)
	assert.InDelta(t, 0.5, Fraction(start.Add(500*time.Millisecond), start, end), 1e-2)

	before := start.Add(-1 * time.Second)
	assert.InDelta(t, 0.0, Fraction(before, start, end), 1e-9)

	after := end.Add(1 * time.Second)
	assert.InDelta(t, 1.0, Fraction(after, start, end), 1e-9)
}

func TestFractionDegenerateDuration(t *testing.T) {
	start := Now()
	assert.InDelta(t, 1.0, Fraction(start, start, start), 1e-9)
}
