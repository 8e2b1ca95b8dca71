package helper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextBoundary(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 7, 33, 0, time.UTC)

	next := NextBoundary(now, 15*time.Minute, time.Second)
	assert.Equal(t, time.Date(2025, 3, 1, 12, 15, 1, 0, time.UTC), next)

	// ровно на границе — следующий слот, не текущий
	onEdge := time.Date(2025, 3, 1, 12, 15, 0, 0, time.UTC)
	next = NextBoundary(onEdge, 15*time.Minute, time.Second)
	assert.Equal(t, time.Date(2025, 3, 1, 12, 30, 1, 0, time.UTC), next)
}

func TestParsePrice(t *testing.T) {
	v, ok := ParsePrice(" 65000,5 ")
	assert.True(t, ok)
	assert.Equal(t, 65000.5, v)

	_, ok = ParsePrice("abc")
	assert.False(t, ok)

	_, ok = ParsePrice("-3")
	assert.False(t, ok)

	_, ok = ParsePrice("")
	assert.False(t, ok)
}
