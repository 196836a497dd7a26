package utils

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSliceToSet(t *testing.T) {
	set := SliceToSet([]string{"a", "b", "a"})
	assert.Len(t, set, 2)
	assert.Contains(t, set, "a")
}

func TestOriginAllowed(t *testing.T) {
	allowed := OriginSet([]string{"https://Maps.Example.com/", " "})

	assert.True(t, OriginAllowed(allowed, "https://maps.example.com"))
	assert.True(t, OriginAllowed(allowed, "https://maps.example.com/"))
	assert.False(t, OriginAllowed(allowed, "https://evil.example.com"))
	assert.True(t, OriginAllowed(OriginSet([]string{"*"}), "anything"))
}

// TestNewLogger_LevelAndFallback writes at the configured level only.
func TestNewLogger_LevelAndFallback(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("warn", "json", &buf)
	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	fallback := NewLogger("nonsense", "json", &buf)
	fallback.Info().Msg("info visible")
	assert.Contains(t, buf.String(), "info visible")
}
