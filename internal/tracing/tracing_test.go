package tracing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestInitialize_disabled(t *testing.T) {
	err := Initialize(Config{Enabled: false}, zaptest.NewLogger(t))
	assert.NoError(t, err)
}

func TestParseTraceparent(t *testing.T) {
	traceID, spanID, flags, ok := ParseTraceparent("00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	assert.True(t, ok)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", traceID)
	assert.Equal(t, "00f067aa0ba902b7", spanID)
	assert.Equal(t, byte(1), flags)
}

func TestParseTraceparent_invalid(t *testing.T) {
	_, _, _, ok := ParseTraceparent("not-a-traceparent")
	assert.False(t, ok)
}
