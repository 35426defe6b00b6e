package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_allowsBurstThenThrottles(t *testing.T) {
	l := New(1, 2, time.Minute)

	assert.True(t, l.Allow("1.2.3.4"))
	assert.True(t, l.Allow("1.2.3.4"))
	assert.False(t, l.Allow("1.2.3.4"))
}

func TestLimiter_tracksIPsIndependently(t *testing.T) {
	l := New(1, 1, time.Minute)

	assert.True(t, l.Allow("1.2.3.4"))
	assert.False(t, l.Allow("1.2.3.4"))
	assert.True(t, l.Allow("5.6.7.8"))
}

func TestLimiter_evictsIdleEntries(t *testing.T) {
	l := New(1, 1, time.Millisecond)
	l.Allow("1.2.3.4")
	assert.Equal(t, 1, l.Len())

	time.Sleep(5 * time.Millisecond)
	l.Evict()
	assert.Equal(t, 0, l.Len())
}
