package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flodgatt/flodgatt/internal/timeline"
)

func TestRecorder_timelineLifecycle(t *testing.T) {
	rec := NewRecorder()
	before := testutil.ToFloat64(TimelinesSubscribed)

	tl, err := timeline.New(timeline.Public(), timeline.Federated, timeline.All)
	require.NoError(t, err)

	rec.TimelineSubscribed(tl)
	assert.Equal(t, before+1, testutil.ToFloat64(TimelinesSubscribed))

	rec.TimelineUnsubscribed(tl)
	assert.Equal(t, before, testutil.ToFloat64(TimelinesSubscribed))
}

func TestRecorder_eventDeliveredAndDropped(t *testing.T) {
	rec := NewRecorder()
	tl, err := timeline.New(timeline.Public(), timeline.Federated, timeline.All)
	require.NoError(t, err)

	before := testutil.ToFloat64(EventsDelivered.WithLabelValues("public"))
	rec.EventDelivered(tl)
	assert.Equal(t, before+1, testutil.ToFloat64(EventsDelivered.WithLabelValues("public")))

	beforeDropped := testutil.ToFloat64(EventsDropped.WithLabelValues("public"))
	rec.EventDropped(tl)
	assert.Equal(t, beforeDropped+1, testutil.ToFloat64(EventsDropped.WithLabelValues("public")))
}

func TestNewConnectionID_unique(t *testing.T) {
	a := NewConnectionID()
	b := NewConnectionID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestStreamLabel(t *testing.T) {
	public, err := timeline.New(timeline.Public(), timeline.Federated, timeline.All)
	require.NoError(t, err)
	assert.Equal(t, "public", streamLabel(public))

	direct, err := timeline.New(timeline.Direct(1), timeline.Federated, timeline.All)
	require.NoError(t, err)
	assert.Equal(t, "direct", streamLabel(direct))
}
