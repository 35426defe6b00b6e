package streaming

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flodgatt/flodgatt/internal/event"
	"github.com/flodgatt/flodgatt/internal/redisconn"
	"github.com/flodgatt/flodgatt/internal/timeline"
)

// fakePoller is an in-memory stand-in for *redisconn.Connection, driven
// directly by the test instead of a real socket.
type fakePoller struct {
	mu          sync.Mutex
	queue       []queuedFrame
	subscribed  map[timeline.Timeline]string
	reconnected int
}

type queuedFrame struct {
	tl timeline.Timeline
	ev event.Event
}

func newFakePoller() *fakePoller {
	return &fakePoller{subscribed: make(map[timeline.Timeline]string)}
}

func (f *fakePoller) push(tl timeline.Timeline, ev event.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, queuedFrame{tl: tl, ev: ev})
}

func (f *fakePoller) Poll() (timeline.Timeline, event.Event, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return timeline.Timeline{}, event.Event{}, false, nil
	}
	next := f.queue[0]
	f.queue = f.queue[1:]
	return next.tl, next.ev, true, nil
}

func (f *fakePoller) Subscribe(tl timeline.Timeline, hashtagName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed[tl] = hashtagName
	return nil
}

func (f *fakePoller) Unsubscribe(tl timeline.Timeline, hashtagName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subscribed, tl)
	return nil
}

func (f *fakePoller) Reconnect(active []redisconn.ActiveTimeline) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconnected++
	return nil
}

func publicTimeline(t *testing.T) timeline.Timeline {
	t.Helper()
	tl, err := timeline.New(timeline.Public(), timeline.Federated, timeline.All)
	require.NoError(t, err)
	return tl
}

func TestSubscribe_issuesRedisSubscribeOnFirstClientOnly(t *testing.T) {
	poller := newFakePoller()
	mgr := NewManager(poller, zap.NewNop(), 0, 4, nil)
	tl := publicTimeline(t)

	_, unsub1, err := mgr.Subscribe(tl, "")
	require.NoError(t, err)
	_, unsub2, err := mgr.Subscribe(tl, "")
	require.NoError(t, err)

	poller.mu.Lock()
	_, subscribed := poller.subscribed[tl]
	poller.mu.Unlock()
	assert.True(t, subscribed)

	unsub1()
	poller.mu.Lock()
	_, stillSubscribed := poller.subscribed[tl]
	poller.mu.Unlock()
	assert.True(t, stillSubscribed, "refcount should still be 1")

	unsub2()
	poller.mu.Lock()
	_, subscribedAfterLast := poller.subscribed[tl]
	poller.mu.Unlock()
	assert.False(t, subscribedAfterLast, "last unsubscribe should issue UNSUBSCRIBE")
}

func TestRun_dispatchesEventsToAllSubscribers(t *testing.T) {
	poller := newFakePoller()
	mgr := NewManager(poller, zap.NewNop(), 0, 4, nil)
	tl := publicTimeline(t)

	ch1, unsub1, err := mgr.Subscribe(tl, "")
	require.NoError(t, err)
	defer unsub1()
	ch2, unsub2, err := mgr.Subscribe(tl, "")
	require.NoError(t, err)
	defer unsub2()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mgr.Run(ctx)

	poller.push(tl, event.Ping())

	for _, ch := range []<-chan event.Event{ch1, ch2} {
		select {
		case ev := <-ch:
			assert.Equal(t, event.VariantPing, ev.Variant)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for dispatched event")
		}
	}
}

func TestRun_reconnectsOnPollError(t *testing.T) {
	poller := &erroringPoller{fakePoller: newFakePoller(), failOnce: true}
	mgr := NewManager(poller, zap.NewNop(), 0, 4, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mgr.Run(ctx)

	require.Eventually(t, func() bool {
		poller.mu.Lock()
		defer poller.mu.Unlock()
		return poller.reconnected >= 1
	}, time.Second, 5*time.Millisecond)
}

type erroringPoller struct {
	*fakePoller
	failOnce bool
}

func (e *erroringPoller) Poll() (timeline.Timeline, event.Event, bool, error) {
	e.mu.Lock()
	if e.failOnce {
		e.failOnce = false
		e.mu.Unlock()
		return timeline.Timeline{}, event.Event{}, false, assertError{}
	}
	e.mu.Unlock()
	return e.fakePoller.Poll()
}

type assertError struct{}

func (assertError) Error() string { return "simulated connection loss" }

func TestSnapshot_reflectsSubscriberCounts(t *testing.T) {
	poller := newFakePoller()
	mgr := NewManager(poller, zap.NewNop(), 0, 4, nil)
	tl := publicTimeline(t)

	assert.Empty(t, mgr.Snapshot())

	_, unsub1, err := mgr.Subscribe(tl, "")
	require.NoError(t, err)
	_, unsub2, err := mgr.Subscribe(tl, "")
	require.NoError(t, err)

	channel, err := tl.ToRedisChannel("")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{channel: 2}, mgr.Snapshot())

	unsub1()
	unsub2()
	assert.Empty(t, mgr.Snapshot())
}
