// Package streaming implements Flodgatt's SubscriptionManager: the
// single goroutine that polls Redis, fans events out to per-timeline
// sets of client channels with refcounted SUBSCRIBE/UNSUBSCRIBE, and
// drives the keep-alive ping ticker. Built on a subscriber map guarded
// by a mutex with a wg-based graceful shutdown, generalized from a
// per-workflow fan-out shape to Redis pub/sub per-timeline fan-out.
package streaming

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/flodgatt/flodgatt/internal/event"
	"github.com/flodgatt/flodgatt/internal/redisconn"
	"github.com/flodgatt/flodgatt/internal/timeline"
)

// Poller is the slice of *redisconn.Connection the manager depends on.
// Accepting an interface here (rather than the concrete type) is what
// lets manager_test.go drive the fan-out logic without a real socket.
type Poller interface {
	Poll() (timeline.Timeline, event.Event, bool, error)
	Subscribe(tl timeline.Timeline, hashtagName string) error
	Unsubscribe(tl timeline.Timeline, hashtagName string) error
	Reconnect(active []redisconn.ActiveTimeline) error
}

// Recorder receives metrics callbacks; internal/metrics implements it.
// Defined here (rather than imported from internal/metrics) to avoid a
// streaming->metrics->streaming import cycle and so tests can pass a
// no-op stub.
type Recorder interface {
	TimelineSubscribed(tl timeline.Timeline)
	TimelineUnsubscribed(tl timeline.Timeline)
	EventDelivered(tl timeline.Timeline)
	EventDropped(tl timeline.Timeline)
	RedisReconnected()
}

type nopRecorder struct{}

func (nopRecorder) TimelineSubscribed(timeline.Timeline)   {}
func (nopRecorder) TimelineUnsubscribed(timeline.Timeline) {}
func (nopRecorder) EventDelivered(timeline.Timeline)       {}
func (nopRecorder) EventDropped(timeline.Timeline)         {}
func (nopRecorder) RedisReconnected()                      {}


type subscriberID uint64

type topic struct {
	hashtagName string
	subscribers map[subscriberID]chan event.Event
}

// Manager owns every active timeline's refcount and subscriber set. All
// public methods are goroutine-safe; Run must be started exactly once
// and owns the poll loop and ping ticker for the Connection's lifetime.
type Manager struct {
	mu     sync.Mutex
	conn   Poller
	logger *zap.Logger
	rec    Recorder

	topics    map[timeline.Timeline]*topic
	nextSubID subscriberID

	pingInterval time.Duration
	bufferSize   int

	shutdownCh chan struct{}
	wg         sync.WaitGroup
}

// NewManager constructs a Manager. bufferSize sizes each subscriber's
// channel; once full, the oldest buffered event is dropped in favor of
// the newest — a watch-style last-value broadcast that coalesces slow
// consumers, so a slow client sees the freshest state instead of
// falling further and further behind.
func NewManager(conn Poller, logger *zap.Logger, pingInterval time.Duration, bufferSize int, rec Recorder) *Manager {
	if rec == nil {
		rec = nopRecorder{}
	}
	if bufferSize <= 0 {
		bufferSize = 4
	}
	return &Manager{
		conn:         conn,
		logger:       logger,
		rec:          rec,
		topics:       make(map[timeline.Timeline]*topic),
		pingInterval: pingInterval,
		bufferSize:   bufferSize,
		shutdownCh:   make(chan struct{}),
	}
}

// Subscribe registers a new client on tl, issuing a Redis SUBSCRIBE the
// first time any client wants tl (refcount 0→1). hashtagName is only
// meaningful (and required) when tl.Stream is a Hashtag. The returned
// function must be called exactly once to unregister; it issues
// UNSUBSCRIBE on the last-client departure (refcount 1→0).
func (m *Manager) Subscribe(tl timeline.Timeline, hashtagName string) (<-chan event.Event, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, exists := m.topics[tl]
	if !exists {
		if err := m.conn.Subscribe(tl, hashtagName); err != nil {
			return nil, nil, fmt.Errorf("streaming: subscribe %+v: %w", tl, err)
		}
		t = &topic{hashtagName: hashtagName, subscribers: make(map[subscriberID]chan event.Event)}
		m.topics[tl] = t
		m.rec.TimelineSubscribed(tl)
	}

	id := m.nextSubID
	m.nextSubID++
	ch := make(chan event.Event, m.bufferSize)
	t.subscribers[id] = ch

	unsubscribe := func() { m.unsubscribe(tl, id) }
	return ch, unsubscribe, nil
}

func (m *Manager) unsubscribe(tl timeline.Timeline, id subscriberID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.topics[tl]
	if !ok {
		return
	}
	if ch, ok := t.subscribers[id]; ok {
		close(ch)
		delete(t.subscribers, id)
	}
	if len(t.subscribers) == 0 {
		delete(m.topics, tl)
		if err := m.conn.Unsubscribe(tl, t.hashtagName); err != nil {
			m.logger.Error("unsubscribe failed", zap.Any("timeline", tl), zap.Error(err))
		}
		m.rec.TimelineUnsubscribed(tl)
	}
}

// ActiveTimelines snapshots every timeline with at least one subscriber,
// for replaying SUBSCRIBE after a reconnect.
func (m *Manager) ActiveTimelines() []redisconn.ActiveTimeline {
	m.mu.Lock()
	defer m.mu.Unlock()

	active := make([]redisconn.ActiveTimeline, 0, len(m.topics))
	for tl, t := range m.topics {
		active = append(active, redisconn.ActiveTimeline{Timeline: tl, HashtagName: t.hashtagName})
	}
	return active
}

// Snapshot reports the current subscriber count per active Redis
// channel, for the admin diagnostics endpoint.
func (m *Manager) Snapshot() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]int, len(m.topics))
	for tl, t := range m.topics {
		ch, err := tl.ToRedisChannel(t.hashtagName)
		if err != nil {
			continue
		}
		out[ch] = len(t.subscribers)
	}
	return out
}

// Run drives the poll loop and ping ticker until ctx is cancelled or
// Shutdown is called. It is meant to be run in its own goroutine.
func (m *Manager) Run(ctx context.Context) {
	m.wg.Add(2)
	go m.pingLoop(ctx)

	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.shutdownCh:
			return
		default:
		}

		tl, ev, ok, err := m.conn.Poll()
		if err != nil {
			m.logger.Error("redis connection lost; reconnecting", zap.Error(err))
			if rerr := m.conn.Reconnect(m.ActiveTimelines()); rerr != nil {
				m.logger.Error("reconnect failed, retrying", zap.Error(rerr))
				continue
			}
			m.rec.RedisReconnected()
			continue
		}
		if !ok {
			time.Sleep(time.Millisecond)
			continue
		}
		m.dispatch(tl, ev)
	}
}

func (m *Manager) dispatch(tl timeline.Timeline, ev event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.topics[tl]
	if !ok {
		return
	}
	for _, ch := range t.subscribers {
		if trySend(ch, ev) {
			m.rec.EventDelivered(tl)
		} else {
			m.rec.EventDropped(tl)
		}
	}
}

// trySend performs a non-blocking, coalescing send: a full channel has
// its stale value discarded in favor of the fresh one, so a slow
// consumer always has the newest event waiting rather than one that
// fell further behind with every poll tick.
func trySend(ch chan event.Event, ev event.Event) bool {
	select {
	case ch <- ev:
		return true
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- ev:
		return true
	default:
		return false
	}
}

func (m *Manager) pingLoop(ctx context.Context) {
	defer m.wg.Done()
	if m.pingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(m.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.shutdownCh:
			return
		case <-ticker.C:
			m.broadcastAll(event.Ping())
		}
	}
}

func (m *Manager) broadcastAll(ev event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for tl, t := range m.topics {
		for _, ch := range t.subscribers {
			if trySend(ch, ev) {
				m.rec.EventDelivered(tl)
			} else {
				m.rec.EventDropped(tl)
			}
		}
	}
}

// Shutdown stops the poll loop and ping ticker and waits for them to
// exit, or ctx expires first.
func (m *Manager) Shutdown(ctx context.Context) error {
	close(m.shutdownCh)
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
