package redisconn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/flodgatt/flodgatt/internal/event"
	"github.com/flodgatt/flodgatt/internal/flerr"
	"github.com/flodgatt/flodgatt/internal/id"
	"github.com/flodgatt/flodgatt/internal/timeline"
	"github.com/flodgatt/flodgatt/internal/tracing"
)

// Config holds connection parameters for both the pub/sub socket and
// the administrative SET-mirroring socket.
type Config struct {
	Host         string
	Port         int
	Password     string
	DB           int
	Namespace    string
	PollInterval time.Duration
}

// ActiveTimeline pairs a Timeline with the hashtag name needed to
// reconstruct its Redis channel string, for replaying SUBSCRIBE after a
// reconnect.
type ActiveTimeline struct {
	Timeline    timeline.Timeline
	HashtagName string
}

// Connection owns the two Redis sockets and the resumable RESP parse
// buffer. It is driven entirely by its owning
// SubscriptionManager goroutine; nothing here is safe for concurrent
// use from multiple goroutines.
type Connection struct {
	cfg    Config
	logger *zap.Logger

	primary   net.Conn
	secondary net.Conn

	cache *timeline.TagCache
	input []byte

	lastPolledAt time.Time
}

// Connect performs the two-socket connect sequence: TCP connect,
// optional AUTH, PING, optional SELECT, for both the
// primary (pub/sub) and secondary (SET-mirroring) sockets.
func Connect(cfg Config, logger *zap.Logger) (*Connection, error) {
	_, span := tracing.StartSpan(context.Background(), "redisconn.Connect")
	defer span.End()

	primary, err := dialAndHandshake(cfg, logger)
	if err != nil {
		return nil, err
	}
	secondary, err := dialAndHandshake(cfg, logger)
	if err != nil {
		primary.Close()
		return nil, err
	}
	return &Connection{
		cfg:       cfg,
		logger:    logger,
		primary:   primary,
		secondary: secondary,
		cache:     timeline.NewTagCache(),
		input:     make([]byte, 0, 5*1024),
	}, nil
}

func dialAndHandshake(cfg Config, logger *zap.Logger) (net.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("redisconn: could not connect to redis at %s: %w", addr, err)
	}
	if cfg.Password != "" {
		if err := authenticate(conn, cfg.Password); err != nil {
			conn.Close()
			return nil, err
		}
	}
	if err := pingHandshake(conn); err != nil {
		conn.Close()
		return nil, err
	}
	if cfg.DB != 0 {
		logger.Warn("SELECT is not DB-scoped for pub/sub; prefer REDIS_NAMESPACE",
			zap.Int("db", cfg.DB))
		if err := selectDB(conn, cfg.DB); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return conn, nil
}

func authenticate(conn net.Conn, password string) error {
	if _, err := conn.Write(encodeArray2("AUTH", password)); err != nil {
		return fmt.Errorf("redisconn: writing AUTH: %w", err)
	}
	reply := make([]byte, len("+OK\r\n"))
	if _, err := io.ReadFull(conn, reply); err != nil {
		return fmt.Errorf("redisconn: reading AUTH reply: %w", err)
	}
	if string(reply) != "+OK\r\n" {
		return fmt.Errorf("redisconn: incorrect redis password (set REDIS_PASSWORD correctly)")
	}
	return nil
}

func pingHandshake(conn net.Conn) error {
	if _, err := conn.Write([]byte("PING\r\n")); err != nil {
		return fmt.Errorf("redisconn: writing PING: %w", err)
	}
	reply := make([]byte, 7)
	n, err := io.ReadFull(conn, reply)
	if err != nil && n == 0 {
		return fmt.Errorf("redisconn: reading PING reply: %w", err)
	}
	switch string(reply[:n]) {
	case "+PONG\r\n":
		return nil
	case "-NOAUTH":
		return fmt.Errorf("redisconn: redis requires a password but REDIS_PASSWORD was not set")
	case "HTTP/1.":
		return fmt.Errorf("redisconn: the server at REDIS_HOST/REDIS_PORT is not redis")
	default:
		return fmt.Errorf("redisconn: unexpected PING reply %q", reply[:n])
	}
}

func selectDB(conn net.Conn, db int) error {
	if _, err := conn.Write(encodeArray2("SELECT", strconv.Itoa(db))); err != nil {
		return fmt.Errorf("redisconn: writing SELECT: %w", err)
	}
	return nil
}

// UpdateCache keeps the connection's read-through tag cache in sync
// with the SubscriptionManager's authoritative copy: the request layer
// resolves a hashtag name to id via
// Postgres at subscribe time and the manager calls this before issuing
// SUBSCRIBE, so the parser never encounters a channel it can't resolve.
func (c *Connection) UpdateCache(name string, tagID id.Id) {
	c.cache.Put(name, tagID)
}

// Poll performs at most one non-blocking read (governed by
// cfg.PollInterval) and then drains any fully-parsed frames already
// buffered, returning the first pub/sub message it produces. It
// returns ok == false with a nil error when there is nothing ready yet;
// a non-nil error is always
// non-fatal — the manager logs it and polling continues.
func (c *Connection) Poll() (timeline.Timeline, event.Event, bool, error) {
	now := time.Now()
	if now.Sub(c.lastPolledAt) >= c.cfg.PollInterval {
		c.lastPolledAt = now
		c.primary.SetReadDeadline(time.Now().Add(10 * time.Millisecond))
		buf := make([]byte, 6000)
		n, err := c.primary.Read(buf)
		if n > 0 {
			c.input = append(c.input, buf[:n]...)
		}
		if err != nil && !isTimeout(err) {
			return timeline.Timeline{}, event.Event{}, false, fmt.Errorf("redisconn: read: %w", err)
		}
	}

	for {
		frame, consumed, err := ParseFrame(c.input)
		if err != nil {
			if errors.Is(err, flerr.ErrIncomplete) {
				return timeline.Timeline{}, event.Event{}, false, nil
			}
			c.logger.Error("resp parse error; resynchronizing", zap.Error(err))
			skip := Resync(c.input)
			c.input = c.input[skip:]
			continue
		}
		c.input = c.input[consumed:]

		if frame.Kind != FrameMsg {
			continue
		}
		tl, ev, ok := c.toTimelineEvent(frame)
		if !ok {
			continue
		}
		return tl, ev, true, nil
	}
}

func (c *Connection) toTimelineEvent(frame Frame) (timeline.Timeline, event.Event, bool) {
	prefix := "timeline:"
	if c.cfg.Namespace != "" {
		prefix = c.cfg.Namespace + ":timeline:"
	}
	if !strings.HasPrefix(frame.ChannelText, prefix) {
		c.logger.Warn("dropping message on non-matching channel", zap.String("channel", frame.ChannelText))
		return timeline.Timeline{}, event.Event{}, false
	}
	suffix := frame.ChannelText[len(prefix):]

	tl, err := timeline.FromRedisChannel(suffix, c.cache)
	if err != nil {
		c.logger.Error("dropping message with unparseable timeline",
			zap.String("channel", frame.ChannelText), zap.Error(err))
		return timeline.Timeline{}, event.Event{}, false
	}

	ev, err := event.Parse([]byte(frame.EventText))
	if err != nil {
		c.logger.Warn("dropping message with unparseable event", zap.Error(err))
		return timeline.Timeline{}, event.Event{}, false
	}
	return tl, ev, true
}

// Subscribe issues SUBSCRIBE on the primary socket and mirrors the
// subscription count via SET on the secondary.
func (c *Connection) Subscribe(tl timeline.Timeline, hashtagName string) error {
	_, span := tracing.StartSpan(context.Background(), "redisconn.Subscribe")
	defer span.End()
	return c.sendPubSubCmd("subscribe", tl, hashtagName, "1")
}

// Unsubscribe issues UNSUBSCRIBE and mirrors the count via SET.
func (c *Connection) Unsubscribe(tl timeline.Timeline, hashtagName string) error {
	_, span := tracing.StartSpan(context.Background(), "redisconn.Unsubscribe")
	defer span.End()
	return c.sendPubSubCmd("unsubscribe", tl, hashtagName, "0")
}

func (c *Connection) sendPubSubCmd(cmd string, tl timeline.Timeline, hashtagName, setVal string) error {
	channel, err := c.fullChannel(tl, hashtagName)
	if err != nil {
		return err
	}
	if _, err := c.primary.Write(encodeArray2(cmd, channel)); err != nil {
		return fmt.Errorf("redisconn: sending %s: %w", cmd, err)
	}
	setKey := "subscribed:" + channel
	if _, err := c.secondary.Write(encodeSet(setKey, setVal)); err != nil {
		return fmt.Errorf("redisconn: mirroring %s via SET: %w", cmd, err)
	}
	return nil
}

func (c *Connection) fullChannel(tl timeline.Timeline, hashtagName string) (string, error) {
	ch, err := tl.ToRedisChannel(hashtagName)
	if err != nil {
		return "", err
	}
	if c.cfg.Namespace != "" {
		return c.cfg.Namespace + ":" + ch, nil
	}
	return ch, nil
}

// Reconnect redials both sockets with exponential backoff and replays
// SUBSCRIBE for every timeline with a nonzero refcount, rather than
// exiting the process on a dropped Redis connection.
func (c *Connection) Reconnect(active []ActiveTimeline) error {
	var primary, secondary net.Conn
	operation := func() error {
		p, err := dialAndHandshake(c.cfg, c.logger)
		if err != nil {
			return err
		}
		s, err := dialAndHandshake(c.cfg, c.logger)
		if err != nil {
			p.Close()
			return err
		}
		primary, secondary = p, s
		return nil
	}

	b := backoff.NewExponentialBackOff()
	if err := backoff.Retry(operation, backoff.WithMaxRetries(b, 10)); err != nil {
		return fmt.Errorf("redisconn: reconnect failed: %w", err)
	}

	c.primary, c.secondary = primary, secondary
	c.input = c.input[:0]

	for _, at := range active {
		if err := c.Subscribe(at.Timeline, at.HashtagName); err != nil {
			c.logger.Error("resubscribe after reconnect failed",
				zap.Any("timeline", at.Timeline), zap.Error(err))
		}
	}
	return nil
}

func (c *Connection) Close() error {
	err1 := c.primary.Close()
	err2 := c.secondary.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
