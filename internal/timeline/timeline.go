// Package timeline implements Flodgatt's canonical timeline identifier:
// the (Stream, Reach, Content) triple and its bidirectional mapping
// to/from Mastodon's Redis pub/sub channel-name grammar.
package timeline

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/flodgatt/flodgatt/internal/id"
)

type Stream struct {
	kind streamKind
	// id is meaningful for User, List, Direct and (as a resolved numeric
	// tag id) Hashtag; zero otherwise.
	id id.Id
}

type streamKind int

const (
	StreamUnset streamKind = iota
	StreamPublic
	StreamUser
	StreamList
	StreamDirect
	StreamHashtag
)

func Public() Stream             { return Stream{kind: StreamPublic} }
func Unset() Stream              { return Stream{kind: StreamUnset} }
func User(u id.Id) Stream        { return Stream{kind: StreamUser, id: u} }
func List(l id.Id) Stream        { return Stream{kind: StreamList, id: l} }
func Direct(d id.Id) Stream      { return Stream{kind: StreamDirect, id: d} }
func Hashtag(tagID id.Id) Stream { return Stream{kind: StreamHashtag, id: tagID} }

func (s Stream) Kind() streamKind { return s.kind }
func (s Stream) ID() id.Id        { return s.id }

type Reach int

const (
	Local Reach = iota
	Federated
)

type Content int

const (
	All Content = iota
	Media
	Notification
)

// Timeline is the canonical (Stream, Reach, Content) triple. It is a
// plain comparable value so it can be used directly as a map key (the
// SubscriptionManager's refcount map keys on it).
type Timeline struct {
	Stream  Stream
	Reach   Reach
	Content Content
}

func New(s Stream, r Reach, c Content) (Timeline, error) {
	t := Timeline{Stream: s, Reach: r, Content: c}
	if !t.legal() {
		return Timeline{}, fmt.Errorf("timeline: illegal combination %+v", t)
	}
	return t, nil
}

// legal enforces the allowed Stream/Reach/Content combinations. Any
// triple not listed here is a parse error, never silently accepted.
func (t Timeline) legal() bool {
	switch t.Stream.kind {
	case StreamPublic:
		return (t.Content == All || t.Content == Media)
	case StreamHashtag:
		return (t.Reach == Local || t.Reach == Federated) && t.Content == All
	case StreamUser:
		return t.Reach == Federated && (t.Content == All || t.Content == Notification)
	case StreamList, StreamDirect:
		return t.Reach == Federated && t.Content == All
	default:
		return false
	}
}

// ToRedisChannel renders the bit-exact Redis channel string for this
// timeline. hashtagName is required (and only used) when Stream is
// Hashtag, since Redis channels carry the tag name, not its numeric id.
func (t Timeline) ToRedisChannel(hashtagName string) (string, error) {
	switch {
	case t.Stream.kind == StreamPublic && t.Reach == Federated && t.Content == All:
		return "timeline:public", nil
	case t.Stream.kind == StreamPublic && t.Reach == Local && t.Content == All:
		return "timeline:public:local", nil
	case t.Stream.kind == StreamPublic && t.Reach == Federated && t.Content == Media:
		return "timeline:public:media", nil
	case t.Stream.kind == StreamPublic && t.Reach == Local && t.Content == Media:
		return "timeline:public:local:media", nil
	case t.Stream.kind == StreamHashtag && t.Reach == Federated && t.Content == All:
		if hashtagName == "" {
			return "", fmt.Errorf("timeline: missing hashtag name")
		}
		return "timeline:hashtag:" + hashtagName, nil
	case t.Stream.kind == StreamHashtag && t.Reach == Local && t.Content == All:
		if hashtagName == "" {
			return "", fmt.Errorf("timeline: missing hashtag name")
		}
		return "timeline:hashtag:" + hashtagName + ":local", nil
	case t.Stream.kind == StreamUser && t.Reach == Federated && t.Content == All:
		return "timeline:" + t.Stream.id.String(), nil
	case t.Stream.kind == StreamUser && t.Reach == Federated && t.Content == Notification:
		return "timeline:" + t.Stream.id.String() + ":notification", nil
	case t.Stream.kind == StreamList && t.Reach == Federated && t.Content == All:
		return "timeline:list:" + t.Stream.id.String(), nil
	case t.Stream.kind == StreamDirect && t.Reach == Federated && t.Content == All:
		return "timeline:direct:" + t.Stream.id.String(), nil
	default:
		return "", fmt.Errorf("timeline: illegal combination %+v", t)
	}
}

// TagCache is a bidirectional, capacity-bounded (LRU) cache from
// hashtag name to numeric id and back, populated at subscribe time from
// the request layer's Postgres lookup and consulted (read-through) by
// the Redis parser when it sees a `timeline:hashtag:<name>` channel.
// Capacity is fixed at 1000 entries.
type TagCache struct {
	cache *lruCache
}

func NewTagCache() *TagCache {
	return &TagCache{cache: newLRUCache(1000)}
}

// Put records name↔id together, in one operation, so the cache stays
// internally consistent (if id_to_name[x]=y then name_to_id[y]=x was
// set in the same operation).
func (c *TagCache) Put(name string, tagID id.Id) {
	c.cache.put(name, tagID)
}

func (c *TagCache) IDFromName(name string) (id.Id, bool) {
	return c.cache.getByName(name)
}

func (c *TagCache) NameFromID(tagID id.Id) (string, bool) {
	return c.cache.getByID(tagID)
}

// FromRedisChannel parses a raw Redis channel suffix (with any
// configured namespace prefix and the leading "timeline:" already
// stripped by the caller) into a Timeline. A Hashtag channel requires
// the name to already be present in cache
// (populated by the subscribing side before SUBSCRIBE is issued); a
// cache miss is reported as an error, never guessed at.
func FromRedisChannel(channel string, cache *TagCache) (Timeline, error) {
	parts := strings.Split(channel, ":")
	switch {
	case len(parts) == 1 && parts[0] == "public":
		return Timeline{Stream: Public(), Reach: Federated, Content: All}, nil
	case len(parts) == 2 && parts[0] == "public" && parts[1] == "local":
		return Timeline{Stream: Public(), Reach: Local, Content: All}, nil
	case len(parts) == 2 && parts[0] == "public" && parts[1] == "media":
		return Timeline{Stream: Public(), Reach: Federated, Content: Media}, nil
	case len(parts) == 3 && parts[0] == "public" && parts[1] == "local" && parts[2] == "media":
		return Timeline{Stream: Public(), Reach: Local, Content: Media}, nil
	case len(parts) == 2 && parts[0] == "hashtag":
		tagID, ok := cache.IDFromName(parts[1])
		if !ok {
			return Timeline{}, fmt.Errorf("timeline: unknown hashtag %q", parts[1])
		}
		return Timeline{Stream: Hashtag(tagID), Reach: Federated, Content: All}, nil
	case len(parts) == 3 && parts[0] == "hashtag" && parts[2] == "local":
		tagID, ok := cache.IDFromName(parts[1])
		if !ok {
			return Timeline{}, fmt.Errorf("timeline: unknown hashtag %q", parts[1])
		}
		return Timeline{Stream: Hashtag(tagID), Reach: Local, Content: All}, nil
	case len(parts) == 1:
		uid, err := parseID(parts[0])
		if err != nil {
			return Timeline{}, err
		}
		return Timeline{Stream: User(uid), Reach: Federated, Content: All}, nil
	case len(parts) == 2 && parts[1] == "notification":
		uid, err := parseID(parts[0])
		if err != nil {
			return Timeline{}, err
		}
		return Timeline{Stream: User(uid), Reach: Federated, Content: Notification}, nil
	case len(parts) == 2 && parts[0] == "list":
		lid, err := parseID(parts[1])
		if err != nil {
			return Timeline{}, err
		}
		return Timeline{Stream: List(lid), Reach: Federated, Content: All}, nil
	case len(parts) == 2 && parts[0] == "direct":
		did, err := parseID(parts[1])
		if err != nil {
			return Timeline{}, err
		}
		return Timeline{Stream: Direct(did), Reach: Federated, Content: All}, nil
	default:
		return Timeline{}, fmt.Errorf("timeline: unrecognized channel suffix %q", channel)
	}
}

func parseID(s string) (id.Id, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("timeline: invalid id %q: %w", s, err)
	}
	return id.Id(n), nil
}
