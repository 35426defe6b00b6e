// Package subscription defines the plain data descriptor the request
// layer hands to the core on connect. Nothing in this package parses
// HTTP or talks to Postgres — it just holds validated, immutable data.
package subscription

import (
	"github.com/flodgatt/flodgatt/internal/id"
	"github.com/flodgatt/flodgatt/internal/timeline"
)

// Blocks carries the per-user block state consulted by the filter
// pipeline's later stages.
type Blocks struct {
	BlockedDomains map[string]struct{}
	BlockedUsers   map[id.Id]struct{}
	BlockingUsers  map[id.Id]struct{}
}

func NewBlocks() Blocks {
	return Blocks{
		BlockedDomains: make(map[string]struct{}),
		BlockedUsers:   make(map[id.Id]struct{}),
		BlockingUsers:  make(map[id.Id]struct{}),
	}
}

// Subscription is immutable for the lifetime of a client connection.
type Subscription struct {
	Timeline     timeline.Timeline
	AllowedLangs map[string]struct{}
	Blocks       Blocks

	// HashtagName is set only when Timeline.Stream is Hashtag; it is the
	// name the request layer resolved via Postgres and used to warm the
	// shared TagCache before SUBSCRIBE was issued.
	HashtagName string

	// AccessToken is retained only for diagnostics/logging; the core
	// never re-validates it (validation happened at the request layer).
	AccessToken string
}
