package httpapi

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/flodgatt/flodgatt/internal/id"
	"github.com/flodgatt/flodgatt/internal/timeline"
)

// TagResolver resolves a hashtag name to its numeric Postgres id,
// warming the shared TagCache as a side effect so the RESP parser can
// later map the corresponding Redis channel back to a Timeline.
type TagResolver interface {
	ResolveTag(name string) (id.Id, error)
}

// parseStreamQuery builds a Timeline from the query parameters Mastodon's
// streaming clients send, given the
// connecting user's own id (needed for the "user"/"user:notification"
// streams) and a TagResolver for "hashtag"/"hashtag:local".
//
// Query shape (matches Mastodon's streaming API):
//
//	stream=public|public:local|public:media|public:local:media|
//	       user|user:notification|hashtag|hashtag:local|list|direct
//	tag=<name>      (required when stream starts with "hashtag")
//	list=<id>       (required when stream == "list")
func parseStreamQuery(q url.Values, userID id.Id, tags TagResolver) (tl timeline.Timeline, hashtagName string, err error) {
	stream := q.Get("stream")
	if stream == "" {
		return timeline.Timeline{}, "", fmt.Errorf("httpapi: missing stream parameter")
	}
	parts := strings.Split(stream, ":")

	switch parts[0] {
	case "public":
		reach, content, err := publicModifiers(parts[1:])
		if err != nil {
			return timeline.Timeline{}, "", err
		}
		tl, err = timeline.New(timeline.Public(), reach, content)
		return tl, "", err

	case "user":
		content := timeline.All
		if len(parts) == 2 && parts[1] == "notification" {
			content = timeline.Notification
		} else if len(parts) > 1 {
			return timeline.Timeline{}, "", fmt.Errorf("httpapi: unrecognized stream %q", stream)
		}
		tl, err = timeline.New(timeline.User(userID), timeline.Federated, content)
		return tl, "", err

	case "hashtag":
		name := q.Get("tag")
		if name == "" {
			return timeline.Timeline{}, "", fmt.Errorf("httpapi: hashtag stream requires a tag parameter")
		}
		tagID, err := tags.ResolveTag(name)
		if err != nil {
			return timeline.Timeline{}, "", fmt.Errorf("httpapi: resolving hashtag %q: %w", name, err)
		}
		reach := timeline.Federated
		if len(parts) == 2 && parts[1] == "local" {
			reach = timeline.Local
		} else if len(parts) > 1 {
			return timeline.Timeline{}, "", fmt.Errorf("httpapi: unrecognized stream %q", stream)
		}
		tl, err = timeline.New(timeline.Hashtag(tagID), reach, timeline.All)
		return tl, name, err

	case "list":
		listID, err := id.Parse(q.Get("list"))
		if err != nil {
			return timeline.Timeline{}, "", fmt.Errorf("httpapi: invalid list parameter: %w", err)
		}
		tl, err = timeline.New(timeline.List(listID), timeline.Federated, timeline.All)
		return tl, "", err

	case "direct":
		tl, err = timeline.New(timeline.Direct(userID), timeline.Federated, timeline.All)
		return tl, "", err

	default:
		return timeline.Timeline{}, "", fmt.Errorf("httpapi: unrecognized stream %q", stream)
	}
}

func publicModifiers(mods []string) (timeline.Reach, timeline.Content, error) {
	reach, content := timeline.Federated, timeline.All
	for _, m := range mods {
		switch m {
		case "local":
			reach = timeline.Local
		case "media":
			content = timeline.Media
		default:
			return 0, 0, fmt.Errorf("httpapi: unrecognized public stream modifier %q", m)
		}
	}
	return reach, content, nil
}

// accessToken extracts the bearer token from the query string (WebSocket
// clients that can't set arbitrary headers before the handshake), the
// Authorization header (SSE clients), or the Sec-WebSocket-Protocol
// header (WebSocket clients using the subprotocol-as-token convention),
// matching Mastodon's conventions.
func accessToken(r *http.Request) string {
	if t := r.URL.Query().Get("access_token"); t != "" {
		return t
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	if proto := r.Header.Get("Sec-WebSocket-Protocol"); proto != "" {
		return proto
	}
	return ""
}

// allowedLanguages parses the optional comma-separated "langs" filter
// Mastodon's clients may attach to a subscribe request.
func allowedLanguages(q url.Values) map[string]struct{} {
	raw := q.Get("langs")
	if raw == "" {
		return nil
	}
	out := make(map[string]struct{})
	for _, l := range strings.Split(raw, ",") {
		if l = strings.TrimSpace(l); l != "" {
			out[l] = struct{}{}
		}
	}
	return out
}
