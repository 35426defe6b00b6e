// Package event implements Flodgatt's tagged-union event model: a
// typed CheckedEvent for known Mastodon event kinds, a DynEvent
// fallback for schema drift, and Ping for the manager's periodic
// keep-alive.
package event

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/flodgatt/flodgatt/internal/id"
	"github.com/flodgatt/flodgatt/internal/subscription"
)

// Kind names the wire event name.
type Kind string

const (
	KindUpdate               Kind = "update"
	KindNotification         Kind = "notification"
	KindDelete               Kind = "delete"
	KindAnnouncement         Kind = "announcement"
	KindAnnouncementReaction Kind = "announcement.reaction"
	KindAnnouncementDelete   Kind = "announcement.delete"
	KindConversation         Kind = "conversation"
	KindFiltersChanged       Kind = "filters_changed"
)

// Variant discriminates the Event tagged union.
type Variant int

const (
	VariantTypeSafe Variant = iota
	VariantDynamic
	VariantPing
)

// Event is Mastodon's published event, in one of three forms. Exactly
// one of Checked / Dynamic is populated, depending on Variant; neither
// is populated when Variant == VariantPing.
type Event struct {
	Variant Variant
	Checked CheckedEvent
	Dynamic DynEvent
}

// CheckedEvent is the strictly-typed form, used when Payload parses
// successfully as the known shape for Kind.
type CheckedEvent struct {
	Kind       Kind
	RawPayload json.RawMessage
	Status     Status // populated only when Kind == KindUpdate
}

// DynEvent is the schema-drift fallback: the envelope always parses
// (event name + arbitrary payload JSON), and — only when the event name
// is "update" — a narrow DynStatus is extracted for filtering. The
// extraction happens eagerly inside Parse, not on first use.
type DynEvent struct {
	EventName string          `json:"event"`
	Payload   json.RawMessage `json:"payload"`
	QueuedAt  *int64          `json:"queued_at,omitempty"`
	Status    *DynStatus
}

// DynStatus holds just the fields the filter pipeline needs, extracted
// from an untyped payload.
type DynStatus struct {
	Language       *string
	InvolvedUsers  []string
	AuthorAcct     string
}

// Ping builds the keep-alive event.
func Ping() Event { return Event{Variant: VariantPing} }

// rawEnvelope matches Mastodon's published `{"event":..,"payload":..,"queued_at":..}`
// wire shape, used both for strict decode and as the DynEvent fallback shape.
type rawEnvelope struct {
	Event    string          `json:"event"`
	Payload  json.RawMessage `json:"payload"`
	QueuedAt *int64          `json:"queued_at,omitempty"`
}

// Parse attempts a strict, typed parse first; on any failure it falls
// back to the dynamic form so a schema skew between Mastodon and
// Flodgatt degrades gracefully instead of dropping the message.
func Parse(raw []byte) (Event, error) {
	var env rawEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Event{}, fmt.Errorf("event: invalid envelope: %w", err)
	}

	kind := Kind(env.Event)
	if checked, ok := tryParseChecked(kind, env.Payload); ok {
		return Event{Variant: VariantTypeSafe, Checked: checked}, nil
	}

	dyn := DynEvent{EventName: env.Event, Payload: env.Payload, QueuedAt: env.QueuedAt}
	if dyn.EventName == string(KindUpdate) {
		if status, err := newDynStatus(env.Payload); err == nil {
			dyn.Status = status
		}
	}
	return Event{Variant: VariantDynamic, Dynamic: dyn}, nil
}

func tryParseChecked(kind Kind, payload json.RawMessage) (CheckedEvent, bool) {
	switch kind {
	case KindUpdate:
		var s Status
		dec := json.NewDecoder(bytes.NewReader(payload))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&s); err != nil {
			return CheckedEvent{}, false
		}
		return CheckedEvent{Kind: kind, RawPayload: payload, Status: s}, true
	case KindNotification, KindDelete, KindAnnouncement, KindAnnouncementReaction,
		KindAnnouncementDelete, KindConversation, KindFiltersChanged:
		return CheckedEvent{Kind: kind, RawPayload: payload}, true
	default:
		return CheckedEvent{}, false
	}
}

func newDynStatus(payload json.RawMessage) (*DynStatus, error) {
	var p struct {
		Account struct {
			ID   string `json:"id"`
			Acct string `json:"acct"`
		} `json:"account"`
		Language           *string `json:"language"`
		Mentions           []struct {
			ID string `json:"id"`
		} `json:"mentions"`
		InReplyToAccountID *string `json:"in_reply_to_account_id"`
		Reblog             *struct {
			Account struct {
				ID string `json:"id"`
			} `json:"account"`
		} `json:"reblog"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("event: dynamic status parse: %w", err)
	}
	involved := []string{p.Account.ID}
	for _, m := range p.Mentions {
		involved = append(involved, m.ID)
	}
	if p.InReplyToAccountID != nil {
		involved = append(involved, *p.InReplyToAccountID)
	}
	if p.Reblog != nil {
		involved = append(involved, p.Reblog.Account.ID)
	}
	return &DynStatus{
		Language:      p.Language,
		InvolvedUsers: involved,
		AuthorAcct:    p.Account.Acct,
	}, nil
}

// LanguageNot mirrors Status.LanguageNot for the dynamic path.
func (d *DynStatus) LanguageNot(allowed map[string]struct{}) bool {
	const allow, reject = false, true
	if len(allowed) == 0 {
		return allow
	}
	if d.Language == nil || *d.Language == "" {
		return allow
	}
	if _, ok := allowed[*d.Language]; ok {
		return allow
	}
	return reject
}

// InvolvesAny mirrors DynStatus::involves_any.
func (d *DynStatus) InvolvesAny(blocks subscription.Blocks) bool {
	const allow, reject = false, true
	for _, raw := range d.InvolvedUsers {
		uid, err := id.Parse(raw)
		if err != nil {
			continue
		}
		if _, blocked := blocks.BlockedUsers[uid]; blocked {
			return reject
		}
	}
	if len(d.InvolvedUsers) > 0 {
		if authorID, err := id.Parse(d.InvolvedUsers[0]); err == nil {
			if _, blocking := blocks.BlockingUsers[authorID]; blocking {
				return reject
			}
		}
	}
	if domain, ok := domainOf(d.AuthorAcct); ok {
		if _, blocked := blocks.BlockedDomains[domain]; blocked {
			return reject
		}
	}
	return allow
}

// EventName returns the wire event name for this Event.
func (e Event) EventName() string {
	switch e.Variant {
	case VariantTypeSafe:
		return string(e.Checked.Kind)
	case VariantDynamic:
		return e.Dynamic.EventName
	default:
		return ""
	}
}

// MarshalWire renders the `{"event":..,"payload":..}` envelope. The
// payload is the JSON payload encoded *as a string* (opaque to
// Flodgatt, matching existing client expectations) rather than an
// embedded object. FiltersChanged has no payload field.
func (e Event) MarshalWire() ([]byte, error) {
	if e.Variant == VariantTypeSafe && e.Checked.Kind == KindFiltersChanged {
		return json.Marshal(struct {
			Event string `json:"event"`
		}{Event: string(KindFiltersChanged)})
	}

	var raw json.RawMessage
	switch e.Variant {
	case VariantTypeSafe:
		raw = e.Checked.RawPayload
	case VariantDynamic:
		raw = e.Dynamic.Payload
	}
	payloadStr, err := payloadAsString(raw)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Event   string `json:"event"`
		Payload string `json:"payload"`
	}{Event: e.EventName(), Payload: payloadStr})
}

// payloadAsString returns the raw payload JSON, byte for byte, as a
// string, since Mastodon's WS/SSE clients expect `payload` to be a JSON
// string, not an embedded object.
func payloadAsString(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	if !json.Valid(raw) {
		return "", fmt.Errorf("event: invalid payload JSON")
	}
	return string(raw), nil
}
