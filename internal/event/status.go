package event

import (
	"strings"

	"github.com/flodgatt/flodgatt/internal/id"
	"github.com/flodgatt/flodgatt/internal/subscription"
)

// Status is the typed payload of an Update event. Only the fields the
// filter pipeline and payload helpers need are modeled; everything else
// round-trips through RawPayload, since the event is delivered verbatim.
type Status struct {
	Account            Account        `json:"account"`
	Language           *string        `json:"language"`
	Mentions           []Mention      `json:"mentions"`
	InReplyToAccountID *string        `json:"in_reply_to_account_id"`
	Reblog             *StatusSummary `json:"reblog"`
}

type StatusSummary struct {
	Account Account `json:"account"`
}

type Account struct {
	ID   id.Id  `json:"id"`
	Acct string `json:"acct"`
}

type Mention struct {
	ID id.Id `json:"id"`
}

// LanguageNot returns true if the update should be dropped under the
// language filter. Mirrors Mastodon's language_not check exactly,
// including treating an unset language and an empty-string language
// identically.
func (s Status) LanguageNot(allowed map[string]struct{}) bool {
	const allow, reject = false, true
	if len(allowed) == 0 {
		return allow
	}
	if s.Language == nil || *s.Language == "" {
		return allow
	}
	if _, ok := allowed[*s.Language]; ok {
		return allow
	}
	return reject
}

// InvolvedUsers computes author ∪ mentions ∪ in-reply-to ∪ reblog
// author — the set eligible for the involved-user filter stage.
func (s Status) InvolvedUsers() map[id.Id]struct{} {
	involved := make(map[id.Id]struct{}, len(s.Mentions)+2)
	for _, m := range s.Mentions {
		involved[m.ID] = struct{}{}
	}
	involved[s.Account.ID] = struct{}{}
	if s.InReplyToAccountID != nil {
		if uid, err := id.Parse(*s.InReplyToAccountID); err == nil {
			involved[uid] = struct{}{}
		}
	}
	if s.Reblog != nil {
		involved[s.Reblog.Account.ID] = struct{}{}
	}
	return involved
}

// InvolvesAny runs filter-pipeline stages 2–4 against blocks, returning
// true if the update must be dropped. Mirrors Status::involves_any.
func (s Status) InvolvesAny(blocks subscription.Blocks) bool {
	const allow, reject = false, true

	if _, blocking := blocks.BlockingUsers[s.Account.ID]; blocking {
		return reject
	}
	for uid := range s.InvolvedUsers() {
		if _, blocked := blocks.BlockedUsers[uid]; blocked {
			return reject
		}
	}

	if domain, ok := domainOf(s.Account.Acct); ok {
		if _, blocked := blocks.BlockedDomains[domain]; blocked {
			return reject
		}
	}
	return allow
}

// domainOf extracts the "@domain" suffix of an acct string; a
// local-instance account has no domain and never matches a domain
// block.
func domainOf(acct string) (string, bool) {
	idx := strings.Index(acct, "@")
	if idx < 0 {
		return "", false
	}
	return acct[idx+1:], true
}
