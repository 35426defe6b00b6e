// Package filter implements the per-client filter pipeline: language
// allow-list, then involved-user block, blocking-user, and domain
// block, first-match-wins. It is a thin wrapper over the Status/
// DynStatus methods already implemented in internal/event — this
// package's job is only to pick the right method for the Event variant
// in front of it and apply subscription-specific inputs.
package filter

import (
	"github.com/flodgatt/flodgatt/internal/event"
	"github.com/flodgatt/flodgatt/internal/subscription"
)

// Allow reports whether ev should be delivered to a client holding sub.
// Ping and non-Update CheckedEvents carry nothing to filter on and
// always pass; a DynEvent with no extracted DynStatus (an update whose
// payload itself didn't parse into the narrow shape) also passes,
// following a "can't evaluate, don't drop" stance for genuinely
// unparseable payloads.
func Allow(ev event.Event, sub subscription.Subscription) bool {
	switch ev.Variant {
	case event.VariantPing:
		return true
	case event.VariantTypeSafe:
		if ev.Checked.Kind != event.KindUpdate {
			return true
		}
		return allowStatus(ev.Checked.Status, sub)
	case event.VariantDynamic:
		if ev.Dynamic.Status == nil {
			return true
		}
		return allowDynStatus(ev.Dynamic.Status, sub)
	default:
		return true
	}
}

func allowStatus(s event.Status, sub subscription.Subscription) bool {
	if s.LanguageNot(sub.AllowedLangs) {
		return false
	}
	if s.InvolvesAny(sub.Blocks) {
		return false
	}
	return true
}

func allowDynStatus(s *event.DynStatus, sub subscription.Subscription) bool {
	if s.LanguageNot(sub.AllowedLangs) {
		return false
	}
	if s.InvolvesAny(sub.Blocks) {
		return false
	}
	return true
}
