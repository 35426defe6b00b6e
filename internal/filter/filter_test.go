package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flodgatt/flodgatt/internal/event"
	"github.com/flodgatt/flodgatt/internal/subscription"
)

func sub(allowedLangs map[string]struct{}, blocks subscription.Blocks) subscription.Subscription {
	return subscription.Subscription{AllowedLangs: allowedLangs, Blocks: blocks}
}

func TestAllow_pingAlwaysPasses(t *testing.T) {
	assert.True(t, Allow(event.Ping(), sub(nil, subscription.NewBlocks())))
}

func TestAllow_nonUpdateTypedAlwaysPasses(t *testing.T) {
	ev := event.Event{Variant: event.VariantTypeSafe, Checked: event.CheckedEvent{Kind: event.KindDelete}}
	assert.True(t, Allow(ev, sub(nil, subscription.NewBlocks())))
}

func TestAllow_languageFilterRejects(t *testing.T) {
	raw := []byte(`{"event":"update","payload":{"account":{"id":"1","acct":"a"},"language":"fr"}}`)
	ev, err := event.Parse(raw)
	require.NoError(t, err)

	assert.False(t, Allow(ev, sub(map[string]struct{}{"en": {}}, subscription.NewBlocks())))
	assert.True(t, Allow(ev, sub(map[string]struct{}{"fr": {}}, subscription.NewBlocks())))
	assert.True(t, Allow(ev, sub(nil, subscription.NewBlocks())))
}

func TestAllow_blockedUserRejects(t *testing.T) {
	raw := []byte(`{"event":"update","payload":{"account":{"id":"1","acct":"a"},"mentions":[{"id":"5"}]}}`)
	ev, err := event.Parse(raw)
	require.NoError(t, err)

	blocks := subscription.NewBlocks()
	blocks.BlockedUsers[5] = struct{}{}
	assert.False(t, Allow(ev, sub(nil, blocks)))
}

func TestAllow_blockedDomainRejects(t *testing.T) {
	raw := []byte(`{"event":"update","payload":{"account":{"id":"1","acct":"a@remote.example"}}}`)
	ev, err := event.Parse(raw)
	require.NoError(t, err)

	blocks := subscription.NewBlocks()
	blocks.BlockedDomains["remote.example"] = struct{}{}
	assert.False(t, Allow(ev, sub(nil, blocks)))
}

func TestAllow_firstMatchWins_languageBeforeBlocks(t *testing.T) {
	raw := []byte(`{"event":"update","payload":{"account":{"id":"1","acct":"a@remote.example"},"language":"fr"}}`)
	ev, err := event.Parse(raw)
	require.NoError(t, err)

	blocks := subscription.NewBlocks()
	blocks.BlockedDomains["remote.example"] = struct{}{}
	assert.False(t, Allow(ev, sub(map[string]struct{}{"en": {}}, blocks)))
}

func TestAllow_dynamicVariant_usesNarrowStatus(t *testing.T) {
	raw := []byte(`{"event":"update","payload":{"account":{"id":"1","acct":"a"},"totally_unknown_field":42,"mentions":[{"id":"5"}]}}`)
	ev, err := event.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, event.VariantDynamic, ev.Variant)

	blocks := subscription.NewBlocks()
	blocks.BlockedUsers[5] = struct{}{}
	assert.False(t, Allow(ev, sub(nil, blocks)))
	assert.True(t, Allow(ev, sub(nil, subscription.NewBlocks())))
}
