package event

import (
	"encoding/json"
	"testing"

	"github.com/flodgatt/flodgatt/internal/subscription"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const typedUpdatePayload = `{
	"event":"update",
	"payload":{"account":{"id":"78","acct":"bot@example"},"language":"en","mentions":[]},
	"queued_at":1568227693541
}`

func TestParse_typedUpdate(t *testing.T) {
	ev, err := Parse([]byte(typedUpdatePayload))
	require.NoError(t, err)
	require.Equal(t, VariantTypeSafe, ev.Variant)
	assert.Equal(t, KindUpdate, ev.Checked.Kind)
	require.NotNil(t, ev.Checked.Status.Language)
	assert.Equal(t, "en", *ev.Checked.Status.Language)
}

func TestParse_languageFilter(t *testing.T) {
	ev, err := Parse([]byte(typedUpdatePayload))
	require.NoError(t, err)

	assert.False(t, ev.Checked.Status.LanguageNot(map[string]struct{}{"en": {}}))
	assert.True(t, ev.Checked.Status.LanguageNot(map[string]struct{}{"fr": {}}))
	assert.False(t, ev.Checked.Status.LanguageNot(map[string]struct{}{}))
}

func TestParse_dynamicFallback_unknownField(t *testing.T) {
	raw := []byte(`{"event":"update","payload":{"account":{"id":"78","acct":"bot@example"},"totally_unknown_field":42}}`)
	ev, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, VariantDynamic, ev.Variant)
	require.NotNil(t, ev.Dynamic.Status)
	assert.Equal(t, []string{"78"}, ev.Dynamic.Status.InvolvedUsers)
}

func TestParse_nonUpdateTyped(t *testing.T) {
	raw := []byte(`{"event":"delete","payload":"123"}`)
	ev, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, VariantTypeSafe, ev.Variant)
	assert.Equal(t, KindDelete, ev.Checked.Kind)
}

func TestInvolvesAny_blockedUser(t *testing.T) {
	raw := []byte(`{"event":"update","payload":{"account":{"id":"78","acct":"bot@example"},"mentions":[{"id":"5"}]}}`)
	ev, err := Parse([]byte(raw))
	require.NoError(t, err)

	blocks := subscription.NewBlocks()
	blocks.BlockedUsers[5] = struct{}{}
	assert.True(t, ev.Checked.Status.InvolvesAny(blocks))
}

func TestInvolvesAny_blockedDomain(t *testing.T) {
	raw := []byte(`{"event":"update","payload":{"account":{"id":"78","acct":"bot@remote.example"}}}`)
	ev, err := Parse(raw)
	require.NoError(t, err)

	blocks := subscription.NewBlocks()
	blocks.BlockedDomains["remote.example"] = struct{}{}
	assert.True(t, ev.Checked.Status.InvolvesAny(blocks))
}

func TestInvolvesAny_localAccountNeverDomainBlocked(t *testing.T) {
	raw := []byte(`{"event":"update","payload":{"account":{"id":"78","acct":"localuser"}}}`)
	ev, err := Parse(raw)
	require.NoError(t, err)

	blocks := subscription.NewBlocks()
	blocks.BlockedDomains["remote.example"] = struct{}{}
	assert.False(t, ev.Checked.Status.InvolvesAny(blocks))
}

func TestMarshalWire_filtersChangedHasNoPayload(t *testing.T) {
	ev := Event{Variant: VariantTypeSafe, Checked: CheckedEvent{Kind: KindFiltersChanged}}
	b, err := ev.MarshalWire()
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"filters_changed"}`, string(b))
}

func TestMarshalWire_payloadIsString(t *testing.T) {
	ev, err := Parse([]byte(typedUpdatePayload))
	require.NoError(t, err)
	b, err := ev.MarshalWire()
	require.NoError(t, err)

	var decoded struct {
		Event   string `json:"event"`
		Payload string `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, "update", decoded.Event)
	assert.Contains(t, decoded.Payload, `"language":"en"`)
}
