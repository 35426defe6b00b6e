package timeline

import (
	"fmt"
	"testing"

	"github.com/flodgatt/flodgatt/internal/id"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToRedisChannel_public(t *testing.T) {
	tl := Timeline{Stream: Public(), Reach: Federated, Content: All}
	ch, err := tl.ToRedisChannel("")
	require.NoError(t, err)
	assert.Equal(t, "timeline:public", ch)
}

func TestToRedisChannel_publicLocalMedia(t *testing.T) {
	tl := Timeline{Stream: Public(), Reach: Local, Content: Media}
	ch, err := tl.ToRedisChannel("")
	require.NoError(t, err)
	assert.Equal(t, "timeline:public:local:media", ch)
}

func TestToRedisChannel_userNotification(t *testing.T) {
	tl := Timeline{Stream: User(id.Id(1)), Reach: Federated, Content: Notification}
	ch, err := tl.ToRedisChannel("")
	require.NoError(t, err)
	assert.Equal(t, "timeline:1:notification", ch)
}

func TestToRedisChannel_illegalCombination(t *testing.T) {
	tl := Timeline{Stream: Public(), Reach: Federated, Content: Notification}
	_, err := tl.ToRedisChannel("")
	assert.Error(t, err)
}

func TestHashtagRoundTrip(t *testing.T) {
	cache := NewTagCache()
	cache.Put("rust", id.Id(7))

	tl := Timeline{Stream: Hashtag(id.Id(7)), Reach: Federated, Content: All}
	ch, err := tl.ToRedisChannel("rust")
	require.NoError(t, err)
	assert.Equal(t, "timeline:hashtag:rust", ch)

	got, err := FromRedisChannel("hashtag:rust", cache)
	require.NoError(t, err)
	assert.Equal(t, tl, got)
}

func TestFromRedisChannel_unknownHashtagIsError(t *testing.T) {
	cache := NewTagCache()
	_, err := FromRedisChannel("hashtag:unknown", cache)
	assert.Error(t, err)
}

func TestFromRedisChannel_allLegalForms(t *testing.T) {
	cache := NewTagCache()
	cache.Put("rust", id.Id(7))

	cases := []struct {
		channel string
		want    Timeline
	}{
		{"public", Timeline{Stream: Public(), Reach: Federated, Content: All}},
		{"public:local", Timeline{Stream: Public(), Reach: Local, Content: All}},
		{"public:media", Timeline{Stream: Public(), Reach: Federated, Content: Media}},
		{"public:local:media", Timeline{Stream: Public(), Reach: Local, Content: Media}},
		{"hashtag:rust:local", Timeline{Stream: Hashtag(id.Id(7)), Reach: Local, Content: All}},
		{"1", Timeline{Stream: User(id.Id(1)), Reach: Federated, Content: All}},
		{"1:notification", Timeline{Stream: User(id.Id(1)), Reach: Federated, Content: Notification}},
		{"list:5", Timeline{Stream: List(id.Id(5)), Reach: Federated, Content: All}},
		{"direct:9", Timeline{Stream: Direct(id.Id(9)), Reach: Federated, Content: All}},
	}
	for _, c := range cases {
		got, err := FromRedisChannel(c.channel, cache)
		require.NoError(t, err, c.channel)
		assert.Equal(t, c.want, got, c.channel)
	}
}

func TestTagCache_LRUEviction(t *testing.T) {
	cache := NewTagCache()
	for i := 0; i < 1001; i++ {
		cache.Put(fmt.Sprintf("tag%d", i), id.Id(i))
	}
	_, ok := cache.IDFromName("tag0")
	assert.False(t, ok, "oldest entry should have been evicted once capacity exceeded")
	_, ok = cache.IDFromName("tag1000")
	assert.True(t, ok, "most recently inserted entry should still be present")
}

func TestTagCache_bidirectionalConsistency(t *testing.T) {
	cache := NewTagCache()
	cache.Put("golang", id.Id(42))

	gotID, ok := cache.IDFromName("golang")
	require.True(t, ok)
	assert.Equal(t, id.Id(42), gotID)

	gotName, ok := cache.NameFromID(id.Id(42))
	require.True(t, ok)
	assert.Equal(t, "golang", gotName)
}
