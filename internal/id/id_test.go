package id

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	n, err := Parse("78")
	require.NoError(t, err)
	assert.Equal(t, Id(78), n)

	_, err = Parse("not-a-number")
	assert.Error(t, err)
}

func TestMarshalJSON(t *testing.T) {
	b, err := json.Marshal(Id(78))
	require.NoError(t, err)
	assert.Equal(t, `"78"`, string(b))
}

func TestUnmarshalJSON_string(t *testing.T) {
	var got Id
	require.NoError(t, json.Unmarshal([]byte(`"78"`), &got))
	assert.Equal(t, Id(78), got)
}

func TestUnmarshalJSON_number(t *testing.T) {
	var got Id
	require.NoError(t, json.Unmarshal([]byte(`78`), &got))
	assert.Equal(t, Id(78), got)
}

func TestUnmarshalJSON_invalid(t *testing.T) {
	var got Id
	assert.Error(t, json.Unmarshal([]byte(`"nope"`), &got))
}

func TestRoundTrip(t *testing.T) {
	want := Id(123456789)
	b, err := json.Marshal(want)
	require.NoError(t, err)
	var got Id
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, want, got)
}
