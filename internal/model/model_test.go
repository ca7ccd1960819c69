package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringSet_UnionAndIntersects(t *testing.T) {
	a := NewStringSet("read", "write")
	b := NewStringSet("write", "admin")

	union := a.Union(b)
	assert.ElementsMatch(t, []string{"read", "write", "admin"}, union.Slice())
	assert.True(t, a.Intersects(b))
	assert.False(t, a.Intersects(NewStringSet("delete")))
}

func TestStringSet_EmptySetsDontIntersect(t *testing.T) {
	assert.False(t, NewStringSet().Intersects(NewStringSet("x")))
}

func TestStringSet_JSONRoundTrip(t *testing.T) {
	s := NewStringSet("a", "b", "c")
	data, err := json.Marshal(s)
	require.NoError(t, err)

	var out StringSet
	require.NoError(t, json.Unmarshal(data, &out))
	assert.ElementsMatch(t, s.Slice(), out.Slice())
}

func TestStringSet_ScanNilAndBytes(t *testing.T) {
	var s StringSet
	require.NoError(t, s.Scan(nil))
	assert.Empty(t, s)

	require.NoError(t, s.Scan([]byte(`["read","write"]`)))
	assert.True(t, s.Has("read"))
	assert.True(t, s.Has("write"))
}

func TestSigningKey_CanSignAndVerify(t *testing.T) {
	active := SigningKey{Status: KeyActive}
	deprecated := SigningKey{Status: KeyDeprecated}
	retired := SigningKey{Status: KeyRetired}

	assert.True(t, active.CanSign())
	assert.True(t, active.CanVerify())

	assert.False(t, deprecated.CanSign())
	assert.True(t, deprecated.CanVerify())

	assert.False(t, retired.CanSign())
	assert.False(t, retired.CanVerify())
}
