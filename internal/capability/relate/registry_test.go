package relate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_BuiltinsAndInverses(t *testing.T) {
	r := NewRegistry()

	assert.True(t, r.Known("uses"))
	assert.True(t, r.Known("used_by"), "inverse direction is registered too")
	assert.Equal(t, "used_by", r.Inverse("uses"))
	assert.Equal(t, "uses", r.Inverse("used_by"))

	// self-inverse types mirror with their own type
	assert.Equal(t, "similar_to", r.Inverse("similar_to"))
	assert.Equal(t, "shares_verb", r.Inverse("shares_verb"))

	assert.False(t, r.Known("mentors"))
	assert.Equal(t, "", r.Inverse("mentors"))
}

func TestRegistry_RegisterCustomType(t *testing.T) {
	r := NewRegistry()
	r.Register("mentors", "mentored_by")
	assert.True(t, r.Known("mentors"))
	assert.True(t, r.Known("mentored_by"))
	assert.Equal(t, "mentors", r.Inverse("mentored_by"))

	// one-way types have no mirror
	r.Register("references", "")
	assert.True(t, r.Known("references"))
	assert.Equal(t, "", r.Inverse("references"))

	types := r.Types()
	require.NotEmpty(t, types)
	for i := 1; i < len(types); i++ {
		assert.LessOrEqual(t, types[i-1], types[i])
	}
	assert.Contains(t, types, "mentors")
}
