package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbedded(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 12, c.Len())

	for code := 1; code <= 7; code++ {
		m, ok := c.Lookup(string(rune('0' + code)))
		require.True(t, ok, "resin code %d", code)
		require.NotNil(t, m.ResinCode)
		assert.Equal(t, code, *m.ResinCode)
	}
}

func TestLookup(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	m, ok := c.Lookup("pet")
	require.True(t, ok)
	assert.Equal(t, "1", m.Code)
	assert.True(t, m.Recyclable)

	m, ok = c.Lookup(" Glass ")
	require.True(t, ok)
	assert.Equal(t, "glass", m.Code)
	assert.Nil(t, m.ResinCode)

	m, ok = c.Lookup("3")
	require.True(t, ok)
	assert.False(t, m.Recyclable)

	_, ok = c.Lookup("unobtainium")
	assert.False(t, ok)
}

func TestAllReturnsCopy(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	all := c.All()
	all[0].Name = "changed"

	m, _ := c.Lookup("1")
	assert.Equal(t, "PET", m.Name)
}

func TestParseRejectsBadInput(t *testing.T) {
	_, err := Parse([]byte("materials: [ {code: '', name: x} ]"))
	assert.Error(t, err)

	_, err = Parse([]byte("materials:\n  - code: a\n    name: A\n  - code: b\n    name: a\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("materials: {"))
	assert.Error(t, err)
}
