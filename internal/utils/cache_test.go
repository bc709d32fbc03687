package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheExpiry(t *testing.T) {
	c, err := NewCache(10, time.Minute)
	require.NoError(t, err)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("post:detail:a", "payload")
	assert.Equal(t, "payload", c.Get("post:detail:a"))

	now = now.Add(2 * time.Minute)
	assert.Nil(t, c.Get("post:detail:a"))
	assert.Zero(t, c.Len())
}

func TestCacheDeleteAndEviction(t *testing.T) {
	c, err := NewCache(2, time.Hour)
	require.NoError(t, err)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Delete("a")
	assert.Nil(t, c.Get("a"))

	c.Set("c", 3)
	c.Set("d", 4)
	assert.Nil(t, c.Get("b"), "least recently used entry is evicted")
	assert.Equal(t, 2, c.Len())
}

func TestParseID(t *testing.T) {
	id, ok := ParseID("42")
	assert.True(t, ok)
	assert.EqualValues(t, 42, id)

	for _, bad := range []string{"", "0", "-1", "abc"} {
		_, ok := ParseID(bad)
		assert.False(t, ok, bad)
	}
	assert.Equal(t, 0, StringToInt("x"))
	assert.Equal(t, 3, StringToInt("3"))
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("correct-horse")
	require.NoError(t, err)
	assert.True(t, CheckPasswordHash("correct-horse", hash))
	assert.False(t, CheckPasswordHash("wrong", hash))
}
