package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeFillsDefaults(t *testing.T) {
	var p ProfileSnapshot
	p.Normalize()
	assert.True(t, IsGuestID(p.ID))
	assert.Equal(t, "anonymous", p.Username)
	assert.Equal(t, DefaultRating, p.Rating)
}

func TestNormalizeKeepsProvidedFields(t *testing.T) {
	p := ProfileSnapshot{ID: "alice", Username: "Alice", Rating: 1540}
	p.Normalize()
	assert.Equal(t, "alice", p.ID)
	assert.Equal(t, "Alice", p.Username)
	assert.Equal(t, 1540, p.Rating)
}

func TestIsGuestID(t *testing.T) {
	assert.True(t, IsGuestID(NewGuestID()))
	assert.False(t, IsGuestID("alice"))
	assert.False(t, IsGuestID("guest-"), "prefix alone is not a guest id")
	assert.False(t, IsGuestID("guest-not-a-uuid"))
	assert.False(t, IsGuestID(""))
}

func TestStoneOpponent(t *testing.T) {
	assert.Equal(t, StoneWhite, StoneBlack.Opponent())
	assert.Equal(t, StoneBlack, StoneWhite.Opponent())
}
