package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomStoreReMintsCollidingID(t *testing.T) {
	s := NewRoomStore()
	a := NewRoom(false)
	s.Add(a)

	b := NewRoom(false)
	b.ID = a.ID
	s.Add(b)

	require.NotEqual(t, a.ID, b.ID, "colliding id gets re-minted")
	assert.Equal(t, 2, s.Len())

	got, ok := s.Get(a.ID)
	require.True(t, ok)
	assert.Same(t, a, got)
	got, ok = s.Get(b.ID)
	require.True(t, ok)
	assert.Same(t, b, got)
}

func TestRoomStoreDelete(t *testing.T) {
	s := NewRoomStore()
	r := NewRoom(true)
	s.Add(r)
	s.Delete(r.ID)
	_, ok := s.Get(r.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}
