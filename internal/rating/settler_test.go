package rating

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okstone/gomoku/internal/game"
	"github.com/okstone/gomoku/internal/models"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func ratedResult() game.Result {
	return game.Result{
		RoomID:    "room1",
		Reason:    game.ReasonReport,
		MoveCount: 24,
		Winner:    models.ProfileSnapshot{ID: "alice", Username: "alice", Rating: 1200},
		Loser:     models.ProfileSnapshot{ID: "bob", Username: "bob", Rating: 1200},
	}
}

func TestEligible(t *testing.T) {
	base := ratedResult()
	assert.True(t, Eligible(base))

	private := base
	private.Private = true
	assert.False(t, Eligible(private), "private rooms are never rated")

	guest := base
	guest.Winner.ID = models.NewGuestID()
	assert.False(t, Eligible(guest), "guest on either side blocks settlement")

	guest = base
	guest.Loser.ID = models.NewGuestID()
	assert.False(t, Eligible(guest))

	same := base
	same.Loser.ID = same.Winner.ID
	assert.False(t, Eligible(same), "a player cannot be rated against itself")

	short := base
	short.MoveCount = MinRatedMoves - 1
	assert.False(t, Eligible(short), "reported wins need the move-count floor")

	shortTimeout := short
	shortTimeout.Reason = game.ReasonTimeout
	assert.True(t, Eligible(shortTimeout), "timeouts settle regardless of length")
}

func TestSettleUpdatesBothRatings(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.SetRating(context.Background(), "alice", 1300))
	require.NoError(t, store.SetRating(context.Background(), "bob", 1100))

	s := NewSettler(store, testLogger())
	require.True(t, s.Settle(context.Background(), ratedResult()))

	newW, _ := store.GetRating(context.Background(), "alice")
	newL, _ := store.GetRating(context.Background(), "bob")
	expW, expL := Apply(1300, 1100)
	assert.Equal(t, expW, newW)
	assert.Equal(t, expL, newL)
}

func TestSettleSkipsIneligible(t *testing.T) {
	store := NewMemoryStore()
	s := NewSettler(store, testLogger())

	res := ratedResult()
	res.Private = true
	assert.False(t, s.Settle(context.Background(), res))

	r, _ := store.GetRating(context.Background(), "alice")
	assert.Equal(t, models.DefaultRating, r, "nothing written for skipped games")
}

// failingStore errors on every read to exercise the default-rating fallback.
type failingStore struct {
	*MemoryStore
}

func (f *failingStore) GetRating(context.Context, string) (int, error) {
	return 0, errors.New("connection refused")
}

func TestSettleReadsFallBackToDefault(t *testing.T) {
	store := &failingStore{MemoryStore: NewMemoryStore()}
	s := NewSettler(store, testLogger())

	require.True(t, s.Settle(context.Background(), ratedResult()))

	// Writes still land, computed from the default rating on both sides.
	expW, expL := Apply(models.DefaultRating, models.DefaultRating)
	newW, _ := store.MemoryStore.GetRating(context.Background(), "alice")
	newL, _ := store.MemoryStore.GetRating(context.Background(), "bob")
	assert.Equal(t, expW, newW)
	assert.Equal(t, expL, newL)
}
