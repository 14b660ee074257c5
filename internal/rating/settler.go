package rating

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/okstone/gomoku/internal/game"
	"github.com/okstone/gomoku/internal/models"
)

// MinRatedMoves is the move-count floor for rated settlement of reported
// wins. Timeout forfeitures bypass it.
const MinRatedMoves = 10

// Store is the durable rating mapping the settler writes to.
type Store interface {
	// GetRating returns the stored rating for id, or the default when absent.
	GetRating(ctx context.Context, id string) (int, error)
	SetRating(ctx context.Context, id string, rating int) error
}

// Settler applies ELO updates for finished games. Writes are best-effort:
// failures are logged and never block or reverse the game-over broadcast.
type Settler struct {
	store  Store
	logger *logrus.Logger
}

func NewSettler(store Store, logger *logrus.Logger) *Settler {
	return &Settler{store: store, logger: logger}
}

// Settle persists rating changes for an eligible result. Eligibility: both
// players registered (non-guest), distinct ids, room not private, and the
// move-count floor met unless the game ended by timeout.
func (s *Settler) Settle(ctx context.Context, res game.Result) bool {
	if !Eligible(res) {
		return false
	}

	oldW, err := s.store.GetRating(ctx, res.Winner.ID)
	if err != nil {
		s.logger.WithError(err).WithField("user", res.Winner.ID).Warn("rating read failed, using default")
		oldW = models.DefaultRating
	}
	oldL, err := s.store.GetRating(ctx, res.Loser.ID)
	if err != nil {
		s.logger.WithError(err).WithField("user", res.Loser.ID).Warn("rating read failed, using default")
		oldL = models.DefaultRating
	}

	newW, newL := Apply(oldW, oldL)

	// Two independent writes; a failed one is logged, not retried.
	if err := s.store.SetRating(ctx, res.Winner.ID, newW); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{"user": res.Winner.ID, "rating": newW}).Error("rating write failed")
	}
	if err := s.store.SetRating(ctx, res.Loser.ID, newL); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{"user": res.Loser.ID, "rating": newL}).Error("rating write failed")
	}

	s.logger.WithFields(logrus.Fields{
		"room":   res.RoomID,
		"winner": res.Winner.ID,
		"loser":  res.Loser.ID,
		"delta":  newW - oldW,
		"reason": res.Reason,
	}).Info("ratings settled")
	return true
}

// Eligible reports whether a result qualifies for rated settlement.
func Eligible(res game.Result) bool {
	if res.Private {
		return false
	}
	if models.IsGuestID(res.Winner.ID) || models.IsGuestID(res.Loser.ID) {
		return false
	}
	if res.Winner.ID == res.Loser.ID {
		return false
	}
	if res.Reason != game.ReasonTimeout && res.MoveCount < MinRatedMoves {
		return false
	}
	return true
}
