package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okstone/gomoku/internal/models"
)

// RatingStore persists player ratings in the profiles table. It satisfies
// rating.Store.
type RatingStore struct {
	pool *pgxpool.Pool
}

func NewRatingStore(pool *pgxpool.Pool) *RatingStore {
	return &RatingStore{pool: pool}
}

// GetRating reads the stored rating for a profile id, defaulting to
// models.DefaultRating when no row exists.
func (s *RatingStore) GetRating(ctx context.Context, id string) (int, error) {
	var rating int
	q := `SELECT rating FROM profiles WHERE id = $1`
	err := s.pool.QueryRow(ctx, q, id).Scan(&rating)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.DefaultRating, nil
	}
	if err != nil {
		return 0, err
	}
	return rating, nil
}

// SetRating writes a profile's rating inside a transaction.
func (s *RatingStore) SetRating(ctx context.Context, id string, rating int) error {
	q := `UPDATE profiles SET rating = $1 WHERE id = $2`
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, rating, id)
		return err
	})
}
