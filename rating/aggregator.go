package rating

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"vetcare/profile"
)

// Aggregator keeps a professional's stored rating equal to the mean of its
// ratings.
type Aggregator struct {
	pool   profile.TxBeginner
	repo   profile.Repository
	logger *zap.Logger
}

// NewAggregator creates a new rating aggregator.
func NewAggregator(pool profile.TxBeginner, repo profile.Repository, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{pool: pool, repo: repo, logger: logger.Named("rating")}
}

// Recompute recalculates and stores the rating for professionalID. The
// professional row stays locked from the read of its scores until commit, so
// concurrent recomputes for the same professional serialize. A missing
// professional returns apperrors.ErrNotFound.
func (a *Aggregator) Recompute(ctx context.Context, professionalID int64) (*float64, error) {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("rating: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := a.repo.LockProfessional(ctx, tx, professionalID); err != nil {
		return nil, err
	}

	scores, err := a.repo.ListRatingScores(ctx, tx, professionalID)
	if err != nil {
		return nil, err
	}
	avg := Mean(scores)

	if err := a.repo.SetProfessionalRating(ctx, tx, professionalID, avg); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("rating: commit: %w", err)
	}

	fields := []zap.Field{zap.Int64("professional_id", professionalID), zap.Int("ratings", len(scores))}
	if avg != nil {
		fields = append(fields, zap.Float64("rating", *avg))
	}
	a.logger.Debug("rating recomputed", fields...)
	return avg, nil
}

// Mean returns the arithmetic mean of scores rounded half-to-even to two
// decimals, or nil for an empty set.
func Mean(scores []int) *float64 {
	if len(scores) == 0 {
		return nil
	}
	sum := decimal.Zero
	for _, s := range scores {
		sum = sum.Add(decimal.NewFromInt(int64(s)))
	}
	avg, _ := sum.Div(decimal.NewFromInt(int64(len(scores)))).RoundBank(2).Float64()
	return &avg
}
