package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tournament-stats/internal/domain"
)

// TrustRepository owns trust_scores and its append-only history. Rows are
// created by the account system; this core only lowers existing scores.
type TrustRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewTrustRepository(sqlDB *sql.DB, logger zerolog.Logger) *TrustRepository {
	return &TrustRepository{db: sqlDB, logger: logger}
}

func (r *TrustRepository) GetScore(ctx context.Context, userID int64) (*domain.TrustScore, error) {
	var t domain.TrustScore
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, score, updated_at FROM trust_scores WHERE user_id = ?
	`, userID).Scan(&t.UserID, &t.Score, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// LowerScore writes the new score and appends the history entry in one
// transaction.
func (r *TrustRepository) LowerScore(ctx context.Context, change *domain.TrustScoreChange) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE trust_scores SET score = ?, updated_at = ? WHERE user_id = ?
	`, change.NewScore, time.Now(), change.UserID); err != nil {
		return fmt.Errorf("failed to update trust score: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO trust_score_history (user_id, old_score, new_score, old_action, new_action, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, change.UserID, change.OldScore, change.NewScore, change.OldAction, change.NewAction, change.Reason, time.Now()); err != nil {
		return fmt.Errorf("failed to append trust history: %w", err)
	}

	return tx.Commit()
}

func (r *TrustRepository) ListHistory(ctx context.Context, userID int64) ([]domain.TrustScoreChange, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, old_score, new_score, old_action, new_action, reason, created_at
		FROM trust_score_history WHERE user_id = ? ORDER BY id ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TrustScoreChange
	for rows.Next() {
		var c domain.TrustScoreChange
		if err := rows.Scan(&c.ID, &c.UserID, &c.OldScore, &c.NewScore, &c.OldAction, &c.NewAction, &c.Reason, &c.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}
