package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tournament-stats/internal/domain"
)

// AnomalyRepository owns the append-only anomalies table and the
// per-(user, match) detection marker.
type AnomalyRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewAnomalyRepository(sqlDB *sql.DB, logger zerolog.Logger) *AnomalyRepository {
	return &AnomalyRepository{db: sqlDB, logger: logger}
}

// RecordDetection claims the (user, match) detection marker and persists
// the findings in one transaction. The marker insert is the guard:
// concurrent redeliveries race on the row conflict, not on a prior
// lookup, so exactly one caller gets true and writes anything. A failure
// rolls the claim back with the findings, leaving the pair retryable.
func (r *AnomalyRepository) RecordDetection(ctx context.Context, userID, matchID int64, findings []domain.Anomaly) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO anomaly_detections (user_id, match_id)
		VALUES (?, ?)
		ON CONFLICT(user_id, match_id) DO NOTHING
	`, userID, matchID)
	if err != nil {
		return false, fmt.Errorf("failed to claim detection marker: %w", err)
	}
	claimed, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if claimed == 0 {
		return false, nil
	}

	for i := range findings {
		a := &findings[i]
		res, err := tx.ExecContext(ctx, `
			INSERT INTO anomalies (user_id, match_id, type, severity, observed, expected,
				deviation_pct, description, evidence, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, a.UserID, a.MatchID, a.Type, a.Severity, a.Observed, a.Expected,
			a.DeviationPct, a.Description, a.Evidence, time.Now())
		if err != nil {
			return false, fmt.Errorf("failed to insert anomaly %s: %w", a.Type, err)
		}
		if a.ID, err = res.LastInsertId(); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (r *AnomalyRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Anomaly, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, match_id, type, severity, observed, expected,
			deviation_pct, description, evidence, created_at
		FROM anomalies WHERE user_id = ? ORDER BY id ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Anomaly
	for rows.Next() {
		var a domain.Anomaly
		if err := rows.Scan(&a.ID, &a.UserID, &a.MatchID, &a.Type, &a.Severity, &a.Observed,
			&a.Expected, &a.DeviationPct, &a.Description, &a.Evidence, &a.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}
