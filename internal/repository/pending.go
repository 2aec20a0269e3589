package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"tournament-stats/internal/domain"
)

// PendingRepository holds telemetry payloads waiting for reconciliation.
type PendingRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewPendingRepository(sqlDB *sql.DB, logger zerolog.Logger) *PendingRepository {
	return &PendingRepository{db: sqlDB, logger: logger}
}

func (r *PendingRepository) Enqueue(ctx context.Context, rawPayload string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("failed to generate pending id: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO pending_payloads (id, raw_payload, received_at) VALUES (?, ?, ?)
	`, id, rawPayload, time.Now())
	if err != nil {
		return "", fmt.Errorf("failed to enqueue pending payload: %w", err)
	}
	r.logger.Info().Str("pending_id", id).Msg("payload queued for later reconciliation")
	return id, nil
}

func (r *PendingRepository) ListUnresolved(ctx context.Context) ([]domain.PendingPayload, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, raw_payload, received_at, resolved, resolved_at
		FROM pending_payloads WHERE resolved = 0 ORDER BY received_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.PendingPayload
	for rows.Next() {
		var p domain.PendingPayload
		var resolvedAt sql.NullTime
		if err := rows.Scan(&p.ID, &p.RawPayload, &p.ReceivedAt, &p.Resolved, &resolvedAt); err != nil {
			return nil, err
		}
		if resolvedAt.Valid {
			p.ResolvedAt = &resolvedAt.Time
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (r *PendingRepository) MarkResolved(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE pending_payloads SET resolved = 1, resolved_at = ? WHERE id = ?
	`, time.Now(), id)
	return err
}
