package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rs/zerolog"

	"tournament-stats/internal/domain"
)

// IdentityRepository maps external platform ids to internal user ids.
// The users table is owned by the account system; read-only here.
type IdentityRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewIdentityRepository(sqlDB *sql.DB, logger zerolog.Logger) *IdentityRepository {
	return &IdentityRepository{db: sqlDB, logger: logger}
}

func (r *IdentityRepository) UserIDBySteamID(ctx context.Context, steamID string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `SELECT id FROM users WHERE steam_id = ?`, steamID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrUnknownPlayer
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}
