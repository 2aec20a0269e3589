package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"tournament-stats/internal/domain"
)

// AggregateRepository owns the lifetime player_aggregated_stats table.
type AggregateRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewAggregateRepository(sqlDB *sql.DB, logger zerolog.Logger) *AggregateRepository {
	return &AggregateRepository{db: sqlDB, logger: logger}
}

func (r *AggregateRepository) Upsert(ctx context.Context, a *domain.PlayerAggregatedStats) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO player_aggregated_stats (user_id, matches_played, rounds_played,
			kills, deaths, assists, headshots, damage,
			kd_ratio, hs_percent, accuracy, adr, avg_kast, avg_rating, avg_impact,
			clutch_win_rate, entry_success_rate, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			matches_played = excluded.matches_played,
			rounds_played = excluded.rounds_played,
			kills = excluded.kills,
			deaths = excluded.deaths,
			assists = excluded.assists,
			headshots = excluded.headshots,
			damage = excluded.damage,
			kd_ratio = excluded.kd_ratio,
			hs_percent = excluded.hs_percent,
			accuracy = excluded.accuracy,
			adr = excluded.adr,
			avg_kast = excluded.avg_kast,
			avg_rating = excluded.avg_rating,
			avg_impact = excluded.avg_impact,
			clutch_win_rate = excluded.clutch_win_rate,
			entry_success_rate = excluded.entry_success_rate,
			updated_at = excluded.updated_at
	`, a.UserID, a.MatchesPlayed, a.RoundsPlayed,
		a.Kills, a.Deaths, a.Assists, a.Headshots, a.Damage,
		a.KDRatio, a.HSPercent, a.Accuracy, a.ADR, a.AvgKAST, a.AvgRating, a.AvgImpact,
		a.ClutchWinRate, a.EntrySuccessRate, time.Now())
	return err
}

func (r *AggregateRepository) GetByUser(ctx context.Context, userID int64) (*domain.PlayerAggregatedStats, error) {
	var a domain.PlayerAggregatedStats
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, matches_played, rounds_played,
			kills, deaths, assists, headshots, damage,
			kd_ratio, hs_percent, accuracy, adr, avg_kast, avg_rating, avg_impact,
			clutch_win_rate, entry_success_rate, updated_at
		FROM player_aggregated_stats WHERE user_id = ?
	`, userID).Scan(&a.UserID, &a.MatchesPlayed, &a.RoundsPlayed,
		&a.Kills, &a.Deaths, &a.Assists, &a.Headshots, &a.Damage,
		&a.KDRatio, &a.HSPercent, &a.Accuracy, &a.ADR, &a.AvgKAST, &a.AvgRating, &a.AvgImpact,
		&a.ClutchWinRate, &a.EntrySuccessRate, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
