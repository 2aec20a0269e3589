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

// MatchStatsRepository owns the match_stats and player_match_stats tables.
type MatchStatsRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewMatchStatsRepository(sqlDB *sql.DB, logger zerolog.Logger) *MatchStatsRepository {
	return &MatchStatsRepository{db: sqlDB, logger: logger}
}

const playerStatCols = `kills, deaths, assists, headshots, damage, utility_damage,
	enemies_flashed, flash_assists, shots_fired, shots_on_target,
	entry_attempts, entry_wins,
	clutch_1v1_attempts, clutch_1v1_wins, clutch_1v2_attempts, clutch_1v2_wins,
	clutch_1v3_attempts, clutch_1v3_wins, clutch_1v4_attempts, clutch_1v4_wins,
	multi_kill_2k, multi_kill_3k, multi_kill_4k, multi_kill_5k,
	trade_kills, kast_rounds, rounds_played, won, drawn,
	hs_percent, accuracy, adr, kast, impact, rating`

// PersistMatch writes one match row and all its player rows in a single
// transaction. Both upserts overwrite the previous row, which is what
// makes at-least-once webhook delivery safe. Any failure rolls the whole
// payload back; no partial player set is ever visible.
func (r *MatchStatsRepository) PersistMatch(ctx context.Context, match *domain.MatchStats, players []domain.PlayerMatchStats) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO match_stats (match_id, map_name, rounds_played, team1_name, team2_name,
			team1_score, team2_score, demo_ref, raw_payload, processed, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT(match_id) DO UPDATE SET
			map_name = excluded.map_name,
			rounds_played = excluded.rounds_played,
			team1_name = excluded.team1_name,
			team2_name = excluded.team2_name,
			team1_score = excluded.team1_score,
			team2_score = excluded.team2_score,
			demo_ref = excluded.demo_ref,
			raw_payload = excluded.raw_payload,
			processed = 1,
			processed_at = excluded.processed_at
	`, match.MatchID, match.MapName, match.RoundsPlayed, match.Team1Name, match.Team2Name,
		match.Team1Score, match.Team2Score, match.DemoRef, match.RawPayload, now)
	if err != nil {
		return fmt.Errorf("failed to upsert match stats %d: %w", match.MatchID, err)
	}

	for _, p := range players {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO player_match_stats (match_id, user_id, `+playerStatCols+`, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(match_id, user_id) DO UPDATE SET
				kills = excluded.kills,
				deaths = excluded.deaths,
				assists = excluded.assists,
				headshots = excluded.headshots,
				damage = excluded.damage,
				utility_damage = excluded.utility_damage,
				enemies_flashed = excluded.enemies_flashed,
				flash_assists = excluded.flash_assists,
				shots_fired = excluded.shots_fired,
				shots_on_target = excluded.shots_on_target,
				entry_attempts = excluded.entry_attempts,
				entry_wins = excluded.entry_wins,
				clutch_1v1_attempts = excluded.clutch_1v1_attempts,
				clutch_1v1_wins = excluded.clutch_1v1_wins,
				clutch_1v2_attempts = excluded.clutch_1v2_attempts,
				clutch_1v2_wins = excluded.clutch_1v2_wins,
				clutch_1v3_attempts = excluded.clutch_1v3_attempts,
				clutch_1v3_wins = excluded.clutch_1v3_wins,
				clutch_1v4_attempts = excluded.clutch_1v4_attempts,
				clutch_1v4_wins = excluded.clutch_1v4_wins,
				multi_kill_2k = excluded.multi_kill_2k,
				multi_kill_3k = excluded.multi_kill_3k,
				multi_kill_4k = excluded.multi_kill_4k,
				multi_kill_5k = excluded.multi_kill_5k,
				trade_kills = excluded.trade_kills,
				kast_rounds = excluded.kast_rounds,
				rounds_played = excluded.rounds_played,
				won = excluded.won,
				drawn = excluded.drawn,
				hs_percent = excluded.hs_percent,
				accuracy = excluded.accuracy,
				adr = excluded.adr,
				kast = excluded.kast,
				impact = excluded.impact,
				rating = excluded.rating,
				updated_at = excluded.updated_at
		`, p.MatchID, p.UserID,
			p.Kills, p.Deaths, p.Assists, p.Headshots, p.Damage, p.UtilityDamage,
			p.EnemiesFlashed, p.FlashAssists, p.ShotsFired, p.ShotsOnTarget,
			p.EntryAttempts, p.EntryWins,
			p.Clutch1v1Attempts, p.Clutch1v1Wins, p.Clutch1v2Attempts, p.Clutch1v2Wins,
			p.Clutch1v3Attempts, p.Clutch1v3Wins, p.Clutch1v4Attempts, p.Clutch1v4Wins,
			p.MultiKill2K, p.MultiKill3K, p.MultiKill4K, p.MultiKill5K,
			p.TradeKills, p.KASTRounds, p.RoundsPlayed, p.Won, p.Drawn,
			p.HSPercent, p.Accuracy, p.ADR, p.KAST, p.Impact, p.Rating,
			now, now)
		if err != nil {
			return fmt.Errorf("failed to upsert player stats %d/%d: %w", p.MatchID, p.UserID, err)
		}
	}

	return tx.Commit()
}

func scanPlayerStats(scan func(...any) error) (domain.PlayerMatchStats, error) {
	var p domain.PlayerMatchStats
	err := scan(&p.MatchID, &p.UserID,
		&p.Kills, &p.Deaths, &p.Assists, &p.Headshots, &p.Damage, &p.UtilityDamage,
		&p.EnemiesFlashed, &p.FlashAssists, &p.ShotsFired, &p.ShotsOnTarget,
		&p.EntryAttempts, &p.EntryWins,
		&p.Clutch1v1Attempts, &p.Clutch1v1Wins, &p.Clutch1v2Attempts, &p.Clutch1v2Wins,
		&p.Clutch1v3Attempts, &p.Clutch1v3Wins, &p.Clutch1v4Attempts, &p.Clutch1v4Wins,
		&p.MultiKill2K, &p.MultiKill3K, &p.MultiKill4K, &p.MultiKill5K,
		&p.TradeKills, &p.KASTRounds, &p.RoundsPlayed, &p.Won, &p.Drawn,
		&p.HSPercent, &p.Accuracy, &p.ADR, &p.KAST, &p.Impact, &p.Rating,
		&p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *MatchStatsRepository) GetPlayerStats(ctx context.Context, matchID, userID int64) (*domain.PlayerMatchStats, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT match_id, user_id, `+playerStatCols+`, created_at, updated_at
		FROM player_match_stats WHERE match_id = ? AND user_id = ?
	`, matchID, userID)
	p, err := scanPlayerStats(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *MatchStatsRepository) ListPlayerStatsByUser(ctx context.Context, userID int64) ([]domain.PlayerMatchStats, error) {
	return r.listPlayerStats(ctx, `
		SELECT match_id, user_id, `+playerStatCols+`, created_at, updated_at
		FROM player_match_stats WHERE user_id = ? ORDER BY match_id ASC
	`, userID)
}

func (r *MatchStatsRepository) ListPlayerStatsByMatch(ctx context.Context, matchID int64) ([]domain.PlayerMatchStats, error) {
	return r.listPlayerStats(ctx, `
		SELECT match_id, user_id, `+playerStatCols+`, created_at, updated_at
		FROM player_match_stats WHERE match_id = ? ORDER BY user_id ASC
	`, matchID)
}

func (r *MatchStatsRepository) listPlayerStats(ctx context.Context, query string, arg any) ([]domain.PlayerMatchStats, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.PlayerMatchStats
	for rows.Next() {
		p, err := scanPlayerStats(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// MatchMetric is one per-match sample of the metrics whose tournament
// averages cannot be maintained additively.
type MatchMetric struct {
	Rating float64
	KAST   float64
	Impact float64
}

// ListTournamentPlayerMetrics re-queries every per-match rating/KAST/impact
// sample a user produced inside one tournament.
func (r *MatchStatsRepository) ListTournamentPlayerMetrics(ctx context.Context, tournamentID, userID int64) ([]MatchMetric, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT pms.rating, pms.kast, pms.impact
		FROM player_match_stats pms
		JOIN matches m ON m.id = pms.match_id
		WHERE m.tournament_id = ? AND pms.user_id = ?
		ORDER BY pms.match_id ASC
	`, tournamentID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var metrics []MatchMetric
	for rows.Next() {
		var m MatchMetric
		if err := rows.Scan(&m.Rating, &m.KAST, &m.Impact); err != nil {
			return nil, err
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

func (r *MatchStatsRepository) GetMatchStats(ctx context.Context, matchID int64) (*domain.MatchStats, error) {
	var m domain.MatchStats
	var processed int
	var processedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT match_id, map_name, rounds_played, team1_name, team2_name,
			team1_score, team2_score, demo_ref, raw_payload, processed, processed_at
		FROM match_stats WHERE match_id = ?
	`, matchID).Scan(&m.MatchID, &m.MapName, &m.RoundsPlayed, &m.Team1Name, &m.Team2Name,
		&m.Team1Score, &m.Team2Score, &m.DemoRef, &m.RawPayload, &processed, &processedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	m.Processed = processed != 0
	if processedAt.Valid {
		m.ProcessedAt = processedAt.Time
	}
	return &m, nil
}
