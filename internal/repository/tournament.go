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

// TournamentRepository owns the per-tournament aggregate rows, the
// contribution markers and the achievement rows. It exposes only the
// additive and recompute operations the aggregator needs; there are no ad
// hoc increments.
type TournamentRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewTournamentRepository(sqlDB *sql.DB, logger zerolog.Logger) *TournamentRepository {
	return &TournamentRepository{db: sqlDB, logger: logger}
}

// AddContribution folds one player-match row into the additive sums. The
// (tournament, user, match) marker is claimed in the same transaction; if
// the match was already contributed for this player the call is a no-op
// and returns false.
func (r *TournamentRepository) AddContribution(ctx context.Context, tournamentID int64, p *domain.PlayerMatchStats) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO tournament_contributions (tournament_id, user_id, match_id)
		VALUES (?, ?, ?)
		ON CONFLICT(tournament_id, user_id, match_id) DO NOTHING
	`, tournamentID, p.UserID, p.MatchID)
	if err != nil {
		return false, fmt.Errorf("failed to claim contribution marker: %w", err)
	}
	claimed, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if claimed == 0 {
		return false, nil
	}

	// A drawn map counts toward matches_played but neither column.
	win, loss := 0, 0
	switch {
	case p.Won:
		win = 1
	case !p.Drawn:
		loss = 1
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tournament_player_stats (tournament_id, user_id,
			matches_played, wins, losses, rounds_played,
			kills, deaths, assists, headshots, damage, utility_damage,
			enemies_flashed, flash_assists, shots_fired, shots_on_target,
			entry_attempts, entry_wins,
			clutch_1v1_attempts, clutch_1v1_wins, clutch_1v2_attempts, clutch_1v2_wins,
			clutch_1v3_attempts, clutch_1v3_wins, clutch_1v4_attempts, clutch_1v4_wins,
			multi_kill_2k, multi_kill_3k, multi_kill_4k, multi_kill_5k, updated_at)
		VALUES (?, ?, 1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tournament_id, user_id) DO UPDATE SET
			matches_played = matches_played + 1,
			wins = wins + excluded.wins,
			losses = losses + excluded.losses,
			rounds_played = rounds_played + excluded.rounds_played,
			kills = kills + excluded.kills,
			deaths = deaths + excluded.deaths,
			assists = assists + excluded.assists,
			headshots = headshots + excluded.headshots,
			damage = damage + excluded.damage,
			utility_damage = utility_damage + excluded.utility_damage,
			enemies_flashed = enemies_flashed + excluded.enemies_flashed,
			flash_assists = flash_assists + excluded.flash_assists,
			shots_fired = shots_fired + excluded.shots_fired,
			shots_on_target = shots_on_target + excluded.shots_on_target,
			entry_attempts = entry_attempts + excluded.entry_attempts,
			entry_wins = entry_wins + excluded.entry_wins,
			clutch_1v1_attempts = clutch_1v1_attempts + excluded.clutch_1v1_attempts,
			clutch_1v1_wins = clutch_1v1_wins + excluded.clutch_1v1_wins,
			clutch_1v2_attempts = clutch_1v2_attempts + excluded.clutch_1v2_attempts,
			clutch_1v2_wins = clutch_1v2_wins + excluded.clutch_1v2_wins,
			clutch_1v3_attempts = clutch_1v3_attempts + excluded.clutch_1v3_attempts,
			clutch_1v3_wins = clutch_1v3_wins + excluded.clutch_1v3_wins,
			clutch_1v4_attempts = clutch_1v4_attempts + excluded.clutch_1v4_attempts,
			clutch_1v4_wins = clutch_1v4_wins + excluded.clutch_1v4_wins,
			multi_kill_2k = multi_kill_2k + excluded.multi_kill_2k,
			multi_kill_3k = multi_kill_3k + excluded.multi_kill_3k,
			multi_kill_4k = multi_kill_4k + excluded.multi_kill_4k,
			multi_kill_5k = multi_kill_5k + excluded.multi_kill_5k,
			updated_at = excluded.updated_at
	`, tournamentID, p.UserID,
		win, loss, p.RoundsPlayed,
		p.Kills, p.Deaths, p.Assists, p.Headshots, p.Damage, p.UtilityDamage,
		p.EnemiesFlashed, p.FlashAssists, p.ShotsFired, p.ShotsOnTarget,
		p.EntryAttempts, p.EntryWins,
		p.Clutch1v1Attempts, p.Clutch1v1Wins, p.Clutch1v2Attempts, p.Clutch1v2Wins,
		p.Clutch1v3Attempts, p.Clutch1v3Wins, p.Clutch1v4Attempts, p.Clutch1v4Wins,
		p.MultiKill2K, p.MultiKill3K, p.MultiKill4K, p.MultiKill5K, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to add contribution %d/%d: %w", tournamentID, p.UserID, err)
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

const tournamentPlayerCols = `tournament_id, user_id,
	matches_played, wins, losses, rounds_played,
	kills, deaths, assists, headshots, damage, utility_damage,
	enemies_flashed, flash_assists, shots_fired, shots_on_target,
	entry_attempts, entry_wins,
	clutch_1v1_attempts, clutch_1v1_wins, clutch_1v2_attempts, clutch_1v2_wins,
	clutch_1v3_attempts, clutch_1v3_wins, clutch_1v4_attempts, clutch_1v4_wins,
	multi_kill_2k, multi_kill_3k, multi_kill_4k, multi_kill_5k,
	kd_ratio, hs_percent, accuracy, adr,
	clutch_1v1_rate, clutch_1v2_rate, clutch_1v3_rate, clutch_1v4_rate,
	entry_success_rate, avg_rating, avg_kast, avg_impact,
	mvp_score, mvp_score_weighted, is_mvp, updated_at`

func scanTournamentPlayer(scan func(...any) error) (domain.TournamentPlayerStats, error) {
	var t domain.TournamentPlayerStats
	err := scan(&t.TournamentID, &t.UserID,
		&t.MatchesPlayed, &t.Wins, &t.Losses, &t.RoundsPlayed,
		&t.Kills, &t.Deaths, &t.Assists, &t.Headshots, &t.Damage, &t.UtilityDamage,
		&t.EnemiesFlashed, &t.FlashAssists, &t.ShotsFired, &t.ShotsOnTarget,
		&t.EntryAttempts, &t.EntryWins,
		&t.Clutch1v1Attempts, &t.Clutch1v1Wins, &t.Clutch1v2Attempts, &t.Clutch1v2Wins,
		&t.Clutch1v3Attempts, &t.Clutch1v3Wins, &t.Clutch1v4Attempts, &t.Clutch1v4Wins,
		&t.MultiKill2K, &t.MultiKill3K, &t.MultiKill4K, &t.MultiKill5K,
		&t.KDRatio, &t.HSPercent, &t.Accuracy, &t.ADR,
		&t.Clutch1v1Rate, &t.Clutch1v2Rate, &t.Clutch1v3Rate, &t.Clutch1v4Rate,
		&t.EntrySuccessRate, &t.AvgRating, &t.AvgKAST, &t.AvgImpact,
		&t.MVPScore, &t.MVPScoreWeighted, &t.IsMVP, &t.UpdatedAt)
	return t, err
}

func (r *TournamentRepository) GetPlayer(ctx context.Context, tournamentID, userID int64) (*domain.TournamentPlayerStats, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+tournamentPlayerCols+` FROM tournament_player_stats
		WHERE tournament_id = ? AND user_id = ?
	`, tournamentID, userID)
	t, err := scanTournamentPlayer(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListByTournament returns all aggregate rows in deterministic user-id
// order.
func (r *TournamentRepository) ListByTournament(ctx context.Context, tournamentID int64) ([]domain.TournamentPlayerStats, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+tournamentPlayerCols+` FROM tournament_player_stats
		WHERE tournament_id = ? ORDER BY user_id ASC
	`, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TournamentPlayerStats
	for rows.Next() {
		t, err := scanTournamentPlayer(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// UpdateDerived writes the ratio fields, which are pure functions of the
// stored sums.
func (r *TournamentRepository) UpdateDerived(ctx context.Context, t *domain.TournamentPlayerStats) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE tournament_player_stats SET
			kd_ratio = ?, hs_percent = ?, accuracy = ?, adr = ?,
			clutch_1v1_rate = ?, clutch_1v2_rate = ?, clutch_1v3_rate = ?, clutch_1v4_rate = ?,
			entry_success_rate = ?, updated_at = ?
		WHERE tournament_id = ? AND user_id = ?
	`, t.KDRatio, t.HSPercent, t.Accuracy, t.ADR,
		t.Clutch1v1Rate, t.Clutch1v2Rate, t.Clutch1v3Rate, t.Clutch1v4Rate,
		t.EntrySuccessRate, time.Now(), t.TournamentID, t.UserID)
	return err
}

func (r *TournamentRepository) UpdateAverages(ctx context.Context, tournamentID, userID int64, avgRating, avgKAST, avgImpact float64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE tournament_player_stats SET
			avg_rating = ?, avg_kast = ?, avg_impact = ?, updated_at = ?
		WHERE tournament_id = ? AND user_id = ?
	`, avgRating, avgKAST, avgImpact, time.Now(), tournamentID, userID)
	return err
}

func (r *TournamentRepository) UpdateMVPScores(ctx context.Context, tournamentID, userID int64, score, weighted float64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE tournament_player_stats SET
			mvp_score = ?, mvp_score_weighted = ?, updated_at = ?
		WHERE tournament_id = ? AND user_id = ?
	`, score, weighted, time.Now(), tournamentID, userID)
	return err
}

// SetMVP clears every flag in the tournament and sets exactly one, in a
// single transaction so no reader ever sees two MVPs.
func (r *TournamentRepository) SetMVP(ctx context.Context, tournamentID, userID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE tournament_player_stats SET is_mvp = 0 WHERE tournament_id = ?
	`, tournamentID); err != nil {
		return fmt.Errorf("failed to clear mvp flags: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE tournament_player_stats SET is_mvp = 1 WHERE tournament_id = ? AND user_id = ?
	`, tournamentID, userID); err != nil {
		return fmt.Errorf("failed to set mvp flag: %w", err)
	}
	return tx.Commit()
}

func (r *TournamentRepository) ClearMVP(ctx context.Context, tournamentID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE tournament_player_stats SET is_mvp = 0 WHERE tournament_id = ?
	`, tournamentID)
	return err
}

// ReplaceAchievements wipes the tournament's achievement rows and inserts
// the new placements in one transaction.
func (r *TournamentRepository) ReplaceAchievements(ctx context.Context, tournamentID int64, achievements []domain.Achievement) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM tournament_achievements WHERE tournament_id = ?
	`, tournamentID); err != nil {
		return fmt.Errorf("failed to wipe achievements: %w", err)
	}
	for _, a := range achievements {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tournament_achievements (tournament_id, category, rank, user_id, value)
			VALUES (?, ?, ?, ?, ?)
		`, a.TournamentID, a.Category, a.Rank, a.UserID, a.Value); err != nil {
			return fmt.Errorf("failed to insert achievement %s/%d: %w", a.Category, a.Rank, err)
		}
	}
	return tx.Commit()
}

func (r *TournamentRepository) ListAchievements(ctx context.Context, tournamentID int64) ([]domain.Achievement, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT tournament_id, category, rank, user_id, value
		FROM tournament_achievements WHERE tournament_id = ?
		ORDER BY category ASC, rank ASC
	`, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Achievement
	for rows.Next() {
		var a domain.Achievement
		if err := rows.Scan(&a.TournamentID, &a.Category, &a.Rank, &a.UserID, &a.Value); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// Wipe removes every aggregate row, contribution marker and achievement
// of a tournament. First step of the full rebuild.
func (r *TournamentRepository) Wipe(ctx context.Context, tournamentID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM tournament_player_stats WHERE tournament_id = ?`,
		`DELETE FROM tournament_contributions WHERE tournament_id = ?`,
		`DELETE FROM tournament_achievements WHERE tournament_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, tournamentID); err != nil {
			return fmt.Errorf("failed to wipe tournament %d: %w", tournamentID, err)
		}
	}
	return tx.Commit()
}
