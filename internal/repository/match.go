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

// MatchRepository reads canonical matches owned by the bracket system.
// This core never writes the matches table.
type MatchRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewMatchRepository(sqlDB *sql.DB, logger zerolog.Logger) *MatchRepository {
	return &MatchRepository{db: sqlDB, logger: logger}
}

const matchColumns = `id, tournament_id, team1_id, team2_id, team1_name, team2_name, state, created_at`

func scanMatch(row *sql.Row) (*domain.CanonicalMatch, error) {
	var m domain.CanonicalMatch
	err := row.Scan(&m.ID, &m.TournamentID, &m.Team1ID, &m.Team2ID, &m.Team1Name, &m.Team2Name, &m.State, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MatchRepository) GetByID(ctx context.Context, id int64) (*domain.CanonicalMatch, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = ?`, id)
	return scanMatch(row)
}

// FindByTeamNames is the heuristic fallback: the most recent match between
// exactly these two team names (either order) that is live or recently
// completed and was created after the cutoff.
func (r *MatchRepository) FindByTeamNames(ctx context.Context, team1, team2 string, cutoff time.Time) (*domain.CanonicalMatch, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+matchColumns+` FROM matches
		WHERE ((team1_name = ? AND team2_name = ?) OR (team1_name = ? AND team2_name = ?))
		  AND state IN (?, ?)
		  AND created_at >= ?
		ORDER BY created_at DESC
		LIMIT 1
	`, team1, team2, team2, team1, domain.MatchStateLive, domain.MatchStateCompleted, cutoff)
	return scanMatch(row)
}

// ListCompletedByTournament returns a tournament's completed matches in
// ascending id order, the replay order of the full rebuild.
func (r *MatchRepository) ListCompletedByTournament(ctx context.Context, tournamentID int64) ([]domain.CanonicalMatch, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+matchColumns+` FROM matches
		WHERE tournament_id = ? AND state = ?
		ORDER BY id ASC
	`, tournamentID, domain.MatchStateCompleted)
	if err != nil {
		return nil, fmt.Errorf("list completed matches: %w", err)
	}
	defer rows.Close()

	var matches []domain.CanonicalMatch
	for rows.Next() {
		var m domain.CanonicalMatch
		if err := rows.Scan(&m.ID, &m.TournamentID, &m.Team1ID, &m.Team2ID, &m.Team1Name, &m.Team2Name, &m.State, &m.CreatedAt); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
