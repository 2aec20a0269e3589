package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tournament-stats/internal/database"
	"tournament-stats/internal/domain"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedMatchRow(t *testing.T, db *sql.DB, tournamentID int64) int64 {
	t.Helper()
	res, err := db.Exec(`
		INSERT INTO matches (tournament_id, team1_id, team2_id, team1_name, team2_name, state, created_at)
		VALUES (?, 1, 2, 'Alpha', 'Bravo', 'live', ?)
	`, tournamentID, time.Now())
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func TestPersistMatchOverwrites(t *testing.T) {
	db := openTestDB(t)
	repo := NewMatchStatsRepository(db, zerolog.Nop())
	ctx := context.Background()

	matchID := seedMatchRow(t, db, 1)

	match := &domain.MatchStats{
		MatchID:      matchID,
		MapName:      "de_nuke",
		RoundsPlayed: 22,
		Team1Name:    "Alpha",
		Team2Name:    "Bravo",
		Team1Score:   16,
		Team2Score:   6,
		RawPayload:   "{}",
	}
	player := domain.PlayerMatchStats{MatchID: matchID, UserID: 42, Kills: 10, Deaths: 8, RoundsPlayed: 22}

	require.NoError(t, repo.PersistMatch(ctx, match, []domain.PlayerMatchStats{player}))

	player.Kills = 12
	match.RoundsPlayed = 23
	require.NoError(t, repo.PersistMatch(ctx, match, []domain.PlayerMatchStats{player}))

	got, err := repo.GetPlayerStats(ctx, matchID, 42)
	require.NoError(t, err)
	assert.Equal(t, 12, got.Kills)

	rows, err := repo.ListPlayerStatsByMatch(ctx, matchID)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	ms, err := repo.GetMatchStats(ctx, matchID)
	require.NoError(t, err)
	assert.Equal(t, 23, ms.RoundsPlayed)
	assert.True(t, ms.Processed)
}

func TestPersistMatchAtomicPerPayload(t *testing.T) {
	db := openTestDB(t)
	repo := NewMatchStatsRepository(db, zerolog.Nop())
	ctx := context.Background()

	matchID := seedMatchRow(t, db, 1)

	match := &domain.MatchStats{MatchID: matchID, MapName: "de_mirage", RoundsPlayed: 20, Team1Name: "Alpha", Team2Name: "Bravo", RawPayload: "{}"}
	players := []domain.PlayerMatchStats{
		{MatchID: matchID, UserID: 1, Kills: 5, RoundsPlayed: 20},
		{MatchID: matchID, UserID: 2, Kills: 7, RoundsPlayed: 20},
	}

	require.NoError(t, repo.PersistMatch(ctx, match, players))

	rows, err := repo.ListPlayerStatsByMatch(ctx, matchID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	// Deterministic user-id ordering.
	assert.Equal(t, int64(1), rows[0].UserID)
	assert.Equal(t, int64(2), rows[1].UserID)
}

func TestAddContributionClaimsMarkerOnce(t *testing.T) {
	db := openTestDB(t)
	repo := NewTournamentRepository(db, zerolog.Nop())
	ctx := context.Background()

	p := &domain.PlayerMatchStats{MatchID: 11, UserID: 42, Kills: 20, Deaths: 10, RoundsPlayed: 24, Won: true}

	applied, err := repo.AddContribution(ctx, 7, p)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = repo.AddContribution(ctx, 7, p)
	require.NoError(t, err)
	assert.False(t, applied)

	got, err := repo.GetPlayer(ctx, 7, 42)
	require.NoError(t, err)
	assert.Equal(t, 1, got.MatchesPlayed)
	assert.Equal(t, 20, got.Kills)
	assert.Equal(t, 1, got.Wins)

	// Same match for a different tournament is an independent claim.
	applied, err = repo.AddContribution(ctx, 8, p)
	require.NoError(t, err)
	assert.True(t, applied)
}

func TestRecordDetectionClaimsMarkerOnce(t *testing.T) {
	db := openTestDB(t)
	repo := NewAnomalyRepository(db, zerolog.Nop())
	ctx := context.Background()

	findings := []domain.Anomaly{{
		UserID:      42,
		MatchID:     11,
		Type:        "headshot_outlier",
		Severity:    domain.SeverityCritical,
		Observed:    91.7,
		Expected:    85,
		Description: "headshot rate outside human range",
		Evidence:    "{}",
	}}

	claimed, err := repo.RecordDetection(ctx, 42, 11, findings)
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.NotZero(t, findings[0].ID)

	// Second claim for the same pair writes nothing.
	claimed, err = repo.RecordDetection(ctx, 42, 11, findings)
	require.NoError(t, err)
	assert.False(t, claimed)

	rows, err := repo.ListByUser(ctx, 42)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	// A pass with zero findings still claims, so it is not repeated.
	claimed, err = repo.RecordDetection(ctx, 42, 12, nil)
	require.NoError(t, err)
	assert.True(t, claimed)
	claimed, err = repo.RecordDetection(ctx, 42, 12, nil)
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestTrustLowerScoreWritesHistory(t *testing.T) {
	db := openTestDB(t)
	repo := NewTrustRepository(db, zerolog.Nop())
	ctx := context.Background()

	_, err := db.Exec(`INSERT INTO trust_scores (user_id, score) VALUES (42, 100)`)
	require.NoError(t, err)

	change := &domain.TrustScoreChange{
		UserID:    42,
		OldScore:  100,
		NewScore:  70,
		OldAction: domain.ActionNone,
		NewAction: domain.ActionWatchList,
		Reason:    "test adjustment",
	}
	require.NoError(t, repo.LowerScore(ctx, change))

	score, err := repo.GetScore(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 70, score.Score)

	history, err := repo.ListHistory(ctx, 42)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 100, history[0].OldScore)
	assert.Equal(t, 70, history[0].NewScore)
	assert.Equal(t, "test adjustment", history[0].Reason)
}

func TestPendingQueueLifecycle(t *testing.T) {
	db := openTestDB(t)
	repo := NewPendingRepository(db, zerolog.Nop())
	ctx := context.Background()

	id, err := repo.Enqueue(ctx, `{"mapName":"de_dust2"}`)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	queued, err := repo.ListUnresolved(ctx)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, id, queued[0].ID)
	assert.False(t, queued[0].Resolved)

	require.NoError(t, repo.MarkResolved(ctx, id))

	queued, err = repo.ListUnresolved(ctx)
	require.NoError(t, err)
	assert.Empty(t, queued)
}
