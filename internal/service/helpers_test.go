package service

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"tournament-stats/internal/config"
	"tournament-stats/internal/database"
	"tournament-stats/internal/domain"
	"tournament-stats/internal/repository"
)

// testEnv wires the full service stack over a throwaway sqlite file.
type testEnv struct {
	db *sql.DB

	matchRepo      *repository.MatchRepository
	identityRepo   *repository.IdentityRepository
	statsRepo      *repository.MatchStatsRepository
	aggregateRepo  *repository.AggregateRepository
	tournamentRepo *repository.TournamentRepository
	anomalyRepo    *repository.AnomalyRepository
	trustRepo      *repository.TrustRepository
	pendingRepo    *repository.PendingRepository

	resolver   *ResolverService
	lifetime   *LifetimeService
	anomaly    *AnomalyService
	tournament *TournamentService
	ingest     *IngestService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := zerolog.Nop()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	env := &testEnv{
		db:             db,
		matchRepo:      repository.NewMatchRepository(db, logger),
		identityRepo:   repository.NewIdentityRepository(db, logger),
		statsRepo:      repository.NewMatchStatsRepository(db, logger),
		aggregateRepo:  repository.NewAggregateRepository(db, logger),
		tournamentRepo: repository.NewTournamentRepository(db, logger),
		anomalyRepo:    repository.NewAnomalyRepository(db, logger),
		trustRepo:      repository.NewTrustRepository(db, logger),
		pendingRepo:    repository.NewPendingRepository(db, logger),
	}

	env.resolver = NewResolverService(env.matchRepo, env.identityRepo, logger)
	env.lifetime = NewLifetimeService(env.statsRepo, env.aggregateRepo, logger)
	env.anomaly = NewAnomalyService(env.anomalyRepo, env.trustRepo, env.aggregateRepo, env.statsRepo, logger)
	env.tournament = NewTournamentService(env.tournamentRepo, env.statsRepo, env.matchRepo, logger)

	cfg := &config.Config{IngestWorkers: 2}
	env.ingest = NewIngestService(cfg, env.resolver, env.statsRepo, env.pendingRepo, env.lifetime, env.anomaly, logger)
	t.Cleanup(env.ingest.Close)

	return env
}

func (e *testEnv) seedUser(t *testing.T, steamID, name string) int64 {
	t.Helper()
	res, err := e.db.Exec(`INSERT INTO users (steam_id, display_name) VALUES (?, ?)`, steamID, name)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func (e *testEnv) seedMatch(t *testing.T, tournamentID int64, team1, team2 string, state domain.MatchState, createdAt time.Time) int64 {
	t.Helper()
	res, err := e.db.Exec(`
		INSERT INTO matches (tournament_id, team1_id, team2_id, team1_name, team2_name, state, created_at)
		VALUES (?, 1, 2, ?, ?, ?, ?)
	`, tournamentID, team1, team2, string(state), createdAt)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func (e *testEnv) seedTrustScore(t *testing.T, userID int64, score int) {
	t.Helper()
	_, err := e.db.Exec(`INSERT INTO trust_scores (user_id, score) VALUES (?, ?)`, userID, score)
	require.NoError(t, err)
}

// counters builds a benign stat line that trips no anomaly heuristic.
func counters(kills, deaths, assists, headshots, damage int) domain.PlayerCounters {
	return domain.PlayerCounters{
		Kills:         kills,
		Deaths:        deaths,
		Assists:       assists,
		Headshots:     headshots,
		Damage:        damage,
		UtilityDamage: 300,
		ShotsFired:    200,
		ShotsOnTarget: 80,
		KASTRounds:    15,
	}
}

func payloadFor(matchID string, team1, team2 string, score1, score2 int, team1Players, team2Players []domain.PayloadPlayer) *domain.TelemetryPayload {
	return &domain.TelemetryPayload{
		MatchID: domain.FlexibleMatchID(matchID),
		MapName: "de_inferno",
		Team1:   domain.PayloadTeam{Name: team1, Score: score1, Players: team1Players},
		Team2:   domain.PayloadTeam{Name: team2, Score: score2, Players: team2Players},
		Rounds:  score1 + score2,
	}
}
