package server

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tournament-stats/internal/config"
	"tournament-stats/internal/database"
	"tournament-stats/internal/repository"
	"tournament-stats/internal/service"
)

func newTestServer(t *testing.T) (*httptest.Server, *sql.DB) {
	t.Helper()

	logger := zerolog.Nop()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	matchRepo := repository.NewMatchRepository(db, logger)
	identityRepo := repository.NewIdentityRepository(db, logger)
	statsRepo := repository.NewMatchStatsRepository(db, logger)
	aggregateRepo := repository.NewAggregateRepository(db, logger)
	tournamentRepo := repository.NewTournamentRepository(db, logger)
	anomalyRepo := repository.NewAnomalyRepository(db, logger)
	trustRepo := repository.NewTrustRepository(db, logger)
	pendingRepo := repository.NewPendingRepository(db, logger)

	resolver := service.NewResolverService(matchRepo, identityRepo, logger)
	lifetime := service.NewLifetimeService(statsRepo, aggregateRepo, logger)
	anomaly := service.NewAnomalyService(anomalyRepo, trustRepo, aggregateRepo, statsRepo, logger)
	tournament := service.NewTournamentService(tournamentRepo, statsRepo, matchRepo, logger)
	ingest := service.NewIngestService(&config.Config{IngestWorkers: 2}, resolver, statsRepo, pendingRepo, lifetime, anomaly, logger)
	t.Cleanup(ingest.Close)

	mux := http.NewServeMux()
	NewWebhookServer(ingest, tournament, logger).RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, db
}

func TestTelemetryWebhook(t *testing.T) {
	srv, db := newTestServer(t)

	_, err := db.Exec(`INSERT INTO users (steam_id, display_name) VALUES ('steam-a', 'PlayerA')`)
	require.NoError(t, err)
	_, err = db.Exec(`
		INSERT INTO matches (tournament_id, team1_id, team2_id, team1_name, team2_name, state, created_at)
		VALUES (1, 1, 2, 'Alpha', 'Bravo', 'live', ?)
	`, time.Now())
	require.NoError(t, err)

	body := `{
		"matchId": "1",
		"mapName": "de_ancient",
		"rounds": 21,
		"team1": {"name": "Alpha", "score": 13, "players": [
			{"steamid": "steam-a", "name": "PlayerA", "stats": {"kills": 18, "deaths": 12, "headshot_kills": 7, "damage": 1800, "utility_damage": 250}}
		]},
		"team2": {"name": "Bravo", "score": 8, "players": []}
	}`

	resp, err := http.Post(srv.URL+"/api/v1/telemetry", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM player_match_stats`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestTelemetryWebhookRejectsBadJSON(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/telemetry", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMatchCompletedWebhookUnknownMatch(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/matches/999/completed", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/api/v1/matches/abc/completed", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRecalculateAndReconcileWebhooks(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/tournaments/1/recalculate", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/api/v1/reconcile", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
