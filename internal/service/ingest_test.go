package service

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tournament-stats/internal/domain"
)

func TestIngestProcessedAndIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	userA := env.seedUser(t, "steam-a", "PlayerA")
	userB := env.seedUser(t, "steam-b", "PlayerB")
	matchID := env.seedMatch(t, 1, "Alpha", "Bravo", domain.MatchStateLive, time.Now())

	payload := payloadFor(strconv.FormatInt(matchID, 10), "Alpha", "Bravo", 16, 8,
		[]domain.PayloadPlayer{{SteamID: "steam-a", Name: "PlayerA", Stats: counters(20, 14, 4, 8, 2100)}},
		[]domain.PayloadPlayer{{SteamID: "steam-b", Name: "PlayerB", Stats: counters(14, 18, 6, 5, 1600)}},
	)

	result, err := env.ingest.Ingest(ctx, payload)
	require.NoError(t, err)
	assert.Equal(t, domain.IngestProcessed, result.Status)
	assert.Equal(t, matchID, result.MatchID)
	assert.Equal(t, 2, result.PlayersUpdated)

	// Webhook redelivery overwrites, never appends.
	result2, err := env.ingest.Ingest(ctx, payload)
	require.NoError(t, err)
	assert.Equal(t, domain.IngestProcessed, result2.Status)

	rows, err := env.statsRepo.ListPlayerStatsByMatch(ctx, matchID)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	pa, err := env.statsRepo.GetPlayerStats(ctx, matchID, userA)
	require.NoError(t, err)
	assert.Equal(t, 20, pa.Kills)
	assert.True(t, pa.Won)
	assert.Equal(t, 24, pa.RoundsPlayed)
	assert.InDelta(t, 40.0, pa.HSPercent, 1e-9)

	pb, err := env.statsRepo.GetPlayerStats(ctx, matchID, userB)
	require.NoError(t, err)
	assert.False(t, pb.Won)

	agg, err := env.aggregateRepo.GetByUser(ctx, userA)
	require.NoError(t, err)
	assert.Equal(t, 1, agg.MatchesPlayed)
	assert.Equal(t, 20, agg.Kills)
}

func TestIngestReprocessingOverwrites(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	userID := env.seedUser(t, "steam-a", "PlayerA")
	matchID := env.seedMatch(t, 1, "Alpha", "Bravo", domain.MatchStateLive, time.Now())

	first := payloadFor(strconv.FormatInt(matchID, 10), "Alpha", "Bravo", 16, 8,
		[]domain.PayloadPlayer{{SteamID: "steam-a", Name: "PlayerA", Stats: counters(20, 14, 4, 8, 2100)}}, nil)
	_, err := env.ingest.Ingest(ctx, first)
	require.NoError(t, err)

	// Corrected resend with different counters replaces the row.
	corrected := payloadFor(strconv.FormatInt(matchID, 10), "Alpha", "Bravo", 16, 8,
		[]domain.PayloadPlayer{{SteamID: "steam-a", Name: "PlayerA", Stats: counters(22, 14, 4, 9, 2300)}}, nil)
	_, err = env.ingest.Ingest(ctx, corrected)
	require.NoError(t, err)

	p, err := env.statsRepo.GetPlayerStats(ctx, matchID, userID)
	require.NoError(t, err)
	assert.Equal(t, 22, p.Kills)
	assert.Equal(t, 2300, p.Damage)

	agg, err := env.aggregateRepo.GetByUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, agg.MatchesPlayed)
	assert.Equal(t, 22, agg.Kills)
}

func TestIngestSkipsUnknownPlayers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedUser(t, "steam-a", "PlayerA")
	matchID := env.seedMatch(t, 1, "Alpha", "Bravo", domain.MatchStateLive, time.Now())

	payload := payloadFor(strconv.FormatInt(matchID, 10), "Alpha", "Bravo", 13, 5,
		[]domain.PayloadPlayer{
			{SteamID: "steam-a", Name: "PlayerA", Stats: counters(15, 10, 3, 6, 1500)},
			{SteamID: "steam-unmapped", Name: "Ringer", Stats: counters(25, 5, 2, 20, 2500)},
		}, nil)

	result, err := env.ingest.Ingest(ctx, payload)
	require.NoError(t, err)
	assert.Equal(t, domain.IngestProcessed, result.Status)
	assert.Equal(t, 1, result.PlayersUpdated)

	rows, err := env.statsRepo.ListPlayerStatsByMatch(ctx, matchID)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestIngestUnresolvedQueuesPending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	payload := payloadFor("", "Nobody", "Knows", 13, 2,
		[]domain.PayloadPlayer{{SteamID: "steam-a", Name: "PlayerA", Stats: counters(10, 10, 2, 4, 1000)}}, nil)

	result, err := env.ingest.Ingest(ctx, payload)
	require.NoError(t, err)
	assert.Equal(t, domain.IngestPending, result.Status)
	assert.Zero(t, result.MatchID)

	queued, err := env.pendingRepo.ListUnresolved(ctx)
	require.NoError(t, err)
	assert.Len(t, queued, 1)
}

func TestReconcilePending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	userID := env.seedUser(t, "steam-a", "PlayerA")

	payload := payloadFor("", "Alpha", "Bravo", 16, 12,
		[]domain.PayloadPlayer{{SteamID: "steam-a", Name: "PlayerA", Stats: counters(18, 15, 5, 7, 1900)}}, nil)

	result, err := env.ingest.Ingest(ctx, payload)
	require.NoError(t, err)
	require.Equal(t, domain.IngestPending, result.Status)

	// Nothing to reconcile against yet.
	processed, err := env.ingest.ReconcilePending(ctx)
	require.NoError(t, err)
	assert.Zero(t, processed)

	// The bracket system creates the match; the next sweep picks it up.
	matchID := env.seedMatch(t, 1, "Alpha", "Bravo", domain.MatchStateLive, time.Now())

	processed, err = env.ingest.ReconcilePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	p, err := env.statsRepo.GetPlayerStats(ctx, matchID, userID)
	require.NoError(t, err)
	assert.Equal(t, 18, p.Kills)

	queued, err := env.pendingRepo.ListUnresolved(ctx)
	require.NoError(t, err)
	assert.Empty(t, queued)
}
