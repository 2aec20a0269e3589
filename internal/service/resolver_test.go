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

func TestResolveMatchExplicitID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	matchID := env.seedMatch(t, 1, "Alpha", "Bravo", domain.MatchStateLive, time.Now())
	payload := payloadFor(strconv.FormatInt(matchID, 10), "Alpha", "Bravo", 13, 7, nil, nil)

	match, resolved, err := env.resolver.ResolveMatch(ctx, payload)
	require.NoError(t, err)
	require.True(t, resolved)
	assert.Equal(t, matchID, match.ID)
}

func TestResolveMatchUnknownExplicitID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	payload := payloadFor("9999", "Alpha", "Bravo", 13, 7, nil, nil)

	match, resolved, err := env.resolver.ResolveMatch(ctx, payload)
	require.NoError(t, err)
	assert.False(t, resolved)
	assert.Nil(t, match)
}

func TestResolveMatchByTeamNames(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	matchID := env.seedMatch(t, 1, "Alpha", "Bravo", domain.MatchStateLive, time.Now().Add(-time.Hour))

	// Same resolution regardless of which side the plugin lists first.
	for _, teams := range [][2]string{{"Alpha", "Bravo"}, {"Bravo", "Alpha"}} {
		payload := payloadFor("", teams[0], teams[1], 13, 7, nil, nil)
		match, resolved, err := env.resolver.ResolveMatch(ctx, payload)
		require.NoError(t, err)
		require.True(t, resolved)
		assert.Equal(t, matchID, match.ID)
	}
}

func TestResolveMatchOutsideWindow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedMatch(t, 1, "Alpha", "Bravo", domain.MatchStateLive, time.Now().Add(-25*time.Hour))
	payload := payloadFor("", "Alpha", "Bravo", 13, 7, nil, nil)

	_, resolved, err := env.resolver.ResolveMatch(ctx, payload)
	require.NoError(t, err)
	assert.False(t, resolved)
}

func TestResolveMatchPicksMostRecent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedMatch(t, 1, "Alpha", "Bravo", domain.MatchStateCompleted, time.Now().Add(-3*time.Hour))
	recent := env.seedMatch(t, 1, "Alpha", "Bravo", domain.MatchStateLive, time.Now().Add(-time.Hour))

	payload := payloadFor("", "Alpha", "Bravo", 13, 7, nil, nil)
	match, resolved, err := env.resolver.ResolveMatch(ctx, payload)
	require.NoError(t, err)
	require.True(t, resolved)
	assert.Equal(t, recent, match.ID)
}

func TestResolveMatchIgnoresPendingAndCancelled(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedMatch(t, 1, "Alpha", "Bravo", domain.MatchStatePending, time.Now())
	env.seedMatch(t, 1, "Alpha", "Bravo", domain.MatchStateCancelled, time.Now())

	payload := payloadFor("", "Alpha", "Bravo", 13, 7, nil, nil)
	_, resolved, err := env.resolver.ResolveMatch(ctx, payload)
	require.NoError(t, err)
	assert.False(t, resolved)
}

func TestResolveMatchNonNumericIDFallsBack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	matchID := env.seedMatch(t, 1, "Alpha", "Bravo", domain.MatchStateLive, time.Now())
	payload := payloadFor("scrim-42", "Alpha", "Bravo", 13, 7, nil, nil)

	match, resolved, err := env.resolver.ResolveMatch(ctx, payload)
	require.NoError(t, err)
	require.True(t, resolved)
	assert.Equal(t, matchID, match.ID)
}

func TestResolveUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	userID := env.seedUser(t, "76561198000000001", "s1mple")

	got, err := env.resolver.ResolveUser(ctx, "76561198000000001")
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	_, err = env.resolver.ResolveUser(ctx, "76561198999999999")
	assert.ErrorIs(t, err, domain.ErrUnknownPlayer)
}
