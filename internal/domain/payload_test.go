package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexibleMatchIDAcceptsStringAndNumber(t *testing.T) {
	var p TelemetryPayload
	require.NoError(t, json.Unmarshal([]byte(`{"matchId": "42"}`), &p))
	assert.Equal(t, FlexibleMatchID("42"), p.MatchID)

	require.NoError(t, json.Unmarshal([]byte(`{"matchId": 42}`), &p))
	assert.Equal(t, FlexibleMatchID("42"), p.MatchID)

	require.NoError(t, json.Unmarshal([]byte(`{}`), &TelemetryPayload{}))

	err := json.Unmarshal([]byte(`{"matchId": [1]}`), &p)
	assert.Error(t, err)
}

func TestPlayersCarriesSideAndOutcome(t *testing.T) {
	p := TelemetryPayload{
		Team1: PayloadTeam{Name: "Alpha", Score: 16, Players: []PayloadPlayer{{SteamID: "a"}}},
		Team2: PayloadTeam{Name: "Bravo", Score: 12, Players: []PayloadPlayer{{SteamID: "b"}, {SteamID: "c"}}},
	}

	entries := p.Players()
	require.Len(t, entries, 3)

	assert.Equal(t, 1, entries[0].TeamNumber)
	assert.True(t, entries[0].Won)
	assert.Equal(t, 2, entries[1].TeamNumber)
	assert.False(t, entries[1].Won)
	assert.Equal(t, "c", entries[2].Player.SteamID)
}
