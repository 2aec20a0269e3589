package domain

import (
	"encoding/json"
	"fmt"
)

// FlexibleMatchID accepts both a string and a number for the plugin's
// matchid field; some server configs send it as an integer.
type FlexibleMatchID string

func (f *FlexibleMatchID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexibleMatchID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexibleMatchID(n.String())
		return nil
	}
	return fmt.Errorf("matchId must be string or number, got: %s", string(data))
}

// PlayerCounters are the raw per-player counters pushed by the game-server
// plugin at map end.
type PlayerCounters struct {
	Kills          int `json:"kills"`
	Deaths         int `json:"deaths"`
	Assists        int `json:"assists"`
	Headshots      int `json:"headshot_kills"`
	Damage         int `json:"damage"`
	UtilityDamage  int `json:"utility_damage"`
	EnemiesFlashed int `json:"enemies_flashed"`
	FlashAssists   int `json:"flash_assists"`
	ShotsFired     int `json:"shots_fired"`
	ShotsOnTarget  int `json:"shots_on_target"`
	EntryAttempts  int `json:"entry_attempts"`
	EntryWins      int `json:"entry_wins"`

	Clutch1v1Attempts int `json:"1v1_attempts"`
	Clutch1v1Wins     int `json:"1v1_wins"`
	Clutch1v2Attempts int `json:"1v2_attempts"`
	Clutch1v2Wins     int `json:"1v2_wins"`
	Clutch1v3Attempts int `json:"1v3_attempts"`
	Clutch1v3Wins     int `json:"1v3_wins"`
	Clutch1v4Attempts int `json:"1v4_attempts"`
	Clutch1v4Wins     int `json:"1v4_wins"`

	MultiKill2K int `json:"2k"`
	MultiKill3K int `json:"3k"`
	MultiKill4K int `json:"4k"`
	MultiKill5K int `json:"5k"`

	TradeKills int `json:"trade_kills"`
	KASTRounds int `json:"kast_rounds"`
}

// PayloadPlayer is one rostered player in a telemetry payload, identified
// by their external platform id.
type PayloadPlayer struct {
	SteamID string         `json:"steamid"`
	Name    string         `json:"name"`
	Stats   PlayerCounters `json:"stats"`
}

// PayloadTeam is one side of a telemetry payload.
type PayloadTeam struct {
	Name    string          `json:"name"`
	Score   int             `json:"score"`
	Players []PayloadPlayer `json:"players"`
}

// TelemetryPayload is the raw per-match statistics block pushed by the
// game-server plugin. Transient: persisted verbatim only inside the
// MatchStats raw snapshot for audit.
type TelemetryPayload struct {
	MatchID FlexibleMatchID `json:"matchId,omitempty"`
	MapName string          `json:"mapName"`
	Team1   PayloadTeam     `json:"team1"`
	Team2   PayloadTeam     `json:"team2"`
	Rounds  int             `json:"rounds"`
	DemoRef string          `json:"demoRef,omitempty"`
}

// Players returns both rosters with the team each player was on
// (1 or 2) and that team's outcome on rounds. A level scoreline is an
// explicit draw for both sides, not a loss.
func (p *TelemetryPayload) Players() []PayloadRosterEntry {
	drawn := p.Team1.Score == p.Team2.Score
	entries := make([]PayloadRosterEntry, 0, len(p.Team1.Players)+len(p.Team2.Players))
	for _, pl := range p.Team1.Players {
		entries = append(entries, PayloadRosterEntry{Player: pl, TeamNumber: 1, Won: p.Team1.Score > p.Team2.Score, Drawn: drawn})
	}
	for _, pl := range p.Team2.Players {
		entries = append(entries, PayloadRosterEntry{Player: pl, TeamNumber: 2, Won: p.Team2.Score > p.Team1.Score, Drawn: drawn})
	}
	return entries
}

// PayloadRosterEntry pairs a payload player with their side of the match.
type PayloadRosterEntry struct {
	Player     PayloadPlayer
	TeamNumber int
	Won        bool
	Drawn      bool
}

// IngestStatus reports how an ingestion call ended.
type IngestStatus string

const (
	IngestProcessed IngestStatus = "processed"
	IngestPending   IngestStatus = "pending"
)

// IngestResult is the acknowledgement returned to the webhook caller.
type IngestResult struct {
	Status         IngestStatus `json:"status"`
	MatchID        int64        `json:"matchId,omitempty"`
	PlayersUpdated int          `json:"playersUpdated"`
}
