package domain

import (
	"time"
)

// MatchState is the lifecycle state of a canonical match, owned by the
// bracket system. This core only reads it.
type MatchState string

const (
	MatchStatePending   MatchState = "pending"
	MatchStateLive      MatchState = "live"
	MatchStateCompleted MatchState = "completed"
	MatchStateCancelled MatchState = "cancelled"
)

// CanonicalMatch is the internally-tracked match a telemetry payload is
// reconciled against. Read-only to this core.
type CanonicalMatch struct {
	ID           int64
	TournamentID int64
	Team1ID      int64
	Team2ID      int64
	Team1Name    string
	Team2Name    string
	State        MatchState
	CreatedAt    time.Time
}

// User is an entry in the identity directory (external platform id to
// internal user id). Read-only to this core.
type User struct {
	ID          int64
	SteamID     string
	DisplayName string
}

// MatchStats is the per-match row written once per processed payload.
// Keyed by match id; reprocessing overwrites it.
type MatchStats struct {
	MatchID      int64
	MapName      string
	RoundsPlayed int
	Team1Name    string
	Team2Name    string
	Team1Score   int
	Team2Score   int
	DemoRef      string
	RawPayload   string
	Processed    bool
	ProcessedAt  time.Time
}

// PlayerMatchStats is one row per (match, user): the raw plugin counters
// plus per-match derived metrics computed at persist time. Reprocessing a
// payload overwrites the row, never appends.
type PlayerMatchStats struct {
	MatchID int64
	UserID  int64

	Kills          int
	Deaths         int
	Assists        int
	Headshots      int
	Damage         int
	UtilityDamage  int
	EnemiesFlashed int
	FlashAssists   int
	ShotsFired     int
	ShotsOnTarget  int
	EntryAttempts  int
	EntryWins      int

	Clutch1v1Attempts int
	Clutch1v1Wins     int
	Clutch1v2Attempts int
	Clutch1v2Wins     int
	Clutch1v3Attempts int
	Clutch1v3Wins     int
	Clutch1v4Attempts int
	Clutch1v4Wins     int

	MultiKill2K int
	MultiKill3K int
	MultiKill4K int
	MultiKill5K int

	TradeKills   int
	KASTRounds   int
	RoundsPlayed int
	Won          bool
	Drawn        bool

	// Derived at persist time.
	HSPercent float64
	Accuracy  float64
	ADR       float64
	KAST      float64
	Impact    float64
	Rating    float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PlayerAggregatedStats is the lifetime row per user, fully recomputed from
// all of the user's PlayerMatchStats rows on every update.
type PlayerAggregatedStats struct {
	UserID int64

	MatchesPlayed int
	RoundsPlayed  int
	Kills         int
	Deaths        int
	Assists       int
	Headshots     int
	Damage        int

	KDRatio          float64
	HSPercent        float64
	Accuracy         float64
	ADR              float64
	AvgKAST          float64
	AvgRating        float64
	AvgImpact        float64
	ClutchWinRate    float64
	EntrySuccessRate float64

	UpdatedAt time.Time
}

// TournamentPlayerStats is the additive per-(tournament, user) aggregate.
// Counter fields are running sums maintained by the incremental path; the
// ratio fields are pure functions of those sums and safe to recompute any
// number of times.
type TournamentPlayerStats struct {
	TournamentID int64
	UserID       int64

	MatchesPlayed int
	Wins          int
	Losses        int
	RoundsPlayed  int

	Kills          int
	Deaths         int
	Assists        int
	Headshots      int
	Damage         int
	UtilityDamage  int
	EnemiesFlashed int
	FlashAssists   int
	ShotsFired     int
	ShotsOnTarget  int
	EntryAttempts  int
	EntryWins      int

	Clutch1v1Attempts int
	Clutch1v1Wins     int
	Clutch1v2Attempts int
	Clutch1v2Wins     int
	Clutch1v3Attempts int
	Clutch1v3Wins     int
	Clutch1v4Attempts int
	Clutch1v4Wins     int

	MultiKill2K int
	MultiKill3K int
	MultiKill4K int
	MultiKill5K int

	KDRatio          float64
	HSPercent        float64
	Accuracy         float64
	ADR              float64
	Clutch1v1Rate    float64
	Clutch1v2Rate    float64
	Clutch1v3Rate    float64
	Clutch1v4Rate    float64
	EntrySuccessRate float64

	// True averages over per-match values; always a full re-scan.
	AvgRating float64
	AvgKAST   float64
	AvgImpact float64

	MVPScore         float64
	MVPScoreWeighted float64
	IsMVP            bool

	UpdatedAt time.Time
}

// AchievementCategory names one leaderboard column a tournament
// achievement is ranked by.
type AchievementCategory string

const (
	AchievementMostKills         AchievementCategory = "most_kills"
	AchievementMostDamage        AchievementCategory = "most_damage"
	AchievementBestADR           AchievementCategory = "best_adr"
	AchievementMostHeadshots     AchievementCategory = "most_headshots"
	AchievementMostClutches      AchievementCategory = "most_clutches"
	AchievementBestEntry         AchievementCategory = "best_entry"
	AchievementMostUtilityDamage AchievementCategory = "most_utility_damage"
	AchievementMostFlashAssists  AchievementCategory = "most_flash_assists"
)

// Achievement is a top-3 placement in one category of one tournament.
type Achievement struct {
	TournamentID int64
	Category     AchievementCategory
	Rank         int
	UserID       int64
	Value        float64
}

// AnomalySeverity classifies a single finding.
type AnomalySeverity string

const (
	SeverityMedium   AnomalySeverity = "medium"
	SeverityHigh     AnomalySeverity = "high"
	SeverityCritical AnomalySeverity = "critical"
)

// RiskLevel classifies the combined score of all findings for one
// (user, match) pass.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// ReviewAction is the coarse action label attached to a risk level or a
// trust score band.
type ReviewAction string

const (
	ActionNone            ReviewAction = "none"
	ActionWatchList       ReviewAction = "watch_list"
	ActionFlagForReview   ReviewAction = "flag_for_review"
	ActionImmediateReview ReviewAction = "immediate_review"
)

// Anomaly is an append-only record of one fired heuristic. Never mutated.
type Anomaly struct {
	ID           int64
	UserID       int64
	MatchID      int64
	Type         string
	Severity     AnomalySeverity
	Observed     float64
	Expected     float64
	DeviationPct float64
	Description  string
	Evidence     string
	CreatedAt    time.Time
}

// TrustScore is the mutable per-user integrity score. This core only
// decreases it; recovery happens elsewhere.
type TrustScore struct {
	UserID    int64
	Score     int
	UpdatedAt time.Time
}

// TrustScoreChange is one append-only history entry for a trust score.
type TrustScoreChange struct {
	ID        int64
	UserID    int64
	OldScore  int
	NewScore  int
	OldAction ReviewAction
	NewAction ReviewAction
	Reason    string
	CreatedAt time.Time
}

// PendingPayload holds a telemetry payload that could not be reconciled to
// a canonical match yet.
type PendingPayload struct {
	ID         string
	RawPayload string
	ReceivedAt time.Time
	Resolved   bool
	ResolvedAt *time.Time
}
