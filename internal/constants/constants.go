package constants

import "time"

const (
	// ResolveWindow bounds the team-name fallback lookup: only matches
	// created within this window are reconciliation candidates.
	ResolveWindow = 24 * time.Hour

	DatabaseTimeout = 5 * time.Second
	RequestTimeout  = 30 * time.Second
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	// TrustPenaltyPerCritical is subtracted from a user's trust score for
	// each critical anomaly found in one detection pass.
	TrustPenaltyPerCritical = 10

	// AchievementTopN placements are stored per category.
	AchievementTopN = 3
)
