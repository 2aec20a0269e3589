package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tournament-stats/internal/domain"
	"tournament-stats/internal/metrics"
	"tournament-stats/internal/repository"
)

// LifetimeService recomputes a user's all-time aggregate from scratch.
// Running it any number of times, in any order, for any subset of touched
// users converges to the same row.
type LifetimeService struct {
	stats      *repository.MatchStatsRepository
	aggregates *repository.AggregateRepository
	logger     zerolog.Logger
}

func NewLifetimeService(stats *repository.MatchStatsRepository, aggregates *repository.AggregateRepository, logger zerolog.Logger) *LifetimeService {
	return &LifetimeService{stats: stats, aggregates: aggregates, logger: logger}
}

// Recompute rebuilds the lifetime row from every per-match row the user
// currently has. Full recompute, not incremental.
func (s *LifetimeService) Recompute(ctx context.Context, userID int64) error {
	rows, err := s.stats.ListPlayerStatsByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load match rows for user %d: %w", userID, err)
	}
	if len(rows) == 0 {
		return nil
	}

	agg := domain.PlayerAggregatedStats{UserID: userID, MatchesPlayed: len(rows)}

	var sumKAST, sumRating, sumImpact float64
	var shotsFired, shotsOnTarget int
	var clutchAttempts, clutchWins int
	var entryAttempts, entryWins int
	for _, p := range rows {
		agg.RoundsPlayed += p.RoundsPlayed
		agg.Kills += p.Kills
		agg.Deaths += p.Deaths
		agg.Assists += p.Assists
		agg.Headshots += p.Headshots
		agg.Damage += p.Damage

		shotsFired += p.ShotsFired
		shotsOnTarget += p.ShotsOnTarget
		clutchAttempts += p.Clutch1v1Attempts + p.Clutch1v2Attempts + p.Clutch1v3Attempts + p.Clutch1v4Attempts
		clutchWins += p.Clutch1v1Wins + p.Clutch1v2Wins + p.Clutch1v3Wins + p.Clutch1v4Wins
		entryAttempts += p.EntryAttempts
		entryWins += p.EntryWins

		sumKAST += p.KAST
		sumRating += p.Rating
		sumImpact += p.Impact
	}

	agg.KDRatio = metrics.Ratio(float64(agg.Kills), float64(agg.Deaths))
	agg.HSPercent = metrics.Percent(float64(agg.Headshots), float64(agg.Kills))
	agg.Accuracy = metrics.Percent(float64(shotsOnTarget), float64(shotsFired))
	if agg.RoundsPlayed > 0 {
		agg.ADR = float64(agg.Damage) / float64(agg.RoundsPlayed)
	}
	n := float64(len(rows))
	agg.AvgKAST = sumKAST / n
	agg.AvgRating = sumRating / n
	agg.AvgImpact = sumImpact / n
	agg.ClutchWinRate = metrics.Percent(float64(clutchWins), float64(clutchAttempts))
	agg.EntrySuccessRate = metrics.Percent(float64(entryWins), float64(entryAttempts))
	agg.UpdatedAt = time.Now()

	if err := s.aggregates.Upsert(ctx, &agg); err != nil {
		return fmt.Errorf("failed to upsert lifetime aggregate for user %d: %w", userID, err)
	}

	s.logger.Debug().
		Int64("user_id", userID).
		Int("matches", agg.MatchesPlayed).
		Float64("avg_rating", agg.AvgRating).
		Msg("lifetime aggregate recomputed")
	return nil
}
