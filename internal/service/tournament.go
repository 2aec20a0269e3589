package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"tournament-stats/internal/constants"
	"tournament-stats/internal/domain"
	"tournament-stats/internal/metrics"
	"tournament-stats/internal/repository"
)

// TournamentService maintains the per-tournament aggregates. Two update
// strategies coexist: the additive per-match contribution and the
// wipe-and-replay full rebuild; both must produce identical rows, which
// the exclusivity lock per tournament protects.
type TournamentService struct {
	tournaments *repository.TournamentRepository
	stats       *repository.MatchStatsRepository
	matches     *repository.MatchRepository
	logger      zerolog.Logger

	locks sync.Map // tournament id -> *sync.Mutex
}

func NewTournamentService(tournaments *repository.TournamentRepository, stats *repository.MatchStatsRepository, matches *repository.MatchRepository, logger zerolog.Logger) *TournamentService {
	return &TournamentService{tournaments: tournaments, stats: stats, matches: matches, logger: logger}
}

// lock returns the exclusivity token for one tournament's aggregate rows.
func (s *TournamentService) lock(tournamentID int64) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(tournamentID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// HandleMatchCompleted is the per-match trigger: fold the match into the
// additive sums, then refresh every derived layer of the tournament.
func (s *TournamentService) HandleMatchCompleted(ctx context.Context, matchID int64) error {
	match, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		return fmt.Errorf("failed to load match %d: %w", matchID, err)
	}

	mu := s.lock(match.TournamentID)
	mu.Lock()
	defer mu.Unlock()

	if err := s.recordMatchContribution(ctx, match.TournamentID, matchID); err != nil {
		return err
	}
	return s.refreshDerivedState(ctx, match.TournamentID)
}

// recordMatchContribution folds every player row of one match into the
// tournament sums. The contribution marker makes reprocessing a completed
// match a no-op per player.
func (s *TournamentService) recordMatchContribution(ctx context.Context, tournamentID, matchID int64) error {
	players, err := s.stats.ListPlayerStatsByMatch(ctx, matchID)
	if err != nil {
		return fmt.Errorf("failed to load player rows for match %d: %w", matchID, err)
	}

	for i := range players {
		applied, err := s.tournaments.AddContribution(ctx, tournamentID, &players[i])
		if err != nil {
			return err
		}
		if !applied {
			s.logger.Debug().
				Int64("tournament_id", tournamentID).
				Int64("match_id", matchID).
				Int64("user_id", players[i].UserID).
				Msg("match already contributed for player, skipping")
		}
	}
	return nil
}

// refreshDerivedState reruns every recomputable layer: true averages,
// ratio metrics, MVP composites, the MVP flag and achievements. Caller
// holds the tournament lock.
func (s *TournamentService) refreshDerivedState(ctx context.Context, tournamentID int64) error {
	if err := s.recalculateAverages(ctx, tournamentID); err != nil {
		return err
	}
	if err := s.recalculateDerivedMetrics(ctx, tournamentID); err != nil {
		return err
	}
	if err := s.computeMvpComposites(ctx, tournamentID); err != nil {
		return err
	}
	if err := s.determineMvp(ctx, tournamentID); err != nil {
		return err
	}
	return s.generateAchievements(ctx, tournamentID)
}

// recalculateDerivedMetrics rewrites every ratio field from the stored
// sums. Pure function of the row, safe to call repeatedly.
func (s *TournamentService) recalculateDerivedMetrics(ctx context.Context, tournamentID int64) error {
	players, err := s.tournaments.ListByTournament(ctx, tournamentID)
	if err != nil {
		return fmt.Errorf("failed to list tournament players: %w", err)
	}

	for i := range players {
		t := &players[i]
		t.KDRatio = metrics.Ratio(float64(t.Kills), float64(t.Deaths))
		t.HSPercent = metrics.Percent(float64(t.Headshots), float64(t.Kills))
		t.Accuracy = metrics.Percent(float64(t.ShotsOnTarget), float64(t.ShotsFired))
		if t.RoundsPlayed > 0 {
			t.ADR = float64(t.Damage) / float64(t.RoundsPlayed)
		} else {
			t.ADR = 0
		}
		t.Clutch1v1Rate = metrics.Percent(float64(t.Clutch1v1Wins), float64(t.Clutch1v1Attempts))
		t.Clutch1v2Rate = metrics.Percent(float64(t.Clutch1v2Wins), float64(t.Clutch1v2Attempts))
		t.Clutch1v3Rate = metrics.Percent(float64(t.Clutch1v3Wins), float64(t.Clutch1v3Attempts))
		t.Clutch1v4Rate = metrics.Percent(float64(t.Clutch1v4Wins), float64(t.Clutch1v4Attempts))
		t.EntrySuccessRate = metrics.Percent(float64(t.EntryWins), float64(t.EntryAttempts))

		if err := s.tournaments.UpdateDerived(ctx, t); err != nil {
			return fmt.Errorf("failed to update derived metrics for user %d: %w", t.UserID, err)
		}
	}
	return nil
}

// recalculateAverages re-queries all per-match rating/KAST/impact samples
// for every tournament player and stores true averages. These cannot be
// maintained additively, so it is always a full re-scan.
func (s *TournamentService) recalculateAverages(ctx context.Context, tournamentID int64) error {
	players, err := s.tournaments.ListByTournament(ctx, tournamentID)
	if err != nil {
		return fmt.Errorf("failed to list tournament players: %w", err)
	}

	g, gCtx := errgroup.WithContext(ctx)
	for _, t := range players {
		g.Go(func() error {
			samples, err := s.stats.ListTournamentPlayerMetrics(gCtx, tournamentID, t.UserID)
			if err != nil {
				return fmt.Errorf("failed to load metric samples for user %d: %w", t.UserID, err)
			}
			if len(samples) == 0 {
				return nil
			}
			var sumRating, sumKAST, sumImpact float64
			for _, m := range samples {
				sumRating += m.Rating
				sumKAST += m.KAST
				sumImpact += m.Impact
			}
			n := float64(len(samples))
			return s.tournaments.UpdateAverages(gCtx, tournamentID, t.UserID, sumRating/n, sumKAST/n, sumImpact/n)
		})
	}
	return g.Wait()
}

// computeMvpComposites writes both MVP composites from the already-derived
// metrics.
func (s *TournamentService) computeMvpComposites(ctx context.Context, tournamentID int64) error {
	players, err := s.tournaments.ListByTournament(ctx, tournamentID)
	if err != nil {
		return fmt.Errorf("failed to list tournament players: %w", err)
	}

	for _, t := range players {
		score := metrics.MVPComposite(t.AvgRating, t.KDRatio, t.ADR, t.AvgKAST, t.HSPercent, t.Clutch1v1Rate)
		weighted := metrics.WeightedMVPComposite(score, t.MatchesPlayed)
		if err := s.tournaments.UpdateMVPScores(ctx, tournamentID, t.UserID, score, weighted); err != nil {
			return fmt.Errorf("failed to update mvp scores for user %d: %w", t.UserID, err)
		}
	}
	return nil
}

// determineMvp flags exactly one player: highest participation-weighted
// composite among players with at least one match, ties broken by total
// kills descending, then user id ascending. Deterministic and idempotent.
func (s *TournamentService) determineMvp(ctx context.Context, tournamentID int64) error {
	players, err := s.tournaments.ListByTournament(ctx, tournamentID)
	if err != nil {
		return fmt.Errorf("failed to list tournament players: %w", err)
	}

	candidates := players[:0]
	for _, t := range players {
		if t.MatchesPlayed >= 1 {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		return s.tournaments.ClearMVP(ctx, tournamentID)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].MVPScoreWeighted != candidates[j].MVPScoreWeighted {
			return candidates[i].MVPScoreWeighted > candidates[j].MVPScoreWeighted
		}
		if candidates[i].Kills != candidates[j].Kills {
			return candidates[i].Kills > candidates[j].Kills
		}
		return candidates[i].UserID < candidates[j].UserID
	})

	winner := candidates[0]
	s.logger.Info().
		Int64("tournament_id", tournamentID).
		Int64("user_id", winner.UserID).
		Float64("weighted_score", winner.MVPScoreWeighted).
		Msg("tournament mvp determined")
	return s.tournaments.SetMVP(ctx, tournamentID, winner.UserID)
}

// achievementValue extracts the ranked column for one category.
func achievementValue(category domain.AchievementCategory, t *domain.TournamentPlayerStats) float64 {
	switch category {
	case domain.AchievementMostKills:
		return float64(t.Kills)
	case domain.AchievementMostDamage:
		return float64(t.Damage)
	case domain.AchievementBestADR:
		return t.ADR
	case domain.AchievementMostHeadshots:
		return float64(t.Headshots)
	case domain.AchievementMostClutches:
		return float64(t.Clutch1v1Wins + t.Clutch1v2Wins + t.Clutch1v3Wins + t.Clutch1v4Wins)
	case domain.AchievementBestEntry:
		return t.EntrySuccessRate
	case domain.AchievementMostUtilityDamage:
		return float64(t.UtilityDamage)
	case domain.AchievementMostFlashAssists:
		return float64(t.FlashAssists)
	default:
		return 0
	}
}

var achievementCategories = []domain.AchievementCategory{
	domain.AchievementMostKills,
	domain.AchievementMostDamage,
	domain.AchievementBestADR,
	domain.AchievementMostHeadshots,
	domain.AchievementMostClutches,
	domain.AchievementBestEntry,
	domain.AchievementMostUtilityDamage,
	domain.AchievementMostFlashAssists,
}

// generateAchievements replaces the tournament's achievement rows with the
// top 3 per category. Players with a non-positive value or no matches are
// excluded; ordering is value descending then user id ascending so ranks
// never depend on row order.
func (s *TournamentService) generateAchievements(ctx context.Context, tournamentID int64) error {
	players, err := s.tournaments.ListByTournament(ctx, tournamentID)
	if err != nil {
		return fmt.Errorf("failed to list tournament players: %w", err)
	}

	var achievements []domain.Achievement
	for _, category := range achievementCategories {
		type ranked struct {
			userID int64
			value  float64
		}
		var eligible []ranked
		for i := range players {
			t := &players[i]
			if t.MatchesPlayed == 0 {
				continue
			}
			v := achievementValue(category, t)
			if v <= 0 {
				continue
			}
			eligible = append(eligible, ranked{userID: t.UserID, value: v})
		}
		sort.Slice(eligible, func(i, j int) bool {
			if eligible[i].value != eligible[j].value {
				return eligible[i].value > eligible[j].value
			}
			return eligible[i].userID < eligible[j].userID
		})
		for i, e := range eligible {
			if i >= constants.AchievementTopN {
				break
			}
			achievements = append(achievements, domain.Achievement{
				TournamentID: tournamentID,
				Category:     category,
				Rank:         i + 1,
				UserID:       e.userID,
				Value:        e.value,
			})
		}
	}

	return s.tournaments.ReplaceAchievements(ctx, tournamentID, achievements)
}

// RecalculateTournamentStats is the authoritative repair path: wipe every
// aggregate, contribution marker and achievement for the tournament, then
// replay all completed matches in ascending id order through the
// incremental path and rerun every derived layer. The result must equal
// what incremental accumulation produced, field for field. Non-atomic
// across its run, but safe to re-invoke because it always starts from a
// wipe.
func (s *TournamentService) RecalculateTournamentStats(ctx context.Context, tournamentID int64) error {
	mu := s.lock(tournamentID)
	mu.Lock()
	defer mu.Unlock()

	s.logger.Info().Int64("tournament_id", tournamentID).Msg("rebuilding tournament aggregates from scratch")

	if err := s.tournaments.Wipe(ctx, tournamentID); err != nil {
		return err
	}

	matches, err := s.matches.ListCompletedByTournament(ctx, tournamentID)
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := s.recordMatchContribution(ctx, tournamentID, m.ID); err != nil {
			return fmt.Errorf("failed to replay match %d: %w", m.ID, err)
		}
	}

	return s.refreshDerivedState(ctx, tournamentID)
}
