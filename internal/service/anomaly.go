package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"tournament-stats/internal/constants"
	"tournament-stats/internal/domain"
	"tournament-stats/internal/metrics"
	"tournament-stats/internal/repository"
)

// Finding is one fired heuristic before persistence.
type Finding struct {
	Type         string
	Severity     domain.AnomalySeverity
	Observed     float64
	Expected     float64
	DeviationPct float64
	Score        int
	Description  string
	Evidence     map[string]any
}

// DetectionResult is the outcome of one detection pass.
type DetectionResult struct {
	Findings  []Finding
	Score     int
	RiskLevel domain.RiskLevel
	Action    domain.ReviewAction
}

// DetectFindings runs the fixed heuristic set over one freshly-persisted
// player-match row and the player's lifetime aggregate (nil when the
// player has no history yet). Pure: no IO, deterministic for the same
// inputs.
func DetectFindings(p *domain.PlayerMatchStats, lifetime *domain.PlayerAggregatedStats) DetectionResult {
	var findings []Finding

	add := func(f Finding) {
		findings = append(findings, f)
	}

	// Headshot outliers. The lower tier only applies when the critical
	// one did not fire.
	switch {
	case p.HSPercent > 85 && p.Kills >= 10:
		add(Finding{
			Type:         "headshot_outlier",
			Severity:     domain.SeverityCritical,
			Observed:     p.HSPercent,
			Expected:     85,
			DeviationPct: deviation(p.HSPercent, 85),
			Score:        35,
			Description:  fmt.Sprintf("headshot rate %.1f%% over %d kills is outside human range", p.HSPercent, p.Kills),
			Evidence:     map[string]any{"hs_percent": p.HSPercent, "kills": p.Kills, "headshots": p.Headshots},
		})
	case p.HSPercent > 75 && p.Kills >= 15:
		add(Finding{
			Type:         "headshot_outlier",
			Severity:     domain.SeverityHigh,
			Observed:     p.HSPercent,
			Expected:     75,
			DeviationPct: deviation(p.HSPercent, 75),
			Score:        20,
			Description:  fmt.Sprintf("sustained headshot rate %.1f%% over %d kills", p.HSPercent, p.Kills),
			Evidence:     map[string]any{"hs_percent": p.HSPercent, "kills": p.Kills, "headshots": p.Headshots},
		})
	}

	currentKD := metrics.Ratio(float64(p.Kills), float64(p.Deaths))

	if lifetime != nil && lifetime.MatchesPlayed >= 10 && currentKD > 2*lifetime.KDRatio && currentKD > 2.0 {
		add(Finding{
			Type:         "kd_jump",
			Severity:     domain.SeverityHigh,
			Observed:     currentKD,
			Expected:     lifetime.KDRatio,
			DeviationPct: deviation(currentKD, lifetime.KDRatio),
			Score:        25,
			Description:  fmt.Sprintf("K/D %.2f is more than double the historical %.2f", currentKD, lifetime.KDRatio),
			Evidence:     map[string]any{"current_kd": currentKD, "historical_kd": lifetime.KDRatio, "history_matches": lifetime.MatchesPlayed},
		})
	}

	if lifetime != nil && lifetime.MatchesPlayed > 0 && p.HSPercent > 1.3*lifetime.HSPercent {
		add(Finding{
			Type:         "hs_percent_jump",
			Severity:     domain.SeverityMedium,
			Observed:     p.HSPercent,
			Expected:     lifetime.HSPercent,
			DeviationPct: deviation(p.HSPercent, lifetime.HSPercent),
			Score:        15,
			Description:  fmt.Sprintf("headshot rate %.1f%% well above the historical average %.1f%%", p.HSPercent, lifetime.HSPercent),
			Evidence:     map[string]any{"current_hs_percent": p.HSPercent, "historical_hs_percent": lifetime.HSPercent},
		})
	}

	if p.RoundsPlayed > 0 {
		utilPerRound := float64(p.UtilityDamage) / float64(p.RoundsPlayed)
		if utilPerRound < 10 && float64(p.Kills) > 1.5*float64(p.Deaths) {
			add(Finding{
				Type:         "utility_light_efficiency",
				Severity:     domain.SeverityMedium,
				Observed:     utilPerRound,
				Expected:     10,
				DeviationPct: deviation(10, utilPerRound),
				Score:        20,
				Description:  fmt.Sprintf("dominant frag line (%d/%d) with only %.1f utility damage per round", p.Kills, p.Deaths, utilPerRound),
				Evidence:     map[string]any{"utility_per_round": utilPerRound, "kills": p.Kills, "deaths": p.Deaths},
			})
		}
	}

	clutchAttempts := p.Clutch1v1Attempts + p.Clutch1v2Attempts + p.Clutch1v3Attempts + p.Clutch1v4Attempts
	clutchWins := p.Clutch1v1Wins + p.Clutch1v2Wins + p.Clutch1v3Wins + p.Clutch1v4Wins
	if clutchAttempts >= 3 && clutchWins == clutchAttempts {
		add(Finding{
			Type:         "perfect_clutch_record",
			Severity:     domain.SeverityMedium,
			Observed:     100,
			Expected:     50,
			DeviationPct: 100,
			Score:        15,
			Description:  fmt.Sprintf("won all %d clutch situations in one match", clutchAttempts),
			Evidence:     map[string]any{"clutch_attempts": clutchAttempts, "clutch_wins": clutchWins},
		})
	}

	if p.EntryAttempts >= 8 {
		entryRate := metrics.Percent(float64(p.EntryWins), float64(p.EntryAttempts))
		if entryRate > 80 {
			add(Finding{
				Type:         "opening_duel_dominance",
				Severity:     domain.SeverityMedium,
				Observed:     entryRate,
				Expected:     80,
				DeviationPct: deviation(entryRate, 80),
				Score:        18,
				Description:  fmt.Sprintf("won %.0f%% of %d opening duels", entryRate, p.EntryAttempts),
				Evidence:     map[string]any{"entry_attempts": p.EntryAttempts, "entry_wins": p.EntryWins},
			})
		}
	}

	total := 0
	for _, f := range findings {
		total += f.Score
	}

	level, action := classifyRisk(total)
	return DetectionResult{Findings: findings, Score: total, RiskLevel: level, Action: action}
}

func deviation(observed, expected float64) float64 {
	if expected == 0 {
		return 0
	}
	return 100 * (observed - expected) / expected
}

func classifyRisk(score int) (domain.RiskLevel, domain.ReviewAction) {
	switch {
	case score >= 80:
		return domain.RiskCritical, domain.ActionImmediateReview
	case score >= 60:
		return domain.RiskHigh, domain.ActionFlagForReview
	case score >= 40:
		return domain.RiskMedium, domain.ActionWatchList
	default:
		return domain.RiskLow, domain.ActionNone
	}
}

// trustAction is the coarse label for a trust score band.
func trustAction(score int) domain.ReviewAction {
	switch {
	case score >= 80:
		return domain.ActionNone
	case score >= 60:
		return domain.ActionWatchList
	case score >= 40:
		return domain.ActionFlagForReview
	default:
		return domain.ActionImmediateReview
	}
}

// AnomalyService persists detection findings and feeds the trust score.
type AnomalyService struct {
	anomalies  *repository.AnomalyRepository
	trust      *repository.TrustRepository
	aggregates *repository.AggregateRepository
	stats      *repository.MatchStatsRepository
	logger     zerolog.Logger
}

func NewAnomalyService(anomalies *repository.AnomalyRepository, trust *repository.TrustRepository, aggregates *repository.AggregateRepository, stats *repository.MatchStatsRepository, logger zerolog.Logger) *AnomalyService {
	return &AnomalyService{anomalies: anomalies, trust: trust, aggregates: aggregates, stats: stats, logger: logger}
}

// Analyze runs detection for one freshly-persisted (user, match) row,
// persists each finding as an immutable anomaly record and lowers the
// trust score for critical findings. The detection marker is claimed
// atomically with the findings, so redelivered webhooks, concurrent or
// not, can never duplicate anomaly rows or double-penalize trust.
func (s *AnomalyService) Analyze(ctx context.Context, userID, matchID int64) (*DetectionResult, error) {
	p, err := s.stats.GetPlayerStats(ctx, matchID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load player match row: %w", err)
	}

	lifetime, err := s.aggregates.GetByUser(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		lifetime = nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to load lifetime aggregate: %w", err)
	}

	result := DetectFindings(p, lifetime)

	criticals := 0
	records := make([]domain.Anomaly, 0, len(result.Findings))
	for _, f := range result.Findings {
		evidence, err := json.Marshal(f.Evidence)
		if err != nil {
			evidence = []byte("{}")
		}
		records = append(records, domain.Anomaly{
			UserID:       userID,
			MatchID:      matchID,
			Type:         f.Type,
			Severity:     f.Severity,
			Observed:     f.Observed,
			Expected:     f.Expected,
			DeviationPct: f.DeviationPct,
			Description:  f.Description,
			Evidence:     string(evidence),
		})
		if f.Severity == domain.SeverityCritical {
			criticals++
		}
	}

	claimed, err := s.anomalies.RecordDetection(ctx, userID, matchID, records)
	if err != nil {
		return nil, fmt.Errorf("failed to record detection: %w", err)
	}
	if !claimed {
		s.logger.Debug().Int64("user_id", userID).Int64("match_id", matchID).Msg("detection already ran for this match, skipping")
		return &DetectionResult{RiskLevel: domain.RiskLow, Action: domain.ActionNone}, nil
	}

	if len(result.Findings) > 0 {
		s.logger.Warn().
			Int64("user_id", userID).
			Int64("match_id", matchID).
			Int("findings", len(result.Findings)).
			Int("score", result.Score).
			Str("risk_level", string(result.RiskLevel)).
			Msg("anomalies detected")
	}

	if criticals > 0 {
		if err := s.adjustTrustScore(ctx, userID, matchID, criticals); err != nil {
			return nil, err
		}
	}

	return &result, nil
}

// adjustTrustScore lowers the user's trust score by a fixed penalty per
// critical finding, floored at zero. No-op when the account system has
// not created a trust row yet.
func (s *AnomalyService) adjustTrustScore(ctx context.Context, userID, matchID int64, criticals int) error {
	current, err := s.trust.GetScore(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Debug().Int64("user_id", userID).Msg("no trust score row yet, skipping adjustment")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load trust score: %w", err)
	}

	newScore := current.Score - criticals*constants.TrustPenaltyPerCritical
	if newScore < 0 {
		newScore = 0
	}

	change := domain.TrustScoreChange{
		UserID:    userID,
		OldScore:  current.Score,
		NewScore:  newScore,
		OldAction: trustAction(current.Score),
		NewAction: trustAction(newScore),
		Reason:    fmt.Sprintf("%d critical anomaly finding(s) in match %d", criticals, matchID),
	}
	if err := s.trust.LowerScore(ctx, &change); err != nil {
		return fmt.Errorf("failed to lower trust score: %w", err)
	}

	s.logger.Warn().
		Int64("user_id", userID).
		Int("old_score", change.OldScore).
		Int("new_score", change.NewScore).
		Str("new_action", string(change.NewAction)).
		Msg("trust score lowered")
	return nil
}
