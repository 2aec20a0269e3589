package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alitto/pond/v2"
	"github.com/rs/zerolog"

	"tournament-stats/internal/config"
	"tournament-stats/internal/domain"
	"tournament-stats/internal/metrics"
	"tournament-stats/internal/repository"
)

// IngestService is the front door for telemetry payloads: resolve,
// persist atomically, then fan out the per-user post-processing.
type IngestService struct {
	resolver *ResolverService
	stats    *repository.MatchStatsRepository
	pending  *repository.PendingRepository
	lifetime *LifetimeService
	anomaly  *AnomalyService
	pool     pond.Pool
	logger   zerolog.Logger
}

func NewIngestService(
	cfg *config.Config,
	resolver *ResolverService,
	stats *repository.MatchStatsRepository,
	pending *repository.PendingRepository,
	lifetime *LifetimeService,
	anomaly *AnomalyService,
	logger zerolog.Logger,
) *IngestService {
	return &IngestService{
		resolver: resolver,
		stats:    stats,
		pending:  pending,
		lifetime: lifetime,
		anomaly:  anomaly,
		pool:     pond.NewPool(cfg.IngestWorkers),
		logger:   logger,
	}
}

// Ingest processes one telemetry payload. An unresolved payload is queued
// pending and acknowledged as a success: the plugin delivers at least
// once and must not retry what we already hold. Only a persistence
// failure surfaces as an error, and retrying it is safe because every
// write is an overwrite.
func (s *IngestService) Ingest(ctx context.Context, payload *domain.TelemetryPayload) (*domain.IngestResult, error) {
	match, resolved, err := s.resolver.ResolveMatch(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve match: %w", err)
	}
	if !resolved {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to snapshot payload: %w", err)
		}
		if _, err := s.pending.Enqueue(ctx, string(raw)); err != nil {
			return nil, err
		}
		return &domain.IngestResult{Status: domain.IngestPending}, nil
	}

	touched, err := s.persist(ctx, match, payload)
	if err != nil {
		return nil, err
	}

	s.fanOut(match.ID, touched)

	return &domain.IngestResult{
		Status:         domain.IngestProcessed,
		MatchID:        match.ID,
		PlayersUpdated: len(touched),
	}, nil
}

// persist builds the match row and every resolvable player row and writes
// them in one transaction. Returns the touched user ids.
func (s *IngestService) persist(ctx context.Context, match *domain.CanonicalMatch, payload *domain.TelemetryPayload) ([]int64, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot payload: %w", err)
	}

	matchStats := domain.MatchStats{
		MatchID:      match.ID,
		MapName:      payload.MapName,
		RoundsPlayed: payload.Rounds,
		Team1Name:    payload.Team1.Name,
		Team2Name:    payload.Team2.Name,
		Team1Score:   payload.Team1.Score,
		Team2Score:   payload.Team2.Score,
		DemoRef:      payload.DemoRef,
		RawPayload:   string(raw),
	}

	var players []domain.PlayerMatchStats
	var touched []int64
	for _, entry := range payload.Players() {
		userID, err := s.resolver.ResolveUser(ctx, entry.Player.SteamID)
		if errors.Is(err, domain.ErrUnknownPlayer) {
			s.logger.Warn().
				Str("steam_id", entry.Player.SteamID).
				Str("name", entry.Player.Name).
				Int64("match_id", match.ID).
				Msg("no identity mapping for player, skipping")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to resolve player %s: %w", entry.Player.SteamID, err)
		}

		p := playerRowFromCounters(match.ID, userID, payload.Rounds, entry)
		metrics.ComputeMatchDerived(&p)
		players = append(players, p)
		touched = append(touched, userID)
	}

	if err := s.stats.PersistMatch(ctx, &matchStats, players); err != nil {
		return nil, fmt.Errorf("failed to persist match %d: %w", match.ID, err)
	}

	s.logger.Info().
		Int64("match_id", match.ID).
		Str("map", payload.MapName).
		Int("players", len(players)).
		Msg("telemetry persisted")
	return touched, nil
}

func playerRowFromCounters(matchID, userID int64, rounds int, entry domain.PayloadRosterEntry) domain.PlayerMatchStats {
	c := entry.Player.Stats
	return domain.PlayerMatchStats{
		MatchID: matchID,
		UserID:  userID,

		Kills:          c.Kills,
		Deaths:         c.Deaths,
		Assists:        c.Assists,
		Headshots:      c.Headshots,
		Damage:         c.Damage,
		UtilityDamage:  c.UtilityDamage,
		EnemiesFlashed: c.EnemiesFlashed,
		FlashAssists:   c.FlashAssists,
		ShotsFired:     c.ShotsFired,
		ShotsOnTarget:  c.ShotsOnTarget,
		EntryAttempts:  c.EntryAttempts,
		EntryWins:      c.EntryWins,

		Clutch1v1Attempts: c.Clutch1v1Attempts,
		Clutch1v1Wins:     c.Clutch1v1Wins,
		Clutch1v2Attempts: c.Clutch1v2Attempts,
		Clutch1v2Wins:     c.Clutch1v2Wins,
		Clutch1v3Attempts: c.Clutch1v3Attempts,
		Clutch1v3Wins:     c.Clutch1v3Wins,
		Clutch1v4Attempts: c.Clutch1v4Attempts,
		Clutch1v4Wins:     c.Clutch1v4Wins,

		MultiKill2K: c.MultiKill2K,
		MultiKill3K: c.MultiKill3K,
		MultiKill4K: c.MultiKill4K,
		MultiKill5K: c.MultiKill5K,

		TradeKills:   c.TradeKills,
		KASTRounds:   c.KASTRounds,
		RoundsPlayed: rounds,
		Won:          entry.Won,
		Drawn:        entry.Drawn,
	}
}

// fanOut runs the lifetime recompute and the anomaly pass for every
// touched user, concurrently on the bounded worker pool. Failures are
// logged and isolated per user: the raw stats are already committed and
// stay committed, and one user's failure never skips another.
func (s *IngestService) fanOut(matchID int64, touched []int64) {
	group := s.pool.NewGroup()
	for _, userID := range touched {
		group.Submit(func() {
			ctx := context.Background()
			if err := s.lifetime.Recompute(ctx, userID); err != nil {
				s.logger.Error().Err(err).
					Int64("user_id", userID).
					Int64("match_id", matchID).
					Msg("lifetime aggregation failed")
			}
			if _, err := s.anomaly.Analyze(ctx, userID, matchID); err != nil {
				s.logger.Error().Err(err).
					Int64("user_id", userID).
					Int64("match_id", matchID).
					Msg("anomaly detection failed")
			}
		})
	}
	group.Wait()
}

// Close drains the worker pool. Called on shutdown.
func (s *IngestService) Close() {
	s.pool.StopAndWait()
}

// ReconcilePending retries resolution for every queued payload and
// ingests the ones that now match. Runs on a schedule and on demand.
func (s *IngestService) ReconcilePending(ctx context.Context) (int, error) {
	queued, err := s.pending.ListUnresolved(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending payloads: %w", err)
	}

	processed := 0
	for _, entry := range queued {
		var payload domain.TelemetryPayload
		if err := json.Unmarshal([]byte(entry.RawPayload), &payload); err != nil {
			s.logger.Error().Err(err).Str("pending_id", entry.ID).Msg("pending payload is not valid JSON, leaving in queue")
			continue
		}

		match, resolved, err := s.resolver.ResolveMatch(ctx, &payload)
		if err != nil {
			s.logger.Error().Err(err).Str("pending_id", entry.ID).Msg("reconciliation lookup failed")
			continue
		}
		if !resolved {
			continue
		}

		touched, err := s.persist(ctx, match, &payload)
		if err != nil {
			s.logger.Error().Err(err).Str("pending_id", entry.ID).Msg("reconciled payload failed to persist")
			continue
		}
		if err := s.pending.MarkResolved(ctx, entry.ID); err != nil {
			s.logger.Error().Err(err).Str("pending_id", entry.ID).Msg("failed to mark pending payload resolved")
			continue
		}
		s.fanOut(match.ID, touched)
		processed++
	}

	if processed > 0 {
		s.logger.Info().Int("processed", processed).Int("remaining", len(queued)-processed).Msg("pending payloads reconciled")
	}
	return processed, nil
}
