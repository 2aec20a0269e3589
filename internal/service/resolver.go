package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"tournament-stats/internal/constants"
	"tournament-stats/internal/domain"
	"tournament-stats/internal/repository"
)

// ResolverService maps telemetry payloads to canonical matches and
// external platform ids to internal users.
type ResolverService struct {
	matches  *repository.MatchRepository
	identity *repository.IdentityRepository
	logger   zerolog.Logger
	now      func() time.Time
}

func NewResolverService(matches *repository.MatchRepository, identity *repository.IdentityRepository, logger zerolog.Logger) *ResolverService {
	return &ResolverService{matches: matches, identity: identity, logger: logger, now: time.Now}
}

// ResolveMatch finds the canonical match a payload belongs to. The explicit
// match id wins; without one it falls back to the exact team-name pair
// among matches created within the resolve window, most recent first. The
// false return is an explicit "unresolved", never a best guess; the
// caller queues the payload instead of failing.
func (s *ResolverService) ResolveMatch(ctx context.Context, payload *domain.TelemetryPayload) (*domain.CanonicalMatch, bool, error) {
	if payload.MatchID != "" {
		id, err := strconv.ParseInt(string(payload.MatchID), 10, 64)
		if err != nil {
			s.logger.Warn().Str("match_id", string(payload.MatchID)).Msg("payload carries a non-numeric match id, falling back to team names")
		} else {
			match, err := s.matches.GetByID(ctx, id)
			if errors.Is(err, domain.ErrNotFound) {
				s.logger.Warn().Int64("match_id", id).Msg("payload references an unknown match id")
				return nil, false, nil
			}
			if err != nil {
				return nil, false, err
			}
			return match, true, nil
		}
	}

	cutoff := s.now().Add(-constants.ResolveWindow)
	match, err := s.matches.FindByTeamNames(ctx, payload.Team1.Name, payload.Team2.Name, cutoff)
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Info().
			Str("team1", payload.Team1.Name).
			Str("team2", payload.Team2.Name).
			Msg("no canonical match for team-name pair within window")
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	s.logger.Info().
		Int64("match_id", match.ID).
		Str("team1", payload.Team1.Name).
		Str("team2", payload.Team2.Name).
		Msg("payload reconciled by team-name pair")
	return match, true, nil
}

// ResolveUser maps an external platform id to an internal user id. An
// unmapped player is the caller's cue to skip, never to fail the batch.
func (s *ResolverService) ResolveUser(ctx context.Context, steamID string) (int64, error) {
	return s.identity.UserIDBySteamID(ctx, steamID)
}
