package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"tournament-stats/internal/domain"
	"tournament-stats/internal/service"
)

// WebhookServer is the inbound JSON surface: the game-server plugin posts
// telemetry here and the bracket system posts match-completion triggers.
// Authentication sits in front of it and is not this core's concern.
type WebhookServer struct {
	ingest     *service.IngestService
	tournament *service.TournamentService
	logger     zerolog.Logger
}

func NewWebhookServer(ingest *service.IngestService, tournament *service.TournamentService, logger zerolog.Logger) *WebhookServer {
	return &WebhookServer{ingest: ingest, tournament: tournament, logger: logger}
}

func (s *WebhookServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/telemetry", s.handleTelemetry)
	mux.HandleFunc("POST /api/v1/matches/{id}/completed", s.handleMatchCompleted)
	mux.HandleFunc("POST /api/v1/tournaments/{id}/recalculate", s.handleRecalculate)
	mux.HandleFunc("POST /api/v1/reconcile", s.handleReconcile)
}

func (s *WebhookServer) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	var payload domain.TelemetryPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid telemetry payload")
		return
	}

	result, err := s.ingest.Ingest(r.Context(), &payload)
	if err != nil {
		s.logger.Error().Err(err).Msg("telemetry ingestion failed")
		s.writeError(w, http.StatusInternalServerError, "ingestion failed")
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

func (s *WebhookServer) handleMatchCompleted(w http.ResponseWriter, r *http.Request) {
	matchID, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid match id")
		return
	}

	if err := s.tournament.HandleMatchCompleted(r.Context(), matchID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "match not found")
			return
		}
		s.logger.Error().Err(err).Int64("match_id", matchID).Msg("match completion processing failed")
		s.writeError(w, http.StatusInternalServerError, "match completion processing failed")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *WebhookServer) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid tournament id")
		return
	}

	if err := s.tournament.RecalculateTournamentStats(r.Context(), tournamentID); err != nil {
		s.logger.Error().Err(err).Int64("tournament_id", tournamentID).Msg("tournament rebuild failed")
		s.writeError(w, http.StatusInternalServerError, "tournament rebuild failed")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *WebhookServer) handleReconcile(w http.ResponseWriter, r *http.Request) {
	processed, err := s.ingest.ReconcilePending(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("manual reconciliation failed")
		s.writeError(w, http.StatusInternalServerError, "reconciliation failed")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]int{"processed": processed})
}

func pathID(r *http.Request, key string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(r.PathValue(key)), 10, 64)
}

func (s *WebhookServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("failed to write response")
	}
}

func (s *WebhookServer) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
