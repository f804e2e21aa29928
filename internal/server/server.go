// Package server exposes the JSON trigger surface: sync control per
// user, match and player queries, and on-demand analysis.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/meinjens/cstatsentry/internal/domain"
	"github.com/meinjens/cstatsentry/internal/middleware"
	"github.com/meinjens/cstatsentry/internal/repository"
	"github.com/meinjens/cstatsentry/internal/service"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type Server struct {
	syncSvc     *service.SyncService
	analysisSvc *service.AnalysisService
	profileSvc  *service.ProfileService
	users       *repository.UserRepository
	matches     *repository.MatchRepository
	players     *repository.PlayerRepository
	db          *sqlx.DB
	logger      zerolog.Logger
}

func NewServer(
	syncSvc *service.SyncService,
	analysisSvc *service.AnalysisService,
	profileSvc *service.ProfileService,
	users *repository.UserRepository,
	matches *repository.MatchRepository,
	players *repository.PlayerRepository,
	db *sqlx.DB,
	logger zerolog.Logger,
) *Server {
	return &Server{
		syncSvc:     syncSvc,
		analysisSvc: analysisSvc,
		profileSvc:  profileSvc,
		users:       users,
		matches:     matches,
		players:     players,
		db:          db,
		logger:      logger,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/users/{userID}/sync", s.triggerSync)
	mux.HandleFunc("DELETE /api/v1/users/{userID}/sync", s.cancelSync)
	mux.HandleFunc("GET /api/v1/users/{userID}/sync/status", s.syncStatus)
	mux.HandleFunc("GET /api/v1/users/{userID}/matches", s.listMatches)
	mux.HandleFunc("GET /api/v1/matches/{matchID}", s.getMatch)
	mux.HandleFunc("GET /api/v1/players/{steamID}", s.getPlayer)
	mux.HandleFunc("POST /api/v1/players/{steamID}/analyze", s.analyzePlayer)
	mux.HandleFunc("GET /api/v1/players/{steamID}/analyses", s.listAnalyses)
	mux.HandleFunc("GET /healthz", s.healthz)
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

func (s *Server) triggerSync(w http.ResponseWriter, r *http.Request) {
	run, err := s.syncSvc.SyncUser(r.Context(), r.PathValue("userID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

func (s *Server) cancelSync(w http.ResponseWriter, r *http.Request) {
	if !s.syncSvc.CancelUser(r.PathValue("userID")) {
		s.writeJSON(w, http.StatusNotFound, errorBody("no active sync run"))
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "canceling"})
}

func (s *Server) syncStatus(w http.ResponseWriter, r *http.Request) {
	run, err := s.syncSvc.GetSyncStatus(r.Context(), r.PathValue("userID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

func (s *Server) listMatches(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")
	limit := queryInt(r, "limit", 50)

	matches, err := s.matches.ListForUser(r.Context(), userID, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	total, err := s.matches.CountForUser(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"matches": matches,
		"total":   total,
	})
}

func (s *Server) getMatch(w http.ResponseWriter, r *http.Request) {
	matchID := r.PathValue("matchID")

	match, err := s.matches.Get(r.Context(), matchID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	players, err := s.matches.GetPlayers(r.Context(), matchID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	provenance, err := s.matches.GetProvenance(r.Context(), matchID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"match":      match,
		"players":    players,
		"provenance": provenance,
	})
}

func (s *Server) getPlayer(w http.ResponseWriter, r *http.Request) {
	steamID := r.PathValue("steamID")

	player, err := s.players.Get(r.Context(), steamID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := map[string]any{"player": player}
	if ban, err := s.players.GetBan(r.Context(), steamID); err == nil {
		resp["bans"] = ban
	} else if !errors.Is(err, repository.ErrNotFound) {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) analyzePlayer(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.analysisSvc.AnalyzePlayer(r.Context(), r.PathValue("steamID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) listAnalyses(w http.ResponseWriter, r *http.Request) {
	analyses, err := s.analysisSvc.GetAnalysisHistory(r.Context(), r.PathValue("steamID"), queryInt(r, "limit", 0))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if analyses == nil {
		analyses = []domain.PlayerAnalysis{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"analyses": analyses})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, errorBody("database unavailable"))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, service.ErrRunActive):
		s.writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	default:
		s.logger.Error().
			Err(err).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		s.writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
