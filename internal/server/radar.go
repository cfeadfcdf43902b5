package server

import (
	"errors"
	"net/http"
	"strconv"

	"cosplayradar/internal/domain"
	"cosplayradar/internal/lifecycle"
	"cosplayradar/internal/service"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// RadarServer is the JSON surface over the trending and lifecycle services.
type RadarServer struct {
	trendingSvc *service.TrendingService
	lifecycle   *lifecycle.Manager
	logger      zerolog.Logger
}

func NewRadarServer(trendingSvc *service.TrendingService, lc *lifecycle.Manager, logger zerolog.Logger) *RadarServer {
	return &RadarServer{trendingSvc: trendingSvc, lifecycle: lc, logger: logger}
}

// Routes registers every handler on the mux.
func (s *RadarServer) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/characters", s.handleCharacters)
	mux.HandleFunc("GET /api/v1/characters/{id}/score", s.handleCharacterScore)
	mux.HandleFunc("GET /api/v1/characters/{id}/history", s.handleScoreHistory)
	mux.HandleFunc("POST /api/v1/lifecycle/runs", s.handleLifecycleRun)
	mux.HandleFunc("GET /api/v1/lifecycle/runs/latest", s.handleLatestRun)
	mux.HandleFunc("GET /api/v1/lifecycle/stats", s.handleLifecycleStats)
	mux.HandleFunc("GET /api/v1/lifecycle/series/{id}", s.handleSeriesState)
	mux.HandleFunc("POST /api/v1/lifecycle/series/{id}/deletion-approval", s.handleDeletionApproval)
}

func (s *RadarServer) handleCharacters(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	merge := q.Get("merge") == "true"

	query := domain.CharacterQuery{
		Category: q.Get("category"),
		Gender:   domain.Gender(q.Get("gender")),
		Page:     page,
		PerPage:  perPage,
	}

	scored, err := s.trendingSvc.RefreshCategory(r.Context(), query, merge)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"characters": scored})
}

func (s *RadarServer) handleCharacterScore(w http.ResponseWriter, r *http.Request) {
	score, err := s.trendingSvc.CharacterScore(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, score)
}

func (s *RadarServer) handleScoreHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	history, err := s.trendingSvc.ScoreHistory(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

func (s *RadarServer) handleLifecycleRun(w http.ResponseWriter, r *http.Request) {
	report, err := s.lifecycle.Run(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *RadarServer) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	report := s.lifecycle.LastRun()
	if report == nil {
		s.writeError(w, r, domain.ErrNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *RadarServer) handleLifecycleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.lifecycle.Statistics(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"stages": stats})
}

func (s *RadarServer) handleSeriesState(w http.ResponseWriter, r *http.Request) {
	state, err := s.lifecycle.State(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

func (s *RadarServer) handleDeletionApproval(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ApprovedBy string `json:"approved_by"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, r, &domain.ValidationError{Field: "body", Reason: "invalid json"})
		return
	}

	if err := s.lifecycle.ApproveDeletion(r.Context(), r.PathValue("id"), body.ApprovedBy); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *RadarServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *RadarServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError

	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
