// Package api serves the conflict detector and repository tracker over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/BalansCollective/weavemesh-git/internal/conflict"
	"github.com/BalansCollective/weavemesh-git/internal/git"
	"github.com/BalansCollective/weavemesh-git/internal/models"
	"github.com/BalansCollective/weavemesh-git/internal/tracker"
)

// HistoryLister reads persisted resolution records.
type HistoryLister interface {
	ListResolutionRecords(ctx context.Context, limit int) ([]models.ResolutionRecord, error)
}

// Server provides the REST API handlers.
type Server struct {
	detector *conflict.Detector
	tracker  *tracker.Tracker
	history  HistoryLister
	logger   *slog.Logger
}

// NewServer creates a new API server. history may be nil, in which case the
// history endpoint serves the detector's in-memory records.
func NewServer(d *conflict.Detector, t *tracker.Tracker, history HistoryLister, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{detector: d, tracker: t, history: history, logger: logger}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/repositories", s.listRepositories)
	mux.HandleFunc("POST /api/v1/repositories", s.trackRepository)
	mux.HandleFunc("POST /api/v1/repositories/rescan", s.rescanAll)
	mux.HandleFunc("GET /api/v1/repositories/{id}", s.getRepository)
	mux.HandleFunc("DELETE /api/v1/repositories/{id}", s.removeRepository)
	mux.HandleFunc("POST /api/v1/repositories/{id}/rescan", s.rescanRepository)
	mux.HandleFunc("GET /api/v1/repositories/{id}/events", s.repositoryEvents)
	mux.HandleFunc("GET /api/v1/repositories/{id}/health", s.repositoryHealth)

	mux.HandleFunc("POST /api/v1/conflicts/detect", s.detectConflicts)
	mux.HandleFunc("GET /api/v1/conflicts/statistics", s.conflictStatistics)
	mux.HandleFunc("GET /api/v1/conflicts/{id}", s.getConflict)
	mux.HandleFunc("POST /api/v1/conflicts/{id}/status", s.updateConflictStatus)
	mux.HandleFunc("POST /api/v1/conflicts/{id}/resolutions", s.recordResolution)

	mux.HandleFunc("GET /api/v1/patterns", s.listPatterns)
	mux.HandleFunc("POST /api/v1/patterns/learn", s.learnPatterns)
	mux.HandleFunc("GET /api/v1/history", s.listHistory)

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, tracker.ErrNotFound), errors.Is(err, conflict.ErrConflictNotFound):
		return http.StatusNotFound
	case errors.Is(err, tracker.ErrTrackerFull), errors.Is(err, conflict.ErrTerminalStatus),
		errors.Is(err, conflict.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, conflict.ErrInvalidOutcome):
		return http.StatusBadRequest
	case errors.Is(err, git.ErrRepositoryAccess):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

// --- Repositories ---

func (s *Server) listRepositories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.GetAll())
}

type trackRequest struct {
	Path string `json:"path"`
}

func (s *Server) trackRepository(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	id, err := s.tracker.GetOrCreateRepositoryID(r.Context(), req.Path)
	if err != nil && id == "" {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	if err != nil {
		s.logger.Warn("repository tracked but not persisted", "id", id, "error", err)
	}
	repo, err := s.tracker.Get(id)
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, repo)
}

func (s *Server) getRepository(w http.ResponseWriter, r *http.Request) {
	repo, err := s.tracker.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, repo)
}

func (s *Server) removeRepository(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.Remove(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) rescanRepository(w http.ResponseWriter, r *http.Request) {
	_, events, err := s.tracker.Rescan(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	if events == nil {
		events = []models.StateChangeEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) rescanAll(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.RescanAll(r.Context()))
}

func (s *Server) repositoryEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.tracker.Get(id); err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	events := s.tracker.Events(id)
	if events == nil {
		events = []models.StateChangeEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) repositoryHealth(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if r.URL.Query().Get("cached") == "true" {
		if h, ok := s.tracker.GetRepositoryHealth(id); ok {
			writeJSON(w, http.StatusOK, h)
			return
		}
	}
	h, err := s.tracker.CheckHealth(r.Context(), id)
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h)
}

// --- Conflicts ---

type detectRequest struct {
	Path    string `json:"path"`
	Refresh bool   `json:"refresh"`
}

func (s *Server) detectConflicts(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	if req.Refresh {
		s.detector.Invalidate(req.Path)
	}

	conflicts, err := s.detector.DetectConflicts(r.Context(), req.Path)
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, conflicts)
}

func (s *Server) conflictStatistics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.detector.Statistics())
}

type conflictDetail struct {
	models.Conflict
	MatchingPatterns []models.ConflictPattern `json:"matching_patterns"`
}

func (s *Server) getConflict(w http.ResponseWriter, r *http.Request) {
	c, err := s.detector.Conflict(r.PathValue("id"))
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	matching := s.detector.MatchingPatterns(c)
	if matching == nil {
		matching = []models.ConflictPattern{}
	}
	writeJSON(w, http.StatusOK, conflictDetail{Conflict: c, MatchingPatterns: matching})
}

type statusRequest struct {
	Status models.ResolutionStatus `json:"status"`
}

func (s *Server) updateConflictStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req statusRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var err error
	switch req.Status {
	case models.StatusInProgress:
		err = s.detector.MarkInProgress(id)
	case models.StatusDeferred:
		err = s.detector.Defer(id)
	case models.StatusEscalated:
		err = s.detector.Escalate(id)
	default:
		writeError(w, http.StatusBadRequest, "status must be in_progress, deferred or escalated")
		return
	}
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}

	c, err := s.detector.Conflict(id)
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type resolutionRequest struct {
	ResolutionID   string                   `json:"resolution_id"`
	Outcome        models.ResolutionOutcome `json:"outcome"`
	Minutes        int                      `json:"resolution_time_minutes"`
	Participants   []string                 `json:"participants"`
	LessonsLearned []string                 `json:"lessons_learned"`
}

func (s *Server) recordResolution(w http.ResponseWriter, r *http.Request) {
	c, err := s.detector.Conflict(r.PathValue("id"))
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}

	var req resolutionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var res *models.Resolution
	for i := range c.Resolutions {
		if c.Resolutions[i].ID == req.ResolutionID {
			res = &c.Resolutions[i]
		}
	}
	if res == nil {
		writeError(w, http.StatusBadRequest, "resolution_id is not a suggested resolution for this conflict")
		return
	}
	if req.Outcome.SideEffects == nil {
		req.Outcome.SideEffects = []string{}
	}
	if req.Outcome.FollowUpActions == nil {
		req.Outcome.FollowUpActions = []string{}
	}

	rec, err := s.detector.RecordResolution(r.Context(), c, *res, req.Outcome, req.Minutes, req.Participants, req.LessonsLearned)
	if err != nil && rec == nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	if err != nil {
		s.logger.Warn("resolution recorded but not persisted", "conflict", c.ID, "error", err)
	}
	writeJSON(w, http.StatusCreated, rec)
}

// --- Patterns and history ---

func (s *Server) listPatterns(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.detector.Patterns())
}

func (s *Server) learnPatterns(w http.ResponseWriter, r *http.Request) {
	learned, err := s.detector.LearnPatterns(r.Context())
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, learned)
}

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	if s.history == nil {
		records := s.detector.History()
		if limit > 0 && len(records) > limit {
			records = records[len(records)-limit:]
		}
		writeJSON(w, http.StatusOK, records)
		return
	}

	records, err := s.history.ListResolutionRecords(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, records)
}
