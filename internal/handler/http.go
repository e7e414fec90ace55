package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/floor-guesser/internal/domain"
	"github.com/floor-guesser/internal/service"
	"github.com/floor-guesser/internal/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler provides HTTP handlers for the game API
type Handler struct {
	service    *service.GameService
	hub        *websocket.Hub
	uploadsDir string
	pingers    []Pinger
	logger     *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(service *service.GameService, hub *websocket.Hub, uploadsDir string, logger *slog.Logger) *Handler {
	return &Handler{
		service:    service,
		hub:        hub,
		uploadsDir: uploadsDir,
		logger:     logger,
	}
}

// AddReadinessCheck makes /ready fail while p is unreachable
func (h *Handler) AddReadinessCheck(p Pinger) {
	h.pingers = append(h.pingers, p)
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// StartGameRequest starts a game; without a user ID the game is a guest game
type StartGameRequest struct {
	UserID *int64 `json:"user_id,omitempty"`
}

// HypotheticalRankResponse is the rank a guest score would have earned
type HypotheticalRankResponse struct {
	Score       int                       `json:"score"`
	Rank        int                       `json:"rank"`
	Leaderboard []domain.LeaderboardEntry `json:"leaderboard"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)
	r.Get("/ws", h.HandleWebSocket)

	if h.uploadsDir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(h.uploadsDir))))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/floors", h.ListFloors)
		r.Get("/floors/{floorID}", h.GetFloor)
		r.Get("/locations/random", h.RandomLocation)

		r.Post("/guess", h.Guess)
		r.Post("/quickplay/guess", h.QuickPlayGuess)

		r.Route("/games", func(r chi.Router) {
			r.Post("/", h.StartGame)
			r.Get("/{sessionID}", h.GetGame)
			r.Post("/{sessionID}/guess", h.PlayRound)
		})
		r.Post("/game-results", h.RecordGameResult)

		r.Route("/leaderboard", func(r chi.Router) {
			r.Get("/", h.GetLeaderboard)
			r.Get("/hypothetical", h.GetHypotheticalRank)
			r.Get("/stats", h.GetStats)
		})

		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// writeServiceError maps a service error to a status; unexpected errors are
// logged and hidden from the client
func (h *Handler) writeServiceError(w http.ResponseWriter, action string, err error) {
	switch {
	case domain.IsNotFoundError(err):
		h.writeError(w, http.StatusNotFound, err)
	case domain.IsInvalidInputError(err):
		h.writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, domain.ErrGameFinished):
		h.writeError(w, http.StatusConflict, err)
	default:
		h.logger.Error("failed to "+action, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
	}
}

// decodeBody decodes a JSON body. An empty body leaves v untouched when
// allowEmpty is set.
func decodeBody(r *http.Request, v interface{}, allowEmpty bool) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) && allowEmpty {
		return nil
	}
	if err != nil {
		return domain.ErrInvalidRequest
	}
	return nil
}

func int64Param(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidRequest
	}
	return id, nil
}

func intQuery(r *http.Request, name string) (int, bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, domain.ErrInvalidRequest
	}
	return v, true, nil
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]interface{}{
		"total_connections": h.hub.GetTotalConnections(),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck reports ready once every backing store answers
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	for _, p := range h.pingers {
		if err := p.Ping(r.Context()); err != nil {
			h.logger.Warn("readiness check failed", "error", err)
			h.writeError(w, http.StatusServiceUnavailable, errors.New("not ready"))
			return
		}
	}
	h.writeSuccess(w, map[string]string{"status": "ready"})
}

// ListFloors returns all floors
func (h *Handler) ListFloors(w http.ResponseWriter, r *http.Request) {
	floors, err := h.service.ListFloors(r.Context())
	if err != nil {
		h.writeServiceError(w, "list floors", err)
		return
	}
	h.writeSuccess(w, floors)
}

// GetFloor returns a floor by ID
func (h *Handler) GetFloor(w http.ResponseWriter, r *http.Request) {
	floorID, err := int64Param(r, "floorID")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	floor, err := h.service.GetFloor(r.Context(), floorID)
	if err != nil {
		h.writeServiceError(w, "get floor", err)
		return
	}
	h.writeSuccess(w, floor)
}

// RandomLocation returns a location to guess without its coordinates
func (h *Handler) RandomLocation(w http.ResponseWriter, r *http.Request) {
	var floorID *int64
	if raw := r.URL.Query().Get("floor_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
			return
		}
		floorID = &id
	}

	loc, err := h.service.RandomLocation(r.Context(), floorID)
	if err != nil {
		h.writeServiceError(w, "pick random location", err)
		return
	}
	h.writeSuccess(w, loc)
}

// Guess scores a single guess
func (h *Handler) Guess(w http.ResponseWriter, r *http.Request) {
	var guess domain.Guess
	if err := decodeBody(r, &guess, false); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.service.ScoreGuess(r.Context(), guess)
	if err != nil {
		h.writeServiceError(w, "score guess", err)
		return
	}
	h.writeSuccess(w, result)
}

// QuickPlayGuess scores a guess on the linear quick-play scale
func (h *Handler) QuickPlayGuess(w http.ResponseWriter, r *http.Request) {
	var guess domain.Guess
	if err := decodeBody(r, &guess, false); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.service.QuickPlayGuess(r.Context(), guess)
	if err != nil {
		h.writeServiceError(w, "score quick-play guess", err)
		return
	}
	h.writeSuccess(w, result)
}

// StartGame creates a game session
func (h *Handler) StartGame(w http.ResponseWriter, r *http.Request) {
	var req StartGameRequest
	if err := decodeBody(r, &req, true); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	session, err := h.service.StartGame(r.Context(), req.UserID)
	if err != nil {
		h.writeServiceError(w, "start game", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    session.Snapshot(),
	})
}

// GetGame returns the state of a game session
func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.GetGame(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeServiceError(w, "get game", err)
		return
	}
	h.writeSuccess(w, session.Snapshot())
}

// PlayRound scores the current round of a game session
func (h *Handler) PlayRound(w http.ResponseWriter, r *http.Request) {
	var guess domain.Guess
	if err := decodeBody(r, &guess, false); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.service.PlayRound(r.Context(), chi.URLParam(r, "sessionID"), guess)
	if err != nil {
		h.writeServiceError(w, "play round", err)
		return
	}
	h.writeSuccess(w, result)
}

// RecordGameResult records a game finished on the client
func (h *Handler) RecordGameResult(w http.ResponseWriter, r *http.Request) {
	var sub domain.GameResultSubmission
	if err := decodeBody(r, &sub, false); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.service.RecordGameCompletion(r.Context(), sub.UserID, sub.TotalScore, sub.RoundsPlayed)
	if err != nil {
		h.writeServiceError(w, "record game result", err)
		return
	}
	h.writeSuccess(w, result)
}

// GetLeaderboard returns the top players
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, _, err := intQuery(r, "limit")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	entries, err := h.service.Leaderboard(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, "get leaderboard", err)
		return
	}
	h.writeSuccess(w, entries)
}

// GetHypotheticalRank returns where a guest score would place
func (h *Handler) GetHypotheticalRank(w http.ResponseWriter, r *http.Request) {
	score, ok, err := intQuery(r, "score")
	if err != nil || !ok {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}
	limit, _, err := intQuery(r, "limit")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	rank, entries, err := h.service.HypotheticalRank(r.Context(), score, limit)
	if err != nil {
		h.writeServiceError(w, "compute hypothetical rank", err)
		return
	}

	h.writeSuccess(w, HypotheticalRankResponse{
		Score:       score,
		Rank:        rank,
		Leaderboard: entries,
	})
}

// GetStats returns leaderboard statistics
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetStats(r.Context())
	if err != nil {
		h.writeServiceError(w, "get stats", err)
		return
	}
	h.writeSuccess(w, stats)
}
