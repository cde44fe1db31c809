package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"quiz-saga-service/internal/app"
	"quiz-saga-service/internal/domain"

	"go.uber.org/zap"
)

// Handler exposes the saga and the stats/leaderboard read side over REST.
type Handler struct {
	saga        *app.Saga
	stats       app.StatsStore
	leaderboard *app.LeaderboardReactor
	serviceID   string
	logger      *zap.Logger
}

func NewHandler(saga *app.Saga, stats app.StatsStore, leaderboard *app.LeaderboardReactor, serviceID string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		saga:        saga,
		stats:       stats,
		leaderboard: leaderboard,
		serviceID:   serviceID,
		logger:      logger,
	}
}

// Register wires all routes into mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /quiz/answer", h.submitAnswer)
	// Alias kept for clients still calling the old stats route.
	mux.HandleFunc("POST /quiz/stats/record", h.submitAnswer)
	mux.HandleFunc("GET /stats/user/{id}", h.userStats)
	mux.HandleFunc("GET /stats/user/{id}/wrong-questions", h.wrongQuestions)
	mux.HandleFunc("GET /leaderboard/{quizModeId}", h.leaderboardTop)
	mux.HandleFunc("GET /healthz", h.health)
}

func (h *Handler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	var submission domain.AnswerSubmission
	if err := json.NewDecoder(r.Body).Decode(&submission); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}

	result, err := h.saga.SubmitAnswer(r.Context(), submission)
	if err != nil {
		var validationErr *domain.ValidationError
		var publishErr *domain.PublishError
		switch {
		case errors.As(err, &validationErr):
			writeError(w, http.StatusBadRequest, validationErr.Error(), result.CorrelationID)
		case errors.As(err, &publishErr):
			// Write succeeded but the announcement did not; the client
			// retries and the counter goes up again. Documented behavior.
			writeError(w, http.StatusBadGateway, publishErr.Error(), result.CorrelationID)
		default:
			h.logger.Error("answer submission failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "submission failed", result.CorrelationID)
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) userStats(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || userID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid user id", "")
		return
	}
	stats, err := h.stats.UserStats(r.Context(), userID)
	if err != nil {
		h.logger.Error("loading user stats failed", zap.Int64("userId", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load stats", "")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) wrongQuestions(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || userID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid user id", "")
		return
	}
	ids, err := h.stats.WrongQuestionIDs(r.Context(), userID)
	if err != nil {
		h.logger.Error("loading wrong questions failed", zap.Int64("userId", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load wrong questions", "")
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

func (h *Handler) leaderboardTop(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.leaderboard.Snapshot(r.Context(), r.PathValue("quizModeId"))
	if err != nil {
		h.logger.Error("loading leaderboard failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load leaderboard", "")
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"service":   h.serviceID,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type errorResponse struct {
	Success       bool   `json:"success"`
	Error         string `json:"error"`
	CorrelationID string `json:"correlationId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, message, correlationID string) {
	writeJSON(w, status, errorResponse{Error: message, CorrelationID: correlationID})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
