package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"fitDietAPI/internal/localday"
	"fitDietAPI/middleware"
	"fitDietAPI/services"
)

// TimezoneHeader carries the client's IANA zone. Calendar days for streaks and
// daily tasks are taken in that zone; UTC when absent.
const TimezoneHeader = "X-Timezone"

type GamificationHandler struct {
	gamificationService *services.GamificationService
	leaderboardService  *services.LeaderboardService
}

func NewGamificationHandler(gamificationService *services.GamificationService, leaderboardService *services.LeaderboardService) *GamificationHandler {
	return &GamificationHandler{
		gamificationService: gamificationService,
		leaderboardService:  leaderboardService,
	}
}

func (h *GamificationHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	status, err := h.gamificationService.GetStatus(ctx, clerkID)
	if err != nil {
		respondWithAppError(w, "GetStatus", err)
		return
	}
	respondWithJSON(w, http.StatusOK, status)
}

func (h *GamificationHandler) DailyLogin(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}
	loc, err := localday.Location(r.Header.Get(TimezoneHeader))
	if err != nil {
		respondWithAppError(w, "DailyLogin", err)
		return
	}

	resp, err := h.gamificationService.DailyLogin(ctx, clerkID, loc)
	if err != nil {
		respondWithAppError(w, "DailyLogin", err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *GamificationHandler) GetAchievements(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	resp, err := h.gamificationService.GetAchievements(ctx, clerkID)
	if err != nil {
		respondWithAppError(w, "GetAchievements", err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// POST /api/gamification/goals/{kind}/complete
func (h *GamificationHandler) CompleteGoal(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}
	loc, err := localday.Location(r.Header.Get(TimezoneHeader))
	if err != nil {
		respondWithAppError(w, "CompleteGoal", err)
		return
	}

	resp, err := h.gamificationService.CompleteGoal(ctx, clerkID, mux.Vars(r)["kind"], loc)
	if err != nil {
		respondWithAppError(w, "CompleteGoal", err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *GamificationHandler) GetDailyTasks(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}
	loc, err := localday.Location(r.Header.Get(TimezoneHeader))
	if err != nil {
		respondWithAppError(w, "GetDailyTasks", err)
		return
	}

	resp, err := h.gamificationService.GetDailyTasks(ctx, clerkID, loc)
	if err != nil {
		respondWithAppError(w, "GetDailyTasks", err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *GamificationHandler) LogPhoto(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}
	loc, err := localday.Location(r.Header.Get(TimezoneHeader))
	if err != nil {
		respondWithAppError(w, "LogPhoto", err)
		return
	}

	resp, err := h.gamificationService.LogPhoto(ctx, clerkID, loc)
	if err != nil {
		respondWithAppError(w, "LogPhoto", err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *GamificationHandler) ReportMetrics(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}
	loc, err := localday.Location(r.Header.Get(TimezoneHeader))
	if err != nil {
		respondWithAppError(w, "ReportMetrics", err)
		return
	}

	var req services.MetricsInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	metrics, err := h.gamificationService.ReportMetrics(ctx, clerkID, loc, req)
	if err != nil {
		respondWithAppError(w, "ReportMetrics", err)
		return
	}
	respondWithJSON(w, http.StatusOK, metrics)
}

// GET /api/gamification/history?limit=
func (h *GamificationHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	events, err := h.gamificationService.GetHistory(ctx, clerkID, queryInt(r, "limit"))
	if err != nil {
		respondWithAppError(w, "GetHistory", err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

// GET /api/gamification/leaderboard?league=&limit=
func (h *GamificationHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	board, err := h.leaderboardService.GetLeaderboard(ctx, clerkID, r.URL.Query().Get("league"), queryInt(r, "limit"))
	if err != nil {
		respondWithAppError(w, "GetLeaderboard", err)
		return
	}
	respondWithJSON(w, http.StatusOK, board)
}
