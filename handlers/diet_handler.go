package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"fitDietAPI/internal/dietprogram"
	"fitDietAPI/middleware"
	"fitDietAPI/services"
)

type DietHandler struct {
	dietService *services.DietService
}

func NewDietHandler(dietService *services.DietService) *DietHandler {
	return &DietHandler{
		dietService: dietService,
	}
}

type startDietRequest struct {
	DietID string `json:"diet_id"`
}

func (h *DietHandler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"diets": h.dietService.GetCatalog()})
}

// POST /api/diet/start
func (h *DietHandler) StartDiet(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req startDietRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.DietID = strings.TrimSpace(req.DietID)
	if req.DietID == "" {
		respondWithError(w, http.StatusBadRequest, "diet_id is required")
		return
	}

	resp, err := h.dietService.StartDiet(ctx, clerkID, req.DietID)
	if err != nil {
		respondWithAppError(w, "StartDiet", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, resp)
}

func (h *DietHandler) GetActiveProgram(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	p, err := h.dietService.GetActiveProgram(ctx, clerkID)
	if err != nil {
		respondWithAppError(w, "GetActiveProgram", err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]*dietprogram.Program{"program": p})
}

func (h *DietHandler) GetMyDiets(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	programs, err := h.dietService.GetPrograms(ctx, clerkID)
	if err != nil {
		respondWithAppError(w, "GetMyDiets", err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"programs": programs})
}

// GET /api/diet/program/{program_id}
func (h *DietHandler) GetProgram(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	p, err := h.dietService.GetProgram(ctx, clerkID, mux.Vars(r)["program_id"])
	if err != nil {
		respondWithAppError(w, "GetProgram", err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]*dietprogram.Program{"program": p})
}

// POST /api/diet/program/{program_id}/day/{n}/complete
func (h *DietHandler) CompleteDay(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	vars := mux.Vars(r)
	n, err := strconv.Atoi(vars["n"])
	if err != nil {
		respondWithAppError(w, "CompleteDay", dietprogram.ErrInvalidDay)
		return
	}

	resp, err := h.dietService.CompleteDay(ctx, clerkID, vars["program_id"], n)
	if err != nil {
		respondWithAppError(w, "CompleteDay", err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}
