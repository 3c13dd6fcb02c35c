package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fundbridge/fundbridge-backend/internal/services"
)

type MatchHandler struct {
	matches services.MatchService
}

func NewMatchHandler(matches services.MatchService) *MatchHandler {
	return &MatchHandler{matches: matches}
}

// GET /api/startups/:id/matches?page=&page_size=
func (h *MatchHandler) ListForStartup(c *gin.Context) {
	startupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_startup_id", err)
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	rows, err := h.matches.TopMatches(c.Request.Context(), startupID, page, pageSize)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "matches_fetch_failed", err)
		return
	}
	RespondOK(c, gin.H{"matches": rows, "page": page, "page_size": pageSize})
}

// GET /api/startups/:id/matches/count
func (h *MatchHandler) CountForStartup(c *gin.Context) {
	startupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_startup_id", err)
		return
	}
	check, err := h.matches.CountCheck(c.Request.Context(), startupID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "match_count_failed", err)
		return
	}
	RespondOK(c, check)
}

// POST /api/match-runs
func (h *MatchHandler) EnqueueRun(c *gin.Context) {
	var body struct {
		StartupID *uuid.UUID `json:"startup_id"`
	}
	// Empty body means a full-population run.
	_ = c.ShouldBindJSON(&body)

	run, err := h.matches.EnqueueRun(c.Request.Context(), body.StartupID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "run_enqueue_failed", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"run": run})
}

// GET /api/match-runs/:id
func (h *MatchHandler) GetRun(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_run_id", err)
		return
	}
	run, err := h.matches.GetRun(c.Request.Context(), runID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "run_fetch_failed", err)
		return
	}
	if run == nil {
		RespondError(c, http.StatusNotFound, "run_not_found", nil)
		return
	}
	RespondOK(c, gin.H{"run": run})
}
