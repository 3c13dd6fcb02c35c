package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fundbridge/fundbridge-backend/internal/services"
)

type LearningHandler struct {
	learning services.LearningService
}

func NewLearningHandler(learning services.LearningService) *LearningHandler {
	return &LearningHandler{learning: learning}
}

// POST /api/learning/refresh
func (h *LearningHandler) Refresh(c *gin.Context) {
	rows, err := h.learning.RefreshSnapshots(c.Request.Context())
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "snapshot_refresh_failed", err)
		return
	}
	RespondOK(c, gin.H{"rows_written": rows})
}

// POST /api/learning/cycle
func (h *LearningHandler) Cycle(c *gin.Context) {
	outcome, err := h.learning.RunCycle(c.Request.Context())
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "learning_cycle_failed", err)
		return
	}
	RespondOK(c, outcome)
}

// GET /api/recommendations?status=
func (h *LearningHandler) ListRecommendations(c *gin.Context) {
	recs, err := h.learning.ListRecommendations(c.Request.Context(), c.Query("status"))
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "recommendations_fetch_failed", err)
		return
	}
	RespondOK(c, gin.H{"recommendations": recs})
}

// POST /api/recommendations/:id/approve
func (h *LearningHandler) Approve(c *gin.Context) {
	h.decide(c, h.learning.ApproveRecommendation)
}

// POST /api/recommendations/:id/reject
func (h *LearningHandler) Reject(c *gin.Context) {
	h.decide(c, h.learning.RejectRecommendation)
}

func (h *LearningHandler) decide(c *gin.Context, decide func(ctx context.Context, id uuid.UUID, actor string) error) {
	recID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_recommendation_id", err)
		return
	}
	var body struct {
		Actor string `json:"actor"`
	}
	_ = c.ShouldBindJSON(&body)
	if body.Actor == "" {
		body.Actor = "api"
	}
	if err := decide(c.Request.Context(), recID, body.Actor); err != nil {
		RespondError(c, http.StatusBadRequest, "decision_failed", err)
		return
	}
	RespondOK(c, gin.H{"recommendation_id": recID})
}
