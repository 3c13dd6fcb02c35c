package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fundbridge/fundbridge-backend/internal/services"
)

type WeightsHandler struct {
	weights services.WeightService
}

func NewWeightsHandler(weights services.WeightService) *WeightsHandler {
	return &WeightsHandler{weights: weights}
}

// GET /api/weight-versions
func (h *WeightsHandler) List(c *gin.Context) {
	versions, err := h.weights.List(c.Request.Context())
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "versions_fetch_failed", err)
		return
	}
	RespondOK(c, gin.H{"versions": versions})
}

// GET /api/weight-versions/:id/diff
func (h *WeightsHandler) Diff(c *gin.Context) {
	versionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_version_id", err)
		return
	}
	diff, err := h.weights.Diff(c.Request.Context(), versionID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "diff_failed", err)
		return
	}
	RespondOK(c, diff)
}

// POST /api/weight-versions/:id/activate
func (h *WeightsHandler) Activate(c *gin.Context) {
	versionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_version_id", err)
		return
	}
	var body struct {
		Actor string `json:"actor"`
	}
	_ = c.ShouldBindJSON(&body)
	if body.Actor == "" {
		body.Actor = "api"
	}
	if err := h.weights.Activate(c.Request.Context(), versionID, body.Actor); err != nil {
		RespondError(c, http.StatusBadRequest, "activation_failed", err)
		return
	}
	RespondOK(c, gin.H{"activated": versionID})
}
