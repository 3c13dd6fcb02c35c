package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fundbridge/fundbridge-backend/internal/services"
)

type StartupHandler struct {
	resolver services.ResolveService
	scoring  services.ScoringService
}

func NewStartupHandler(resolver services.ResolveService, scoring services.ScoringService) *StartupHandler {
	return &StartupHandler{resolver: resolver, scoring: scoring}
}

// GET /api/startups/resolve?ref=...
func (h *StartupHandler) Resolve(c *gin.Context) {
	ref := c.Query("ref")
	result, err := h.resolver.Resolve(c.Request.Context(), ref)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "resolve_failed", err)
		return
	}
	RespondOK(c, result)
}

// POST /api/startups/:id/score
func (h *StartupHandler) Score(c *gin.Context) {
	startupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_startup_id", err)
		return
	}
	result, err := h.scoring.ScoreStartupFast(c.Request.Context(), startupID)
	if err != nil {
		if errors.Is(err, services.ErrStartupNotFound) {
			RespondError(c, http.StatusNotFound, "startup_not_found", err)
			return
		}
		RespondError(c, http.StatusBadRequest, "score_failed", err)
		return
	}
	if result.Pending {
		c.JSON(http.StatusAccepted, result)
		return
	}
	RespondOK(c, result)
}
