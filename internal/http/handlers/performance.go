package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/adstudio-backend/internal/http/response"
	"github.com/yungbote/adstudio-backend/internal/pkg/llmjson"
	"github.com/yungbote/adstudio-backend/internal/platform/apierr"
	"github.com/yungbote/adstudio-backend/internal/platform/logger"
	"github.com/yungbote/adstudio-backend/internal/services"
)

type PerformanceHandler struct {
	log *logger.Logger
	sim services.SimulationService
}

func NewPerformanceHandler(log *logger.Logger, sim services.SimulationService) *PerformanceHandler {
	return &PerformanceHandler{log: log.With("handler", "PerformanceHandler"), sim: sim}
}

func badID(err error) error {
	return apierr.BadRequest("invalid_id", err)
}

func contentIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondAPIError(c, badID(err), "invalid_id")
		return uuid.Nil, false
	}
	return id, true
}

// simulationError maps simulator failures onto statuses.
func simulationError(err error) error {
	switch {
	case errors.Is(err, services.ErrContentNotFound):
		return apierr.NotFound("content_not_found", err)
	case errors.Is(err, llmjson.ErrMalformedOutput):
		return apierr.New(http.StatusBadGateway, "malformed_llm_output", err)
	default:
		return err
	}
}

// POST /api/performance/predict/:id?force=true
func (h *PerformanceHandler) Predict(c *gin.Context) {
	id, ok := contentIDParam(c)
	if !ok {
		return
	}
	force, _ := strconv.ParseBool(c.Query("force"))
	pred, err := h.sim.Predict(c.Request.Context(), id, force)
	if err != nil {
		response.RespondAPIError(c, simulationError(err), "prediction_failed")
		return
	}
	response.RespondOK(c, gin.H{
		"success":     true,
		"is_new":      pred.IsNew,
		"performance": pred.Performance,
		"metrics":     pred.Performance.Metrics(),
	})
}

// GET /api/performance/:id
func (h *PerformanceHandler) Summary(c *gin.Context) {
	id, ok := contentIDParam(c)
	if !ok {
		return
	}
	sum, err := h.sim.Summary(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, err, "performance_lookup_failed")
		return
	}
	response.RespondOK(c, sum)
}

// GET /api/performance/:id/detailed
func (h *PerformanceHandler) Detailed(c *gin.Context) {
	id, ok := contentIDParam(c)
	if !ok {
		return
	}
	detail, err := h.sim.Detailed(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, err, "performance_lookup_failed")
		return
	}
	if detail == nil {
		response.RespondError(c, http.StatusNotFound, "performance_not_found", errors.New("no performance data for content"))
		return
	}
	response.RespondOK(c, detail)
}
