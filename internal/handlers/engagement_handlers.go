package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"card-custody-service/internal/middleware"
	"card-custody-service/internal/models"
	"card-custody-service/internal/services"
)

// EngagementHandler exposes engagement allocation operations
type EngagementHandler struct {
	engagements *services.EngagementService
}

// NewEngagementHandler creates a new EngagementHandler
func NewEngagementHandler(engagements *services.EngagementService) *EngagementHandler {
	return &EngagementHandler{engagements: engagements}
}

// OpenEngagement atomically allocates a card for use against a target
// @Summary Open an engagement
// @Tags engagements
// @Accept json
// @Produce json
// @Param request body models.OpenEngagementRequest true "Engagement details"
// @Success 201 {object} models.OpenEngagementResponse
// @Router /api/v1/engagements [post]
func (h *EngagementHandler) OpenEngagement(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)

	var req models.OpenEngagementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	engagement, err := h.engagements.OpenEngagement(c.Request.Context(), actor, req)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.OpenEngagementResponse{
		EngagementID: engagement.ID,
		Status:       engagement.Status,
	})
}

// GetEngagement retrieves an engagement
// @Summary Get an engagement
// @Tags engagements
// @Produce json
// @Param id path string true "Engagement ID"
// @Success 200 {object} models.SuccessResponse
// @Router /api/v1/engagements/{id} [get]
func (h *EngagementHandler) GetEngagement(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid engagement ID")
		return
	}

	engagement, err := h.engagements.GetEngagement(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	respondOK(c, engagement)
}

// CompleteEngagement settles an engagement successfully. Safe to retry:
// repeating the call on a settled engagement returns the current state.
// @Summary Complete an engagement
// @Tags engagements
// @Produce json
// @Param id path string true "Engagement ID"
// @Success 200 {object} models.SuccessResponse
// @Router /api/v1/engagements/{id}/complete [post]
func (h *EngagementHandler) CompleteEngagement(c *gin.Context) {
	h.close(c, func(actor *models.Actor, id uuid.UUID) (*models.Engagement, error) {
		return h.engagements.CompleteEngagement(c.Request.Context(), actor, id)
	})
}

// FailEngagement settles an engagement as errored
// @Summary Fail an engagement
// @Tags engagements
// @Produce json
// @Param id path string true "Engagement ID"
// @Success 200 {object} models.SuccessResponse
// @Router /api/v1/engagements/{id}/fail [post]
func (h *EngagementHandler) FailEngagement(c *gin.Context) {
	h.close(c, func(actor *models.Actor, id uuid.UUID) (*models.Engagement, error) {
		return h.engagements.FailEngagement(c.Request.Context(), actor, id)
	})
}

func (h *EngagementHandler) close(c *gin.Context, settle func(*models.Actor, uuid.UUID) (*models.Engagement, error)) {
	actor, _ := middleware.ActorFromContext(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid engagement ID")
		return
	}

	engagement, err := settle(actor, id)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	respondOK(c, engagement)
}
