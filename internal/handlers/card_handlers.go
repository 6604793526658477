package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"card-custody-service/internal/middleware"
	"card-custody-service/internal/models"
	"card-custody-service/internal/services"
)

// CardHandler exposes card custody operations
type CardHandler struct {
	cards  *services.CardService
	reveal *services.RevealService
}

// NewCardHandler creates a new CardHandler
func NewCardHandler(cards *services.CardService, reveal *services.RevealService) *CardHandler {
	return &CardHandler{cards: cards, reveal: reveal}
}

// CreateCard registers a new card under custody
// @Summary Create a card
// @Tags cards
// @Accept json
// @Produce json
// @Param request body models.CreateCardRequest true "Card details"
// @Success 201 {object} models.SuccessResponse
// @Router /api/v1/cards [post]
func (h *CardHandler) CreateCard(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)

	var req models.CreateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	card, err := h.cards.CreateCard(c.Request.Context(), actor, req)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	respondCreated(c, card, "Card created successfully")
}

// GetCard retrieves a card by ID
// @Summary Get a card
// @Tags cards
// @Produce json
// @Param id path string true "Card ID"
// @Success 200 {object} models.SuccessResponse
// @Router /api/v1/cards/{id} [get]
func (h *CardHandler) GetCard(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid card ID")
		return
	}

	card, err := h.cards.GetCard(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	respondOK(c, card)
}

// ListCards retrieves cards with filters
// @Summary List cards
// @Tags cards
// @Produce json
// @Param status query []string false "Status filter"
// @Param assignedTo query string false "Assignee filter"
// @Success 200 {object} models.SuccessResponse
// @Router /api/v1/cards [get]
func (h *CardHandler) ListCards(c *gin.Context) {
	var req models.SearchCardsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	cards, total, err := h.cards.ListCards(c.Request.Context(), &req)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       cards,
		"pagination": paginationInfo(req.Page, req.Limit, total),
	})
}

// AssignCard hands a card to a worker for use against a target
// @Summary Assign a card
// @Tags cards
// @Accept json
// @Produce json
// @Param request body models.AssignCardRequest true "Assignment details"
// @Success 200 {object} models.SuccessResponse
// @Router /api/v1/card-assignments [post]
func (h *CardHandler) AssignCard(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)

	var req models.AssignCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	card, err := h.cards.AssignCard(c.Request.Context(), actor, req)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	respondOK(c, card)
}

// BlockCard freezes a card against all further use
// @Summary Block a card
// @Tags cards
// @Produce json
// @Param id path string true "Card ID"
// @Success 200 {object} models.SuccessResponse
// @Router /api/v1/cards/{id}/block [post]
func (h *CardHandler) BlockCard(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid card ID")
		return
	}

	card, err := h.cards.BlockCard(c.Request.Context(), actor, id)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	respondOK(c, card)
}

// UnblockCard returns a blocked card to the available pool
// @Summary Unblock a card
// @Tags cards
// @Produce json
// @Param id path string true "Card ID"
// @Success 200 {object} models.SuccessResponse
// @Router /api/v1/cards/{id}/unblock [post]
func (h *CardHandler) UnblockCard(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid card ID")
		return
	}

	card, err := h.cards.UnblockCard(c.Request.Context(), actor, id)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	respondOK(c, card)
}

// RevealCard discloses the card's raw fields after PIN verification
// @Summary Reveal card data
// @Tags cards
// @Accept json
// @Produce json
// @Param id path string true "Card ID"
// @Param request body models.RevealCardRequest true "PIN verification"
// @Success 200 {object} models.RevealCardResponse
// @Router /api/v1/cards/{id}/reveal [post]
func (h *CardHandler) RevealCard(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid card ID")
		return
	}

	var req models.RevealCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	payload, err := h.reveal.Reveal(c.Request.Context(), actor, id, req.PIN, req.Context, c.ClientIP())
	if err != nil {
		respondDomainError(c, err)
		return
	}

	respondOK(c, payload)
}

// ListRevealAudit returns the reveal history for a card
// @Summary Reveal audit trail
// @Tags cards
// @Produce json
// @Param id path string true "Card ID"
// @Success 200 {object} models.SuccessResponse
// @Router /api/v1/cards/{id}/reveal-audit [get]
func (h *CardHandler) ListRevealAudit(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid card ID")
		return
	}

	limit := queryInt(c, "limit", 20)
	offset := queryInt(c, "offset", 0)

	entries, total, err := h.reveal.RevealHistory(c.Request.Context(), id, limit, offset)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    entries,
		"total":   total,
	})
}

// ListActorRevealAudit returns every reveal attempted by an actor
// @Summary Reveal audit trail for an actor
// @Tags actors
// @Produce json
// @Param id path string true "Actor ID"
// @Success 200 {object} models.SuccessResponse
// @Router /api/v1/actors/{id}/reveal-audit [get]
func (h *CardHandler) ListActorRevealAudit(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid actor ID")
		return
	}

	limit := queryInt(c, "limit", 20)
	offset := queryInt(c, "offset", 0)

	entries, total, err := h.reveal.RevealHistoryByRequester(c.Request.Context(), id, limit, offset)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    entries,
		"total":   total,
	})
}
