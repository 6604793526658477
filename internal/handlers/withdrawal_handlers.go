package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"card-custody-service/internal/middleware"
	"card-custody-service/internal/models"
	"card-custody-service/internal/services"
)

// WithdrawalHandler exposes the withdrawal review pipeline
type WithdrawalHandler struct {
	withdrawals *services.WithdrawalService
}

// NewWithdrawalHandler creates a new WithdrawalHandler
func NewWithdrawalHandler(withdrawals *services.WithdrawalService) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawals: withdrawals}
}

// CreateWithdrawal registers a withdrawal produced by an engagement
// @Summary Create a withdrawal request
// @Tags withdrawals
// @Accept json
// @Produce json
// @Param request body models.CreateWithdrawalRequest true "Withdrawal details"
// @Success 201 {object} models.SuccessResponse
// @Router /api/v1/withdrawals [post]
func (h *WithdrawalHandler) CreateWithdrawal(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)

	var req models.CreateWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	withdrawal, err := h.withdrawals.CreateWithdrawal(c.Request.Context(), &req, actor)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	respondCreated(c, withdrawal, "Withdrawal request created")
}

// GetWithdrawal retrieves a withdrawal request
// @Summary Get a withdrawal request
// @Tags withdrawals
// @Produce json
// @Param id path string true "Withdrawal ID"
// @Success 200 {object} models.SuccessResponse
// @Router /api/v1/withdrawals/{id} [get]
func (h *WithdrawalHandler) GetWithdrawal(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid withdrawal ID")
		return
	}

	withdrawal, err := h.withdrawals.GetWithdrawal(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	respondOK(c, withdrawal)
}

// ListWithdrawals retrieves withdrawal requests, optionally by status
// @Summary List withdrawal requests
// @Tags withdrawals
// @Produce json
// @Param status query string false "Status filter"
// @Success 200 {object} models.SuccessResponse
// @Router /api/v1/withdrawals [get]
func (h *WithdrawalHandler) ListWithdrawals(c *gin.Context) {
	status := models.WithdrawalStatus(c.Query("status"))
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 20)

	withdrawals, total, err := h.withdrawals.ListWithdrawals(c.Request.Context(), status, page, limit)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       withdrawals,
		"pagination": paginationInfo(page, limit, total),
	})
}

// ManagerComment attaches the front-line manager's annotation
// @Summary Manager review annotation
// @Tags withdrawals
// @Accept json
// @Produce json
// @Param id path string true "Withdrawal ID"
// @Param request body models.AnnotateWithdrawalRequest true "Annotation"
// @Success 200 {object} models.SuccessResponse
// @Router /api/v1/withdrawals/{id}/manager-comment [patch]
func (h *WithdrawalHandler) ManagerComment(c *gin.Context) {
	h.annotate(c, models.ReviewerRoleManager)
}

// HRComment attaches the HR reviewer's annotation
// @Summary HR review annotation
// @Tags withdrawals
// @Accept json
// @Produce json
// @Param id path string true "Withdrawal ID"
// @Param request body models.AnnotateWithdrawalRequest true "Annotation"
// @Success 200 {object} models.SuccessResponse
// @Router /api/v1/withdrawals/{id}/hr-comment [patch]
func (h *WithdrawalHandler) HRComment(c *gin.Context) {
	h.annotate(c, models.ReviewerRoleHR)
}

// FinanceComment attaches the finance reviewer's annotation
// @Summary Finance review annotation
// @Tags withdrawals
// @Accept json
// @Produce json
// @Param id path string true "Withdrawal ID"
// @Param request body models.AnnotateWithdrawalRequest true "Annotation"
// @Success 200 {object} models.SuccessResponse
// @Router /api/v1/withdrawals/{id}/finance-comment [patch]
func (h *WithdrawalHandler) FinanceComment(c *gin.Context) {
	h.annotate(c, models.ReviewerRoleFinance)
}

func (h *WithdrawalHandler) annotate(c *gin.Context, role models.ReviewerRole) {
	actor, _ := middleware.ActorFromContext(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid withdrawal ID")
		return
	}

	var req models.AnnotateWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	withdrawal, err := h.withdrawals.Annotate(c.Request.Context(), id, role, actor, &req)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	respondOK(c, withdrawal)
}

// UnblockWithdrawal lifts a finance block
// @Summary Unblock a withdrawal request
// @Tags withdrawals
// @Produce json
// @Param id path string true "Withdrawal ID"
// @Success 200 {object} models.SuccessResponse
// @Router /api/v1/withdrawals/{id}/unblock [post]
func (h *WithdrawalHandler) UnblockWithdrawal(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid withdrawal ID")
		return
	}

	withdrawal, err := h.withdrawals.Unblock(c.Request.Context(), id, actor)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	respondOK(c, withdrawal)
}
