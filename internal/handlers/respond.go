package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"card-custody-service/internal/models"
	"card-custody-service/internal/services"
)

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, models.ErrorResponse{
		Success: false,
		Error: models.Error{
			Code:    code,
			Message: message,
		},
	})
}

func respondCreated(c *gin.Context, data interface{}, message string) {
	c.JSON(http.StatusCreated, models.SuccessResponse{
		Success: true,
		Data:    data,
		Message: stringPtr(message),
	})
}

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    data,
	})
}

// respondDomainError maps service errors to HTTP statuses: validation 400,
// authorization 403, conflict 409, secret 401 (429 when rate limited),
// transient store 503, not-found sentinels 404.
func respondDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrCardNotFound):
		respondError(c, http.StatusNotFound, "NOT_FOUND", "Card not found")
		return
	case errors.Is(err, services.ErrEngagementNotFound):
		respondError(c, http.StatusNotFound, "NOT_FOUND", "Engagement not found")
		return
	case errors.Is(err, services.ErrWithdrawalNotFound):
		respondError(c, http.StatusNotFound, "NOT_FOUND", "Withdrawal request not found")
		return
	}

	code := services.CodeOf(err)
	switch services.KindOf(err) {
	case services.KindValidation:
		respondError(c, http.StatusBadRequest, strings.ToUpper(code), err.Error())
	case services.KindAuthorization:
		respondError(c, http.StatusForbidden, strings.ToUpper(code), err.Error())
	case services.KindConflict:
		respondError(c, http.StatusConflict, strings.ToUpper(code), err.Error())
	case services.KindSecret:
		status := http.StatusUnauthorized
		if code == services.CodeRevealRateLimited {
			status = http.StatusTooManyRequests
		}
		respondError(c, status, strings.ToUpper(code), err.Error())
	case services.KindTransientStore:
		respondError(c, http.StatusServiceUnavailable, "STORE_CONTENTION", "Storage contention, please retry")
	default:
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred")
	}
}

func paginationInfo(page, limit int, total int64) models.PaginationInfo {
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return models.PaginationInfo{
		Page:        page,
		Limit:       limit,
		Total:       total,
		TotalPages:  totalPages,
		HasNext:     page < totalPages,
		HasPrevious: page > 1,
	}
}

func queryInt(c *gin.Context, name string, fallback int) int {
	val, err := strconv.Atoi(c.DefaultQuery(name, strconv.Itoa(fallback)))
	if err != nil {
		return fallback
	}
	return val
}

func stringPtr(s string) *string {
	return &s
}
