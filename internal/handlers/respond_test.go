package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"card-custody-service/internal/models"
	"card-custody-service/internal/services"
)

func recordDomainError(err error) (*httptest.ResponseRecorder, models.ErrorResponse) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	respondDomainError(c, err)

	var body models.ErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestRespondDomainError_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "validation maps to 400",
			err:        services.NewValidationError(services.CodeAmountInvalid, "amount must be positive"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "AMOUNT_INVALID",
		},
		{
			name:       "authorization maps to 403",
			err:        services.NewAuthorizationError(services.CodeNotCardHolder, "card is not assigned to requester"),
			wantStatus: http.StatusForbidden,
			wantCode:   "NOT_CARD_HOLDER",
		},
		{
			name:       "conflict maps to 409",
			err:        services.NewConflictError(services.CodeCardNotFree, "card already assigned against this target"),
			wantStatus: http.StatusConflict,
			wantCode:   "CARD_NOT_FREE",
		},
		{
			name:       "bad pin maps to 401",
			err:        services.NewSecretError(services.CodeBadPIN, "pin verification failed"),
			wantStatus: http.StatusUnauthorized,
			wantCode:   "BAD_PIN",
		},
		{
			name:       "reveal rate limit maps to 429",
			err:        services.NewSecretError(services.CodeRevealRateLimited, "too many failed attempts"),
			wantStatus: http.StatusTooManyRequests,
			wantCode:   "REVEAL_RATE_LIMITED",
		},
		{
			name:       "store contention maps to 503",
			err:        services.NewTransientStoreError(errors.New("deadlock detected (SQLSTATE 40P01)")),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "STORE_CONTENTION",
		},
		{
			name:       "card not found maps to 404",
			err:        services.ErrCardNotFound,
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		{
			name:       "unknown errors map to 500",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := recordDomainError(tt.err)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.False(t, body.Success)
			assert.Equal(t, tt.wantCode, body.Error.Code)
		})
	}
}

func TestPaginationInfo(t *testing.T) {
	info := paginationInfo(2, 20, 45)
	assert.Equal(t, 3, info.TotalPages)
	assert.True(t, info.HasNext)
	assert.True(t, info.HasPrevious)

	last := paginationInfo(3, 20, 45)
	assert.False(t, last.HasNext)
}
