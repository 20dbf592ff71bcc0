package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serveError(t *testing.T, err error) (int, APIResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Set("trace_id", "trace-1")

	HandleServiceError(c, err)

	var body APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestHandleServiceError_StatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ErrInsufficientCredits, http.StatusPaymentRequired},
		{&InsufficientCreditsError{Required: 10, Available: 3}, http.StatusPaymentRequired},
		{ErrBusinessNotFound, http.StatusNotFound},
		{ErrCampaignNotFound, http.StatusNotFound},
		{ErrInvalidAction, http.StatusBadRequest},
		{ErrInvalidAmount, http.StatusBadRequest},
		{ErrInvalidTransactionType, http.StatusBadRequest},
		{ErrInvalidCampaignType, http.StatusBadRequest},
		{ErrInvalidWebhook, http.StatusBadRequest},
		{ErrInvalidPageSize, http.StatusBadRequest},
		{ErrInvalidStateTransition, http.StatusConflict},
		{ErrCampaignNotEditable, http.StatusConflict},
		{fmt.Errorf("%w: deadlock", ErrPersistenceConflict), http.StatusConflict},
		{ErrDuplicatePayment, http.StatusConflict},
		{ErrBusinessExists, http.StatusConflict},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			code, body := serveError(t, tt.err)
			assert.Equal(t, tt.want, code)
			assert.Equal(t, tt.want, body.Code)
			assert.Equal(t, "error", body.Status)
			assert.Equal(t, "trace-1", body.TraceID)
		})
	}
}

func TestHandleServiceError_NamesShortfall(t *testing.T) {
	_, body := serveError(t, &InsufficientCreditsError{Required: 10, Available: 3})
	assert.Equal(t, "Insufficient credits: 10 required, 3 available", body.Message)

	_, body = serveError(t, errors.New("disk on fire"))
	assert.Equal(t, "Internal server error", body.Message)
}

func TestInsufficientCreditsErrorMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("consume: %w", &InsufficientCreditsError{Required: 2, Available: 1})
	assert.True(t, IsInsufficient(err))
	assert.False(t, IsNotFound(err))
	assert.True(t, IsNotFound(ErrCampaignNotFound))
}
