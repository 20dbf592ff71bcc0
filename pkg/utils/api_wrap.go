package utils

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type APIResponse struct {
	Status  string      `json:"status"`
	Code    int         `json:"code"`
	Message string      `json:"message,omitempty"`
	TraceID string      `json:"trace_id,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func traceID(c *gin.Context) string {
	return c.GetString("trace_id")
}

func RespondSuccess(c *gin.Context, data interface{}, message string) {
	RespondWithStatus(c, http.StatusOK, data, message)
}

func RespondWithStatus(c *gin.Context, code int, data interface{}, message string) {
	c.JSON(code, APIResponse{
		Status:  "success",
		Code:    code,
		Message: message,
		TraceID: traceID(c),
		Data:    data,
	})
}

func RespondError(c *gin.Context, code int, message string) {
	c.JSON(code, APIResponse{
		Status:  "error",
		Code:    code,
		Message: message,
		TraceID: traceID(c),
	})
}

func HandleServiceError(c *gin.Context, err error) {
	var shortfall *InsufficientCreditsError

	switch {
	case errors.As(err, &shortfall):
		RespondError(c, http.StatusPaymentRequired,
			fmt.Sprintf("Insufficient credits: %d required, %d available", shortfall.Required, shortfall.Available))
	case errors.Is(err, ErrInsufficientCredits):
		RespondError(c, http.StatusPaymentRequired, "Insufficient credits")
	case errors.Is(err, ErrBusinessNotFound):
		RespondError(c, http.StatusNotFound, "Business not found")
	case errors.Is(err, ErrCampaignNotFound):
		RespondError(c, http.StatusNotFound, "Campaign not found")
	case errors.Is(err, ErrInvalidAction):
		RespondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidTransactionType),
		errors.Is(err, ErrInvalidCampaignType),
		errors.Is(err, ErrInvalidPlan),
		errors.Is(err, ErrInvalidWebhook):
		RespondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInvalidPage):
		RespondError(c, http.StatusBadRequest, "Offset must not be negative")
	case errors.Is(err, ErrInvalidPageSize):
		RespondError(c, http.StatusBadRequest, "Limit must be between 1 and 100")
	case errors.Is(err, ErrInvalidStateTransition), errors.Is(err, ErrCampaignNotEditable):
		RespondError(c, http.StatusConflict, err.Error())
	case errors.Is(err, ErrPersistenceConflict):
		RespondError(c, http.StatusConflict, "Concurrent update detected, please retry")
	case errors.Is(err, ErrDuplicatePayment):
		RespondError(c, http.StatusConflict, "Payment already recorded")
	case errors.Is(err, ErrBusinessExists):
		RespondError(c, http.StatusConflict, "Business already exists")
	default:
		log.Error().Err(err).Str("trace_id", traceID(c)).Msg("unhandled service error")
		RespondError(c, http.StatusInternalServerError, "Internal server error")
	}
}
