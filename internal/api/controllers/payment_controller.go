package controllers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"reelcraft/internal/services"
	"reelcraft/pkg/utils"
)

const maxWebhookBody = 1 << 20 // 1MiB

type PaymentController struct {
	paymentService services.PaymentService
}

func NewPaymentController(paymentService services.PaymentService) *PaymentController {
	return &PaymentController{
		paymentService: paymentService,
	}
}

// HandleStripeWebhook godoc
// @Summary Stripe webhook
// @Description Verifies the Stripe-Signature header and applies purchase, invoice, and subscription events to the ledger
// @Tags Payments
// @Accept json
// @Produce json
// @Success 200 {object} services.WebhookResult
// @Failure 400 {object} utils.APIResponse
// @Failure 413 {object} utils.APIResponse
// @Router /webhooks/stripe [post]
func (p *PaymentController) HandleStripeWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.RespondError(c, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		utils.RespondError(c, http.StatusBadRequest, "Failed to read request body")
		return
	}

	result, err := p.paymentService.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, result, "Webhook processed")
}
