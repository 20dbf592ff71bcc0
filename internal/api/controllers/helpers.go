package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	dbm "reelcraft/internal/models/db_models"
	"reelcraft/internal/models/response_models"
	"reelcraft/pkg/utils"
)

// businessID reads the business resolved by JWTAuthMiddleware. It writes the
// error response itself when the id is missing.
func businessID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.GetString("business_id"))
	if err != nil {
		utils.RespondError(c, http.StatusUnauthorized, "Business context missing")
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, fallback int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return v, true
}

func toTransactionResponse(t dbm.CreditTransaction) response_models.CreditTransaction {
	return response_models.CreditTransaction{
		ID:                    t.ID,
		TransactionType:       string(t.TransactionType),
		Amount:                t.Amount,
		BalanceAfter:          t.BalanceAfter,
		Description:           t.Description,
		Metadata:              t.Metadata,
		StripePaymentIntentID: t.StripePaymentIntentID,
		CreatedAt:             time.Unix(0, t.CreatedAt).UTC().Format(time.RFC3339Nano),
	}
}

func toCampaignResponse(c *dbm.Campaign) response_models.Campaign {
	resp := response_models.Campaign{
		ID:               c.ID,
		BusinessID:       c.BusinessID,
		UserID:           c.UserID,
		Name:             c.Name,
		Status:           string(c.Status),
		CampaignType:     string(c.CampaignType),
		EstimatedCredits: c.EstimatedCredits,
		CreditsUsed:      c.CreditsUsed,
		Settings:         c.Settings,
		Metadata:         c.Metadata,
		SceneData:        c.SceneData,
		FailureReason:    c.FailureReason,
		CreatedAt:        utils.FormatRFC3339(c.CreatedAt),
	}
	if c.StartedAt != nil {
		resp.StartedAt = utils.FormatRFC3339(*c.StartedAt)
	}
	if c.CompletedAt != nil {
		resp.CompletedAt = utils.FormatRFC3339(*c.CompletedAt)
	}
	return resp
}
