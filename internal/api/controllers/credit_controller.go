package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	dbm "reelcraft/internal/models/db_models"
	"reelcraft/internal/models/request_models"
	"reelcraft/internal/models/response_models"
	"reelcraft/internal/services"
	"reelcraft/pkg/utils"
)

type CreditController struct {
	creditService services.CreditServiceInterface
	timezone      string
}

func NewCreditController(creditService services.CreditServiceInterface, timezone string) *CreditController {
	if timezone == "" {
		timezone = "UTC"
	}
	return &CreditController{
		creditService: creditService,
		timezone:      timezone,
	}
}

// GetBalance godoc
// @Summary Get credit balance
// @Description Current credit balance and subscription of the caller's business
// @Tags Credits
// @Produce json
// @Success 200 {object} response_models.CreditBalance
// @Failure 404 {object} utils.APIResponse
// @Security BearerAuth
// @Router /credits [get]
func (cc *CreditController) GetBalance(c *gin.Context) {
	bid, ok := businessID(c)
	if !ok {
		return
	}

	balance, err := cc.creditService.GetBalance(c.Request.Context(), bid)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, balance, "Balance fetched successfully")
}

// GetHistory godoc
// @Summary Get credit history
// @Description Ledger transactions, newest first
// @Tags Credits
// @Produce json
// @Param limit query int false "Page size" default(50) minimum(1) maximum(100)
// @Param offset query int false "Offset" default(0) minimum(0)
// @Success 200 {object} response_models.CreditHistory
// @Failure 400 {object} utils.APIResponse
// @Security BearerAuth
// @Router /credits/history [get]
func (cc *CreditController) GetHistory(c *gin.Context) {
	bid, ok := businessID(c)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", services.DefaultHistoryLimit)
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok {
		return
	}

	txns, err := cc.creditService.GetHistory(c.Request.Context(), bid, limit, offset)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	out := make([]response_models.CreditTransaction, 0, len(txns))
	for _, t := range txns {
		out = append(out, toTransactionResponse(t))
	}
	utils.RespondSuccess(c, response_models.CreditHistory{
		Transactions: out,
		Limit:        limit,
		Offset:       offset,
	}, "History fetched successfully")
}

// CheckCredits godoc
// @Summary Check credits for an action
// @Description Reports the action's cost and whether the balance covers it. Nothing is debited.
// @Tags Credits
// @Accept json
// @Produce json
// @Param request body request_models.CheckCreditsRequest true "Action key"
// @Success 200 {object} response_models.CreditCheck
// @Failure 400 {object} utils.APIResponse
// @Security BearerAuth
// @Router /credits/check [post]
func (cc *CreditController) CheckCredits(c *gin.Context) {
	bid, ok := businessID(c)
	if !ok {
		return
	}

	var req request_models.CheckCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "action is required")
		return
	}

	check, err := cc.creditService.CheckCredits(c.Request.Context(), bid, req.Action)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, check, "Credit check completed")
}

// ConsumeCredits godoc
// @Summary Consume credits
// @Description Debits the cost of an action. Supports the Idempotency-Key header.
// @Tags Credits
// @Accept json
// @Produce json
// @Param request body request_models.ConsumeCreditsRequest true "Action and metadata"
// @Param Idempotency-Key header string false "Replays the first successful response"
// @Success 200 {object} response_models.CreditConsumption
// @Failure 400 {object} utils.APIResponse
// @Failure 402 {object} utils.APIResponse
// @Failure 409 {object} utils.APIResponse
// @Security BearerAuth
// @Router /credits/consume [post]
func (cc *CreditController) ConsumeCredits(c *gin.Context) {
	bid, ok := businessID(c)
	if !ok {
		return
	}

	var req request_models.ConsumeCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "action is required")
		return
	}

	key, cost, err := services.ActionCost(req.Action)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	balance, err := cc.creditService.ConsumeCredits(c.Request.Context(), services.ConsumeCreditsParams{
		BusinessID: bid,
		UserID:     c.GetString("user_id"),
		Action:     key,
		Feature:    req.Feature,
		Metadata:   req.Metadata,
	})
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, response_models.CreditConsumption{
		Action:      key,
		CreditsUsed: cost,
		Balance:     balance,
	}, "Credits consumed successfully")
}

// GetAnalytics godoc
// @Summary Get usage analytics
// @Description Credits used per day and action over the last N days
// @Tags Credits
// @Produce json
// @Param days query int false "Window in days" default(30) maximum(365)
// @Success 200 {object} response_models.CreditAnalytics
// @Security BearerAuth
// @Router /credits/analytics [get]
func (cc *CreditController) GetAnalytics(c *gin.Context) {
	bid, ok := businessID(c)
	if !ok {
		return
	}
	days, ok := queryInt(c, "days", services.DefaultAnalyticsDays)
	if !ok {
		return
	}
	days = services.NormalizeAnalyticsDays(days)

	breakdown, err := cc.creditService.GetAnalytics(c.Request.Context(), bid, days)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	var total int64
	for _, actions := range breakdown {
		for _, used := range actions {
			total += used
		}
	}
	utils.RespondSuccess(c, response_models.CreditAnalytics{
		Days:      days,
		Timezone:  cc.timezone,
		Breakdown: breakdown,
		Total:     total,
	}, "Analytics fetched successfully")
}

// ListCosts godoc
// @Summary List action costs
// @Tags Credits
// @Produce json
// @Success 200 {array} services.ActionCostEntry
// @Router /credits/costs [get]
func (cc *CreditController) ListCosts(c *gin.Context) {
	utils.RespondSuccess(c, services.ListActionCosts(), "Costs fetched successfully")
}

// ListPlans godoc
// @Summary List subscription plans
// @Tags Credits
// @Produce json
// @Success 200 {array} services.PlanTerms
// @Router /credits/plans [get]
func (cc *CreditController) ListPlans(c *gin.Context) {
	utils.RespondSuccess(c, services.ListPlans(), "Plans fetched successfully")
}

// QuotePurchase godoc
// @Summary Quote a credit pack
// @Description Price of a credit pack under the business's plan, in minor units
// @Tags Credits
// @Accept json
// @Produce json
// @Param request body request_models.QuoteCreditsRequest true "Credits to buy"
// @Success 200 {object} response_models.PurchaseQuote
// @Security BearerAuth
// @Router /credits/quote [post]
func (cc *CreditController) QuotePurchase(c *gin.Context) {
	bid, ok := businessID(c)
	if !ok {
		return
	}

	var req request_models.QuoteCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "credits must be between 1 and 1000000")
		return
	}

	quote, err := cc.creditService.QuotePurchase(c.Request.Context(), bid, req.Credits)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, quote, "Quote created successfully")
}

// GrantCredits godoc
// @Summary Grant bonus credits
// @Description Admin only. Adds a bonus transaction to any business.
// @Tags Credits
// @Accept json
// @Produce json
// @Param request body request_models.GrantCreditsRequest true "Grant"
// @Success 200 {object} utils.APIResponse
// @Failure 403 {object} utils.APIResponse
// @Security BearerAuth
// @Router /credits/grant [post]
func (cc *CreditController) GrantCredits(c *gin.Context) {
	var req request_models.GrantCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "business_id and a positive amount are required")
		return
	}
	target, err := uuid.Parse(req.BusinessID)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid business_id")
		return
	}

	description := req.Description
	if description == "" {
		description = "Bonus credits"
	}
	metadata := req.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	metadata["granted_by"] = c.GetString("user_id")

	balance, err := cc.creditService.AddCredits(c.Request.Context(), services.AddCreditsParams{
		BusinessID:      target,
		Amount:          req.Amount,
		TransactionType: dbm.TxnTypeBonus,
		Description:     description,
		Metadata:        metadata,
	})
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, gin.H{"business_id": target, "balance": balance}, "Credits granted successfully")
}

// ProvisionBusiness godoc
// @Summary Provision a business
// @Description Admin only. Creates a business at zero credits and grants the opening balance through the ledger.
// @Tags Businesses
// @Accept json
// @Produce json
// @Param request body request_models.ProvisionBusinessRequest true "Business"
// @Success 201 {object} response_models.CreditBalance
// @Failure 400 {object} utils.APIResponse
// @Failure 403 {object} utils.APIResponse
// @Security BearerAuth
// @Router /businesses [post]
func (cc *CreditController) ProvisionBusiness(c *gin.Context) {
	var req request_models.ProvisionBusinessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "name is required and opening_credits must be between 0 and 1000000")
		return
	}

	business, err := cc.creditService.ProvisionBusiness(c.Request.Context(), services.ProvisionBusinessParams{
		Name:           req.Name,
		OwnerID:        req.OwnerID,
		Plan:           req.Plan,
		OpeningCredits: req.OpeningCredits,
	})
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondWithStatus(c, http.StatusCreated, response_models.CreditBalance{
		BusinessID: business.ID,
		Credits:    business.Credits,
		Plan:       string(business.SubscriptionPlan),
		Status:     string(business.SubscriptionStatus),
		ExpiresAt:  business.SubscriptionExpiresAt,
	}, "Business provisioned successfully")
}
