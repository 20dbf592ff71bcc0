package controllers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	dbm "reelcraft/internal/models/db_models"
	"reelcraft/internal/models/request_models"
	"reelcraft/internal/models/response_models"
	"reelcraft/internal/services"
	"reelcraft/pkg/utils"
)

type CampaignController struct {
	campaignService services.CampaignServiceInterface
}

func NewCampaignController(campaignService services.CampaignServiceInterface) *CampaignController {
	return &CampaignController{
		campaignService: campaignService,
	}
}

func campaignID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid campaign id")
		return uuid.Nil, false
	}
	return id, true
}

// bindOptionalJSON accepts an empty body as the zero value.
func bindOptionalJSON(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// CreateCampaign godoc
// @Summary Create a campaign draft
// @Description Stores a draft and its credit estimate. Nothing is charged.
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param request body request_models.CreateCampaignRequest true "Campaign"
// @Success 201 {object} response_models.Campaign
// @Failure 400 {object} utils.APIResponse
// @Security BearerAuth
// @Router /campaigns [post]
func (cc *CampaignController) CreateCampaign(c *gin.Context) {
	bid, ok := businessID(c)
	if !ok {
		return
	}

	var req request_models.CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid campaign payload")
		return
	}

	campaign, err := cc.campaignService.CreateCampaign(c.Request.Context(), services.CreateCampaignParams{
		BusinessID:   bid,
		UserID:       c.GetString("user_id"),
		Name:         req.Name,
		CampaignType: req.CampaignType,
		Settings:     req.Settings,
		Metadata:     req.Metadata,
		SceneData:    req.SceneData,
	})
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondWithStatus(c, http.StatusCreated, toCampaignResponse(campaign), "Campaign created successfully")
}

// ListCampaigns godoc
// @Summary List campaigns
// @Tags Campaigns
// @Produce json
// @Param status query string false "Filter by status"
// @Param limit query int false "Page size" default(20) minimum(1) maximum(100)
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} response_models.CampaignList
// @Security BearerAuth
// @Router /campaigns [get]
func (cc *CampaignController) ListCampaigns(c *gin.Context) {
	bid, ok := businessID(c)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", services.DefaultCampaignPageSize)
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok {
		return
	}

	campaigns, total, err := cc.campaignService.ListCampaigns(c.Request.Context(), bid, c.Query("status"), limit, offset)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	out := make([]response_models.Campaign, 0, len(campaigns))
	for i := range campaigns {
		out = append(out, toCampaignResponse(&campaigns[i]))
	}
	utils.RespondSuccess(c, response_models.CampaignList{
		Campaigns: out,
		Total:     total,
		Limit:     limit,
		Offset:    offset,
	}, "Campaigns fetched successfully")
}

// GetCampaign godoc
// @Summary Get a campaign
// @Tags Campaigns
// @Produce json
// @Param id path string true "Campaign ID"
// @Success 200 {object} response_models.Campaign
// @Failure 404 {object} utils.APIResponse
// @Security BearerAuth
// @Router /campaigns/{id} [get]
func (cc *CampaignController) GetCampaign(c *gin.Context) {
	bid, ok := businessID(c)
	if !ok {
		return
	}
	id, ok := campaignID(c)
	if !ok {
		return
	}

	campaign, err := cc.campaignService.GetCampaign(c.Request.Context(), bid, id)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, toCampaignResponse(campaign), "Campaign fetched successfully")
}

// UpdateCampaign godoc
// @Summary Update a draft campaign
// @Description Replaces settings and re-estimates. scene_data and metadata keys are merged; null removes a key.
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param id path string true "Campaign ID"
// @Param request body request_models.UpdateCampaignRequest true "Patch"
// @Success 200 {object} response_models.Campaign
// @Failure 409 {object} utils.APIResponse
// @Security BearerAuth
// @Router /campaigns/{id} [patch]
func (cc *CampaignController) UpdateCampaign(c *gin.Context) {
	bid, ok := businessID(c)
	if !ok {
		return
	}
	id, ok := campaignID(c)
	if !ok {
		return
	}

	var req request_models.UpdateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid campaign payload")
		return
	}

	campaign, err := cc.campaignService.UpdateDraft(c.Request.Context(), bid, id, services.UpdateCampaignParams{
		Name:         req.Name,
		CampaignType: req.CampaignType,
		Settings:     req.Settings,
		Metadata:     req.Metadata,
		SceneData:    req.SceneData,
	})
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, toCampaignResponse(campaign), "Campaign updated successfully")
}

// EstimateCampaign godoc
// @Summary Estimate campaign credits
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param request body request_models.EstimateCampaignRequest true "Type and settings"
// @Success 200 {object} response_models.CampaignEstimate
// @Security BearerAuth
// @Router /campaigns/estimate [post]
func (cc *CampaignController) EstimateCampaign(c *gin.Context) {
	var req request_models.EstimateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "campaign_type must be one of video, image, script")
		return
	}

	estimate, err := cc.campaignService.EstimateCredits(req.CampaignType, req.Settings)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, response_models.CampaignEstimate{
		CampaignType:     req.CampaignType,
		EstimatedCredits: estimate,
	}, "Estimate computed successfully")
}

// StartCampaign godoc
// @Summary Start a campaign
// @Description draft to in_progress. Debits the estimate.
// @Tags Campaigns
// @Produce json
// @Param id path string true "Campaign ID"
// @Param Idempotency-Key header string false "Replays the first successful response"
// @Success 200 {object} response_models.Campaign
// @Failure 402 {object} utils.APIResponse
// @Failure 409 {object} utils.APIResponse
// @Security BearerAuth
// @Router /campaigns/{id}/start [post]
func (cc *CampaignController) StartCampaign(c *gin.Context) {
	bid, ok := businessID(c)
	if !ok {
		return
	}
	id, ok := campaignID(c)
	if !ok {
		return
	}

	campaign, err := cc.campaignService.StartCampaign(c.Request.Context(), bid, id, c.GetString("user_id"))
	cc.respondTransition(c, campaign, err, "Campaign started")
}

// CompleteCampaign godoc
// @Summary Complete a campaign
// @Description in_progress to completed. Reconciles actual_credits_used against the amount debited at start.
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param id path string true "Campaign ID"
// @Param request body request_models.CompleteCampaignRequest false "Actual usage"
// @Success 200 {object} response_models.Campaign
// @Failure 402 {object} utils.APIResponse
// @Failure 409 {object} utils.APIResponse
// @Security BearerAuth
// @Router /campaigns/{id}/complete [post]
func (cc *CampaignController) CompleteCampaign(c *gin.Context) {
	bid, ok := businessID(c)
	if !ok {
		return
	}
	id, ok := campaignID(c)
	if !ok {
		return
	}

	var req request_models.CompleteCampaignRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "actual_credits_used must be a non-negative integer")
		return
	}

	campaign, err := cc.campaignService.CompleteCampaign(c.Request.Context(), bid, id, req.ActualCreditsUsed)
	cc.respondTransition(c, campaign, err, "Campaign completed")
}

// FailCampaign godoc
// @Summary Fail a campaign
// @Description in_progress to failed. Refunds credits_used.
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param id path string true "Campaign ID"
// @Param request body request_models.CloseCampaignRequest false "Reason"
// @Success 200 {object} response_models.Campaign
// @Failure 409 {object} utils.APIResponse
// @Security BearerAuth
// @Router /campaigns/{id}/fail [post]
func (cc *CampaignController) FailCampaign(c *gin.Context) {
	cc.close(c, cc.campaignService.FailCampaign, "Campaign failed")
}

// CancelCampaign godoc
// @Summary Cancel a campaign
// @Description draft or in_progress to cancelled. Refunds credits_used.
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param id path string true "Campaign ID"
// @Param request body request_models.CloseCampaignRequest false "Reason"
// @Success 200 {object} response_models.Campaign
// @Failure 409 {object} utils.APIResponse
// @Security BearerAuth
// @Router /campaigns/{id}/cancel [post]
func (cc *CampaignController) CancelCampaign(c *gin.Context) {
	cc.close(c, cc.campaignService.CancelCampaign, "Campaign cancelled")
}

type closeFunc func(ctx context.Context, businessID, campaignID uuid.UUID, reason string) (*dbm.Campaign, error)

func (cc *CampaignController) close(c *gin.Context, fn closeFunc, message string) {
	bid, ok := businessID(c)
	if !ok {
		return
	}
	id, ok := campaignID(c)
	if !ok {
		return
	}

	var req request_models.CloseCampaignRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "reason must be at most 500 characters")
		return
	}

	campaign, err := fn(c.Request.Context(), bid, id, req.Reason)
	cc.respondTransition(c, campaign, err, message)
}

func (cc *CampaignController) respondTransition(c *gin.Context, campaign *dbm.Campaign, err error, message string) {
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, toCampaignResponse(campaign), message)
}
