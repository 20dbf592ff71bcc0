package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	dbm "reelcraft/internal/models/db_models"
	"reelcraft/pkg/utils"
)

func (s *gormStore) CreateCampaign(ctx context.Context, campaign *dbm.Campaign) error {
	return translateError(s.db.WithContext(ctx).Create(campaign).Error)
}

func (s *gormStore) FindCampaignByID(ctx context.Context, businessID, id uuid.UUID) (*dbm.Campaign, error) {
	return s.findCampaign(s.db.WithContext(ctx), businessID, id)
}

func (s *gormStore) FindCampaignForUpdate(ctx context.Context, businessID, id uuid.UUID) (*dbm.Campaign, error) {
	return s.findCampaign(s.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), businessID, id)
}

func (s *gormStore) findCampaign(db *gorm.DB, businessID, id uuid.UUID) (*dbm.Campaign, error) {
	var campaign dbm.Campaign
	err := db.Where("id = ? AND business_id = ?", id, businessID).First(&campaign).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, translateError(err)
	}
	return &campaign, nil
}

func (s *gormStore) UpdateCampaign(ctx context.Context, campaign *dbm.Campaign) error {
	result := s.db.WithContext(ctx).
		Model(&dbm.Campaign{}).
		Where("id = ? AND business_id = ?", campaign.ID, campaign.BusinessID).
		Updates(map[string]interface{}{
			"name":              campaign.Name,
			"status":            campaign.Status,
			"campaign_type":     campaign.CampaignType,
			"estimated_credits": campaign.EstimatedCredits,
			"credits_used":      campaign.CreditsUsed,
			"settings":          campaign.Settings,
			"metadata":          campaign.Metadata,
			"scene_data":        campaign.SceneData,
			"failure_reason":    campaign.FailureReason,
			"started_at":        campaign.StartedAt,
			"completed_at":      campaign.CompletedAt,
			"updated_at":        campaign.UpdatedAt,
		})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return utils.ErrCampaignNotFound
	}
	return nil
}

func (s *gormStore) ListCampaigns(ctx context.Context, filter CampaignFilter) ([]dbm.Campaign, int64, error) {
	scoped := func() *gorm.DB {
		tx := s.db.WithContext(ctx).
			Model(&dbm.Campaign{}).
			Where("business_id = ?", filter.BusinessID)
		if filter.Status != "" {
			tx = tx.Where("status = ?", filter.Status)
		}
		return tx
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, translateError(err)
	}

	var campaigns []dbm.Campaign
	err := scoped().
		Order("created_at DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&campaigns).Error
	if err != nil {
		return nil, 0, translateError(err)
	}
	return campaigns, total, nil
}
