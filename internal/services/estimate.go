package services

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	dbm "reelcraft/internal/models/db_models"
	"reelcraft/pkg/utils"
)

var CampaignBaseCosts = map[dbm.CampaignType]float64{
	dbm.CampaignTypeVideo:  10,
	dbm.CampaignTypeImage:  5,
	dbm.CampaignTypeScript: 3,
}

var qualityMultipliers = map[string]float64{
	"high":    1.5,
	"premium": 2,
}

var resolutionMultipliers = map[string]float64{
	"4k": 1.5,
	"8k": 2,
}

// EstimateCredits prices a campaign from its type and settings.
// An empty type has no generation work and costs nothing.
func EstimateCredits(campaignType dbm.CampaignType, settings map[string]interface{}) (int64, error) {
	if campaignType == "" {
		return 0, nil
	}
	base, ok := CampaignBaseCosts[campaignType]
	if !ok {
		return 0, fmt.Errorf("%w: %q", utils.ErrInvalidCampaignType, campaignType)
	}

	cost := base
	if m, ok := qualityMultipliers[strings.ToLower(settingString(settings, "quality"))]; ok {
		cost *= m
	}

	switch campaignType {
	case dbm.CampaignTypeVideo:
		cost *= durationMultiplier(settingNumber(settings, "duration"))
	case dbm.CampaignTypeImage:
		if m, ok := resolutionMultipliers[strings.ToLower(settingString(settings, "resolution"))]; ok {
			cost *= m
		}
	}

	return int64(math.Ceil(cost)), nil
}

// durationMultiplier: up to 30s ×1, 31-60s ×1.5, over 60s ×2.
func durationMultiplier(seconds float64) float64 {
	switch {
	case seconds > 60:
		return 2
	case seconds > 30:
		return 1.5
	default:
		return 1
	}
}

func settingString(settings map[string]interface{}, key string) string {
	if settings == nil {
		return ""
	}
	s, _ := settings[key].(string)
	return strings.TrimSpace(s)
}

// settingNumber accepts the shapes a JSON blob can decode into. Anything
// unparseable counts as zero.
func settingNumber(settings map[string]interface{}, key string) float64 {
	if settings == nil {
		return 0
	}
	switch v := settings[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(v), "s"), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
