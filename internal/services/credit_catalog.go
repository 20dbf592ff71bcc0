package services

import (
	"fmt"
	"sort"
	"strings"

	dbm "reelcraft/internal/models/db_models"
	"reelcraft/pkg/utils"
)

// Action keys accepted by the credit endpoints.
const (
	ActionScriptGeneration    = "SCRIPT_GENERATION"
	ActionImageGeneration     = "IMAGE_GENERATION"
	ActionVideoGeneration     = "VIDEO_GENERATION"
	ActionVoiceoverGeneration = "VOICEOVER_GENERATION"
	ActionSceneRegeneration   = "SCENE_REGENERATION"
	ActionVideoAssembly       = "VIDEO_ASSEMBLY"
	ActionAssetImageGenerate  = "ASSET_IMAGE_GENERATION"
)

// Actions recorded by the campaign lifecycle rather than requested by clients.
const (
	ActionCampaignStart      = "CAMPAIGN_START"
	ActionCampaignAdjustment = "CAMPAIGN_ADJUSTMENT"
)

var CreditCostTable = map[string]int64{
	ActionScriptGeneration:    3,
	ActionImageGeneration:     5,
	ActionVideoGeneration:     10,
	ActionVoiceoverGeneration: 2,
	ActionSceneRegeneration:   4,
	ActionVideoAssembly:       5,
	ActionAssetImageGenerate:  5,
}

// ActionCost resolves the cost of an action key. Keys are case-insensitive.
func ActionCost(action string) (string, int64, error) {
	key := strings.ToUpper(strings.TrimSpace(action))
	cost, ok := CreditCostTable[key]
	if !ok {
		return "", 0, fmt.Errorf("%w: %q", utils.ErrInvalidAction, action)
	}
	return key, cost, nil
}

type ActionCostEntry struct {
	Action  string `json:"action"`
	Credits int64  `json:"credits"`
}

func ListActionCosts() []ActionCostEntry {
	out := make([]ActionCostEntry, 0, len(CreditCostTable))
	for action, cost := range CreditCostTable {
		out = append(out, ActionCostEntry{Action: action, Credits: cost})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Action < out[j].Action })
	return out
}

type PlanTerms struct {
	Plan                dbm.SubscriptionPlan `json:"plan"`
	MonthlyCredits      int64                `json:"monthly_credits"`
	PricePerCreditMinor int64                `json:"price_per_credit_minor"` // USD cents
}

var SubscriptionPlans = map[dbm.SubscriptionPlan]PlanTerms{
	dbm.PlanFree:       {Plan: dbm.PlanFree, MonthlyCredits: 10, PricePerCreditMinor: 15},
	dbm.PlanStarter:    {Plan: dbm.PlanStarter, MonthlyCredits: 100, PricePerCreditMinor: 12},
	dbm.PlanPro:        {Plan: dbm.PlanPro, MonthlyCredits: 500, PricePerCreditMinor: 10},
	dbm.PlanEnterprise: {Plan: dbm.PlanEnterprise, MonthlyCredits: 2000, PricePerCreditMinor: 8},
}

func LookupPlan(plan string) (PlanTerms, error) {
	terms, ok := SubscriptionPlans[dbm.SubscriptionPlan(strings.ToUpper(strings.TrimSpace(plan)))]
	if !ok {
		return PlanTerms{}, fmt.Errorf("%w: %q", utils.ErrInvalidPlan, plan)
	}
	return terms, nil
}

func ListPlans() []PlanTerms {
	out := make([]PlanTerms, 0, len(SubscriptionPlans))
	for _, terms := range SubscriptionPlans {
		out = append(out, terms)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MonthlyCredits < out[j].MonthlyCredits })
	return out
}
