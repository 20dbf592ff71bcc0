package campaign_fx

import (
	"go.uber.org/fx"
	"reelcraft/internal/api/controllers"
	"reelcraft/internal/config"
	"reelcraft/internal/repositories"
	"reelcraft/internal/services"
	"reelcraft/pkg/utils"
)

var Module = fx.Provide(
	provideCampaignService, controllers.NewCampaignController,
)

func provideCampaignService(store repositories.Store, clock utils.Clock, cfg config.Config) services.CampaignServiceInterface {
	return services.NewCampaignService(store, clock, cfg.LedgerMaxRetries)
}
