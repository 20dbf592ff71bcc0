package credit_fx

import (
	"go.uber.org/fx"
	"reelcraft/internal/api/controllers"
	"reelcraft/internal/config"
	"reelcraft/internal/repositories"
	"reelcraft/internal/services"
	"reelcraft/pkg/utils"
)

var Module = fx.Provide(
	provideCreditService, provideCreditController,
)

func provideCreditService(store repositories.Store, clock utils.Clock, cfg config.Config) services.CreditServiceInterface {
	return services.NewCreditService(store, clock, cfg.LedgerMaxRetries, utils.LoadLocation(cfg.AnalyticsTimezone))
}

func provideCreditController(creditService services.CreditServiceInterface, cfg config.Config) *controllers.CreditController {
	return controllers.NewCreditController(creditService, utils.LoadLocation(cfg.AnalyticsTimezone).String())
}
