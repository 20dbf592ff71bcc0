package payment_service_fx

import (
	"go.uber.org/fx"
	"reelcraft/internal/api/controllers"
	"reelcraft/internal/config"
	"reelcraft/internal/repositories"
	"reelcraft/internal/services"
)

var Module = fx.Provide(
	providePaymentService, controllers.NewPaymentController,
)

func providePaymentService(store repositories.Store, credits services.CreditServiceInterface, cfg config.Config) (services.PaymentService, error) {
	return services.NewPaymentService(store, credits, services.StripeConfig{
		WebhookSecret: cfg.StripeWebhookSecret,
	})
}
