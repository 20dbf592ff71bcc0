package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.uber.org/fx"
	"reelcraft/cmd/fx/campaign_fx"
	"reelcraft/cmd/fx/config_fx"
	"reelcraft/cmd/fx/credit_fx"
	"reelcraft/cmd/fx/db_fx"
	"reelcraft/cmd/fx/memcache_fx"
	"reelcraft/cmd/fx/payment_service_fx"
	"reelcraft/cmd/fx/store_fx"
	"reelcraft/internal/api/controllers"
	"reelcraft/internal/config"
	"reelcraft/internal/repositories"
	mem "reelcraft/pkg/memcache"
	"reelcraft/pkg/middleware"
	"reelcraft/pkg/utils"
)

func main() {
	app := fx.New(
		config_fx.Module,
		db_fx.Module,
		store_fx.Module,
		memcache_fx.Module,
		credit_fx.Module,
		campaign_fx.Module,
		payment_service_fx.Module,

		fx.Provide(ProvideRouter),
		fx.Invoke(StartServer),
	)

	app.Run()
}

func StartServer(lc fx.Lifecycle, engine *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info().Str("addr", srv.Addr).Msg("starting HTTP server")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal().Err(err).Msg("HTTP server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("stopping HTTP server")
			return srv.Shutdown(ctx)
		},
	})
}

type RouterParams struct {
	fx.In

	Config             config.Config
	Store              repositories.Store
	Verifier           *utils.TokenVerifier
	Idempotency        mem.IdempotencyStore
	CreditController   *controllers.CreditController
	CampaignController *controllers.CampaignController
	PaymentController  *controllers.PaymentController
}

func ProvideRouter(p RouterParams) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.TraceIDMiddleware())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORSMiddleware())

	RegisterRoutes(r, p)

	return r
}

func RegisterRoutes(r *gin.Engine, p RouterParams) {
	r.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := p.Store.Ping(ctx); err != nil {
			log.Error().Err(err).Msg("health check failed")
			utils.RespondError(c, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		utils.RespondSuccess(c, gin.H{"status": "ok"}, "")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/webhooks/stripe", p.PaymentController.HandleStripeWebhook)

	auth := middleware.JWTAuthMiddleware(p.Verifier)
	idempotent := middleware.Idempotency(p.Idempotency, p.Config.IdempotencyTTL)

	r.POST("/businesses", auth, middleware.RoleMiddleware("admin"), p.CreditController.ProvisionBusiness)

	credits := r.Group("/credits", auth)
	credits.GET("", p.CreditController.GetBalance)
	credits.GET("/history", p.CreditController.GetHistory)
	credits.POST("/check", p.CreditController.CheckCredits)
	credits.POST("/consume", idempotent, p.CreditController.ConsumeCredits)
	credits.GET("/analytics", p.CreditController.GetAnalytics)
	credits.GET("/costs", p.CreditController.ListCosts)
	credits.GET("/plans", p.CreditController.ListPlans)
	credits.POST("/quote", p.CreditController.QuotePurchase)
	credits.POST("/grant", middleware.RoleMiddleware("admin"), p.CreditController.GrantCredits)

	campaigns := r.Group("/campaigns", auth)
	campaigns.POST("", p.CampaignController.CreateCampaign)
	campaigns.GET("", p.CampaignController.ListCampaigns)
	campaigns.POST("/estimate", p.CampaignController.EstimateCampaign)
	campaigns.GET("/:id", p.CampaignController.GetCampaign)
	campaigns.PATCH("/:id", p.CampaignController.UpdateCampaign)
	campaigns.POST("/:id/start", idempotent, p.CampaignController.StartCampaign)
	campaigns.POST("/:id/complete", idempotent, p.CampaignController.CompleteCampaign)
	campaigns.POST("/:id/fail", idempotent, p.CampaignController.FailCampaign)
	campaigns.POST("/:id/cancel", idempotent, p.CampaignController.CancelCampaign)
}
