package config_fx

import (
	"go.uber.org/fx"
	"reelcraft/internal/config"
	"reelcraft/pkg/logger"
	"reelcraft/pkg/utils"
)

var Module = fx.Options(
	fx.Provide(provideConfig, provideClock, provideTokenVerifier),
)

func provideConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	return cfg, nil
}

func provideClock() utils.Clock {
	return utils.SystemClock{}
}

func provideTokenVerifier(cfg config.Config) (*utils.TokenVerifier, error) {
	return utils.NewTokenVerifier(cfg.JWTSecret)
}
