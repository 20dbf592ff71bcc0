package store_fx

import (
	"go.uber.org/fx"
	"reelcraft/internal/repositories"
)

var Module = fx.Provide(repositories.NewStore)
