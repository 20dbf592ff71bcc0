package memcache_fx

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.uber.org/fx"
	mem "reelcraft/pkg/memcache"
)

var Module = fx.Provide(provideIdempotencyStore)

const purgeInterval = 10 * time.Minute

// provideIdempotencyStore runs a janitor for the lifetime of the app.
func provideIdempotencyStore(lc fx.Lifecycle) mem.IdempotencyStore {
	store := mem.NewResponseCache()
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				ticker := time.NewTicker(purgeInterval)
				defer ticker.Stop()
				for {
					select {
					case <-ticker.C:
						if n := store.Purge(); n > 0 {
							log.Debug().Int("removed", n).Msg("purged idempotency entries")
						}
					case <-done:
						return
					}
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			close(done)
			return nil
		},
	})
	return store
}
