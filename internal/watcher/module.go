package watcher

import (
	"context"

	"bybit_bot/internal/modules/bybit/service"
	"bybit_bot/internal/modules/config"
	"bybit_bot/internal/modules/storage"
	"bybit_bot/internal/notify"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("watcher",
		fx.Provide(
			func(c *service.Client, st storage.Store, n notify.Notifier, cfg *config.Config) *Registry {
				return NewRegistry(c, st, n, cfg.CheckInterval)
			},
		),
		// рестарт вотчеров по персистентным целям
		fx.Invoke(func(lc fx.Lifecycle, r *Registry, ctx context.Context) {
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					return r.RestoreAll(ctx)
				},
			})
		}),
	)
}
