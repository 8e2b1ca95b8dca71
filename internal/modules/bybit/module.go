package bybit

import (
	"context"

	"bybit_bot/internal/modules/bybit/service"
	"bybit_bot/internal/modules/config"
	healthsvc "bybit_bot/internal/modules/health/service"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("bybit",
		fx.Provide(
			service.NewClient,
		),
		// WS-кэш тикеров живёт весь процесс
		fx.Invoke(func(lc fx.Lifecycle, c *service.Client, cfg *config.Config, health *healthsvc.State, ctx context.Context) {
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					c.OnWSState(health.SetWSConnected)
					go c.StreamTickers(ctx, cfg.WatchSymbols)
					return nil
				},
			})
		}),
	)
}
