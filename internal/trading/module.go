package trading

import (
	"context"

	"bybit_bot/internal/modules/bybit/service"
	"bybit_bot/internal/modules/config"
	healthsvc "bybit_bot/internal/modules/health/service"
	"bybit_bot/internal/modules/storage"
	"bybit_bot/internal/notify"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("trading",
		fx.Provide(
			func(c *service.Client, st storage.Store, n notify.Notifier, health *healthsvc.State, cfg *config.Config) *Manager {
				return NewManager(c, st, n, health, Config{
					Symbol:          cfg.TradeSymbol,
					KlineInterval:   cfg.KlineInterval,
					SignalInterval:  cfg.SignalInterval,
					SignalOffset:    cfg.SignalOffset,
					MonitorInterval: cfg.MonitorInterval,
				})
			},
		),
		// рестор торговых сессий из снапшота
		fx.Invoke(func(lc fx.Lifecycle, m *Manager, health *healthsvc.State, ctx context.Context) {
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					if err := m.RestoreAll(ctx); err != nil {
						return err
					}
					health.SetReady(true)
					return nil
				},
			})
		}),
	)
}
