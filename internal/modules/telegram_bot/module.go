package telegram_bot

import (
	"context"

	"bybit_bot/internal/modules/telegram_bot/service"
	"bybit_bot/internal/notify"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("telegram_bot",
		fx.Provide(
			service.NewClient,
			func(c *service.Client) notify.Notifier { return c },
			service.NewTelegram,
		),
		fx.Invoke(func(lc fx.Lifecycle, t *service.Telegram, ctx context.Context) {
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					return t.Start(ctx)
				},
				OnStop: func(_ context.Context) error {
					t.Stop()
					return nil
				},
			})
		}),
	)
}
