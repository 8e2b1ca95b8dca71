package main

import (
	"context"
	"log"

	"bybit_bot/internal/modules/bybit"
	"bybit_bot/internal/modules/config"
	"bybit_bot/internal/modules/health"
	"bybit_bot/internal/modules/storage"
	telegram "bybit_bot/internal/modules/telegram_bot"
	"bybit_bot/internal/trading"
	"bybit_bot/internal/watcher"
	"bybit_bot/pkg/logger"
	"bybit_bot/pkg/tracing"

	"go.uber.org/fx"
)

const serviceName = "bybit_bot"

func main() {
	if err := logger.Init(); err != nil {
		log.Fatal(err)
	}
	logger.SetServiceName(serviceName)
	tracing.SetServiceName(serviceName)

	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
		),
		config.Module(),
		fx.Invoke(func(cfg *config.Config) error {
			if cfg.Jaeger.Host == "" {
				return nil
			}
			_, closeTracer, err := tracing.InitTracer(tracing.Config{
				Host: cfg.Jaeger.Host,
				Port: cfg.Jaeger.Port,
			})
			if err != nil {
				return err
			}
			_ = closeTracer // живёт до конца процесса
			return nil
		}),
		storage.Module(),
		bybit.Module(),
		health.Module(),
		telegram.Module(),
		watcher.Module(),
		trading.Module(),
	)
	if err := app.Start(context.Background()); err != nil {
		log.Fatal(err)
	}

	<-app.Done()

	if err := app.Stop(context.Background()); err != nil {
		log.Fatal(err)
	}
}
