package storage

import (
	"context"
	"fmt"

	"bybit_bot/internal/modules/config"
	"bybit_bot/internal/modules/storage/file"
	"bybit_bot/internal/modules/storage/pg"
	"bybit_bot/pkg/db"
	"bybit_bot/pkg/logger"

	"go.uber.org/fx"
)

// Module выбирает бэкенд: постгрес при заданном DSN, иначе файловый снапшот.
func Module() fx.Option {
	return fx.Module("storage",
		fx.Provide(
			func(ctx context.Context, cfg *config.Config) (Store, error) {
				if cfg.DB == "" {
					logger.Info("storage: file backend at %s", cfg.StorePath)
					return file.NewStore(cfg.StorePath), nil
				}

				poolMaster, err := db.NewPool(ctx, db.PoolConfig{
					DSN: cfg.DB,
				})
				if err != nil {
					return nil, fmt.Errorf("failed to create poolMaster: %w", err)
				}

				err = poolMaster.Ping(ctx)
				if err != nil {
					return nil, err
				}

				st := pg.NewStore(db.NewPgTxManager(poolMaster))
				if err := st.EnsureSchema(ctx); err != nil {
					return nil, err
				}
				logger.Info("storage: postgres backend")
				return st, nil
			},
		),
	)
}
