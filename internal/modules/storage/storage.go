package storage

import (
	"context"

	"bybit_bot/internal/models"
)

// Store — durable-снапшот состояния бота. Две независимые мапы:
// торговое состояние по юзеру и цели вотчера по (юзер, символ).
// Запись обязана быть атомарной с точки зрения читателя.
type Store interface {
	SaveTradingState(ctx context.Context, userID int64, st *models.UserTradingState) error
	TradingState(ctx context.Context, userID int64) (*models.UserTradingState, error)
	TradingStates(ctx context.Context) (map[int64]*models.UserTradingState, error)

	SaveTarget(ctx context.Context, userID int64, symbol string, price float64) error
	Target(ctx context.Context, userID int64, symbol string) (float64, bool, error)
	DeleteTarget(ctx context.Context, userID int64, symbol string) error
	Targets(ctx context.Context) (map[int64]map[string]float64, error)
}
