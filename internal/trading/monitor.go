package trading

import (
	"context"
	"time"

	"bybit_bot/internal/helper"
	"bybit_bot/internal/models"
	healthsvc "bybit_bot/internal/modules/health/service"
	"bybit_bot/pkg/logger"
)

// runMonitor — минутный цикл, который разрешает лимитный ордер в позицию
// либо в отмену. Открытые позиции монитор не трогает ни при какой цене:
// выход из позиции — только явное действие юзера.
func (m *Manager) runMonitor(ctx context.Context, userID int64, st *userState) {
	logger.Info("trading: monitor start user=%d", userID)

	t := time.NewTicker(m.cfg.MonitorInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("trading: monitor cancelled user=%d", userID)
			return
		case <-t.C:
		}

		st.mu.Lock()
		running := st.running
		st.mu.Unlock()
		if !running {
			return
		}

		price, err := m.market.DerivativePrice(ctx, m.cfg.Symbol)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("trading: monitor fetch user=%d: %v", userID, err)
			continue
		}

		m.resolveOrder(ctx, userID, st, price)
	}
}

// resolveOrder — единственные два исхода тика для неисполненного ордера:
// исполнить или отменить; иначе ордер ждёт следующего тика. Исполнение
// проверяется раньше отмены.
func (m *Manager) resolveOrder(ctx context.Context, userID int64, st *userState, price float64) {
	st.mu.Lock()
	defer st.mu.Unlock()

	order := st.order
	if order == nil || order.Executed {
		return
	}

	switch order.Side {
	case models.SideLong:
		if price <= order.Entry {
			m.executeOrderLocked(ctx, userID, st, order)
			return
		}
		if price > order.TakeProfit {
			m.cancelOrderLocked(ctx, userID, st, order)
			return
		}
	case models.SideShort:
		if price >= order.Entry {
			m.executeOrderLocked(ctx, userID, st, order)
			return
		}
		if price < order.TakeProfit {
			m.cancelOrderLocked(ctx, userID, st, order)
			return
		}
	}
}

// executeOrderLocked конвертирует ордер в позицию по ТВХ ордера.
func (m *Manager) executeOrderLocked(ctx context.Context, userID int64, st *userState, order *models.PendingOrder) {
	st.position = &models.Position{
		Side:       order.Side,
		Entry:      order.Entry,
		StopLoss:   order.StopLoss,
		TakeProfit: order.TakeProfit,
	}
	order.Executed = true
	st.order = nil
	m.persistLocked(ctx, userID, st)

	healthsvc.OrdersExecuted.Inc()
	healthsvc.PositionsOpened.Inc()
	m.notifier.SendF(ctx, userID,
		"Открыта %s позиция:\nТВХ: %s\nStop-loss: %s\nTake-profit: %s",
		sideRu(order.Side), helper.FormatPrice(order.Entry),
		helper.FormatPrice(order.StopLoss), helper.FormatPrice(order.TakeProfit))
}

func (m *Manager) cancelOrderLocked(ctx context.Context, userID int64, st *userState, order *models.PendingOrder) {
	st.order = nil
	m.persistLocked(ctx, userID, st)

	healthsvc.OrdersCancelled.Inc()
	m.notifier.SendF(ctx, userID, "Лимитный ордер на %s позицию отменен", sideRu(order.Side))
}
