package watcher

import (
	"context"
	"strings"
	"time"

	"bybit_bot/internal/helper"
	"bybit_bot/internal/models"
	healthsvc "bybit_bot/internal/modules/health/service"
	"bybit_bot/pkg/logger"
)

// run — цикл одного вотчера. Завершается ровно одним из трёх способов:
// уведомление о достигнутой цели, отмена ctx, либо немедленное срабатывание
// при baseline == target (без единого опроса).
func (r *Registry) run(ctx context.Context, key Key, h *handle, target float64) {
	defer r.deregister(key, h)

	logger.Info("watcher: start user=%d symbol=%s target=%s",
		key.UserID, key.Symbol, helper.FormatPrice(target))

	baseline, err := r.source.SpotPrice(ctx, key.Symbol)
	hasBaseline := err == nil
	direction := models.DirectionUp
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		// деградация: базовой цены нет, считаем что цель выше
		logger.Error("watcher: baseline fetch user=%d symbol=%s: %v, default direction UP",
			key.UserID, key.Symbol, err)
	} else {
		switch {
		case target > baseline:
			direction = models.DirectionUp
		case target < baseline:
			direction = models.DirectionDown
		default:
			// цель равна текущей цене — уведомляем сразу, цикл не нужен
			r.fire(ctx, key, direction, baseline)
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: cancelled user=%d symbol=%s", key.UserID, key.Symbol)
			return
		case <-time.After(r.interval):
		}

		price, err := r.source.SpotPrice(ctx, key.Symbol)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("watcher: fetch user=%d symbol=%s: %v", key.UserID, key.Symbol, err)
			continue
		}

		// пересечение должно быть монотонным: не просто достигли порога,
		// а ушли от базовой цены в сторону цели
		if direction == models.DirectionUp {
			if price >= target && (!hasBaseline || price > baseline) {
				r.fire(ctx, key, direction, price)
				return
			}
		} else {
			if price <= target && price < baseline {
				r.fire(ctx, key, direction, price)
				return
			}
		}
	}
}

// fire доставляет единственное уведомление и сразу чистит цель в сторе.
func (r *Registry) fire(ctx context.Context, key Key, direction models.Direction, price float64) {
	if ctx.Err() != nil {
		// отмена успела раньше — уведомления быть не должно
		return
	}

	coin := strings.TrimSuffix(key.Symbol, "USDT")
	if direction == models.DirectionUp {
		r.notifier.SendF(ctx, key.UserID, "🚀 Цена %s достигла цели: %s!", coin, helper.FormatPrice(price))
	} else {
		r.notifier.SendF(ctx, key.UserID, "📉 Цена %s опустилась до цели: %s!", coin, helper.FormatPrice(price))
	}
	healthsvc.WatcherNotifications.Inc()

	if err := r.store.DeleteTarget(ctx, key.UserID, key.Symbol); err != nil {
		logger.Error("watcher: clear target user=%d symbol=%s: %v", key.UserID, key.Symbol, err)
		healthsvc.PersistErrors.Inc()
	}
}
