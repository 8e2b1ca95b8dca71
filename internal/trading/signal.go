package trading

import "bybit_bot/internal/models"

// Evaluate — чистая функция сигнала по двум последним закрытым свечам
// (breakout continuation). LONG когда later полностью сдвинулась вверх
// относительно earlier (и high и low выше), SHORT — зеркально вниз.
// Свеча внутри диапазона earlier сигнала не даёт.
//
// ТВХ — середина диапазона later; стоп и тейк отложены на полный диапазон
// от ТВХ.
func Evaluate(earlier, later models.Candle) *models.Signal {
	rng := later.Range()

	switch {
	case later.High > earlier.High && later.Low > earlier.Low:
		entry := later.Low + rng/2
		return &models.Signal{
			Side:       models.SideLong,
			Entry:      entry,
			StopLoss:   entry - rng,
			TakeProfit: entry + rng,
		}
	case later.High < earlier.High && later.Low < earlier.Low:
		entry := later.High - rng/2
		return &models.Signal{
			Side:       models.SideShort,
			Entry:      entry,
			StopLoss:   entry + rng,
			TakeProfit: entry - rng,
		}
	}
	return nil
}
