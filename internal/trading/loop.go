package trading

import (
	"context"
	"time"

	"bybit_bot/internal/helper"
	"bybit_bot/pkg/logger"

	"github.com/opentracing/opentracing-go"
)

// runSignalLoop — сигнальный цикл юзера. Сначала ждёт ближайшую границу
// интервала плюс офсет (чтобы биржа успела опубликовать закрывшуюся
// свечу), дальше тикает с фиксированным периодом до отмены.
func (m *Manager) runSignalLoop(ctx context.Context, userID int64, st *userState) {
	logger.Info("trading: signal loop start user=%d", userID)

	first := helper.NextBoundary(time.Now(), m.cfg.SignalInterval, m.cfg.SignalOffset)
	if !sleepUntil(ctx, first) {
		logger.Info("trading: signal loop cancelled user=%d", userID)
		return
	}

	for {
		m.signalCycle(ctx, userID, st)

		if !sleepFor(ctx, m.cfg.SignalInterval) {
			logger.Info("trading: signal loop cancelled user=%d", userID)
			return
		}
	}
}

// signalCycle — один тик: 3 свечи + текущая цена контракта, сигнал по двум
// последним закрытым свечам. Любая ошибка данных — пропуск тика, не крэш.
func (m *Manager) signalCycle(ctx context.Context, userID int64, st *userState) {
	candles, err := m.market.RecentCandles(ctx, m.cfg.Symbol, m.cfg.KlineInterval, 3)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Error("trading: fetch candles user=%d: %v", userID, err)
		return
	}
	price, err := m.market.DerivativePrice(ctx, m.cfg.Symbol)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Error("trading: fetch price user=%d: %v", userID, err)
		return
	}

	m.health.TouchSignalTick(time.Now())

	if len(candles) < 3 {
		return
	}
	// индекс 0 — возможно незакрытая свеча, всегда отбрасывается
	earlier := candles[2]
	later := candles[1]

	sig := Evaluate(earlier, later)
	if sig == nil {
		return
	}

	span, sctx := opentracing.StartSpanFromContext(ctx, "trading.handle_signal")
	span.SetTag("user_id", userID)
	span.SetTag("side", string(sig.Side))
	defer span.Finish()

	m.handleSignal(sctx, userID, st, sig, price)
}

// sleepUntil спит до t. false — отменили раньше.
func sleepUntil(ctx context.Context, t time.Time) bool {
	d := time.Until(t)
	if d <= 0 {
		return ctx.Err() == nil
	}
	return sleepFor(ctx, d)
}

func sleepFor(ctx context.Context, d time.Duration) bool {
	tmr := time.NewTimer(d)
	defer tmr.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-tmr.C:
		return true
	}
}
