package trading

import (
	"context"

	"bybit_bot/pkg/logger"
)

// RestoreAll поднимает сессии из снапшота после рестарта: для каждого
// юзера с running=true — ровно один сигнальный цикл, и монитор, если в
// снапшоте остался ордер или позиция. Состояние восстанавливается как
// было, ничего не переоткрывается и не перепосылается.
func (m *Manager) RestoreAll(ctx context.Context) error {
	states, err := m.store.TradingStates(ctx)
	if err != nil {
		return err
	}

	restored := 0
	for userID, snap := range states {
		if snap == nil || !snap.Running {
			continue
		}

		st := m.state(userID)
		st.mu.Lock()
		if st.running {
			// уже поднят (повторный вызов рестора) — не дублируем циклы
			st.mu.Unlock()
			continue
		}
		st.running = true
		st.order = snap.Order
		st.position = snap.Position

		sctx, cancel := context.WithCancel(context.Background())
		st.sessionCtx = sctx
		st.cancelLoop = cancel
		go m.runSignalLoop(sctx, userID, st)

		if st.order != nil || st.position != nil {
			m.ensureMonitorLocked(userID, st)
		}
		st.mu.Unlock()

		restored++
		logger.Info("trading: restored user=%d order=%v position=%v",
			userID, snap.Order != nil, snap.Position != nil)
	}

	if restored > 0 {
		logger.Info("trading: restored %d running session(s)", restored)
	}
	return nil
}
