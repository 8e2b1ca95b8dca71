package trading

import (
	"context"
	"testing"

	"bybit_bot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRestoreAllRelaunchesRunningSessions(t *testing.T) {
	n := &recNotifier{}
	store := newMemStateStore()
	ctx := context.Background()

	// снапшот до рестарта: 7 торгует с ордером, 8 остановлен, 9 в позиции
	require.NoError(t, store.SaveTradingState(ctx, 7, &models.UserTradingState{
		Running: true,
		Order:   &models.PendingOrder{Side: models.SideLong, Entry: 100, StopLoss: 90, TakeProfit: 110},
	}))
	require.NoError(t, store.SaveTradingState(ctx, 8, &models.UserTradingState{
		Running: false,
		Order:   &models.PendingOrder{Side: models.SideShort, Entry: 90},
	}))
	require.NoError(t, store.SaveTradingState(ctx, 9, &models.UserTradingState{
		Running:  true,
		Position: &models.Position{Side: models.SideShort, Entry: 90, StopLoss: 100, TakeProfit: 80},
	}))

	m := newTestManager(&fakeMarket{}, store, n)
	require.NoError(t, m.RestoreAll(ctx))

	// 7: бежит, ордер как был, монитор поднят
	st7 := m.state(7)
	st7.mu.Lock()
	assert.True(t, st7.running)
	require.NotNil(t, st7.order)
	assert.Equal(t, 100.0, st7.order.Entry)
	assert.True(t, st7.monitorOn)
	st7.mu.Unlock()

	// 8: остановленный не поднимается
	st8 := m.state(8)
	st8.mu.Lock()
	assert.False(t, st8.running)
	assert.Nil(t, st8.order)
	st8.mu.Unlock()

	// 9: позиция восстановлена, монитор есть (наблюдает, но не закрывает)
	st9 := m.state(9)
	st9.mu.Lock()
	assert.True(t, st9.running)
	require.NotNil(t, st9.position)
	assert.Equal(t, models.SideShort, st9.position.Side)
	assert.True(t, st9.monitorOn)
	st9.mu.Unlock()

	// рестор молчалив: никаких повторных уведомлений о старых сделках
	assert.Equal(t, 0, n.count())

	m.Stop(ctx, 7)
	m.Stop(ctx, 9)
}

func TestRestoreAllWithoutOpenTradesSkipsMonitor(t *testing.T) {
	n := &recNotifier{}
	store := newMemStateStore()
	ctx := context.Background()

	require.NoError(t, store.SaveTradingState(ctx, 1, &models.UserTradingState{Running: true}))

	m := newTestManager(&fakeMarket{}, store, n)
	require.NoError(t, m.RestoreAll(ctx))

	st := m.state(1)
	st.mu.Lock()
	assert.True(t, st.running)
	assert.False(t, st.monitorOn)
	st.mu.Unlock()

	m.Stop(ctx, 1)
}

func TestRestoreAllIsIdempotent(t *testing.T) {
	n := &recNotifier{}
	store := newMemStateStore()
	ctx := context.Background()

	require.NoError(t, store.SaveTradingState(ctx, 1, &models.UserTradingState{Running: true}))

	m := newTestManager(&fakeMarket{}, store, n)
	require.NoError(t, m.RestoreAll(ctx))

	// повторный рестор не дублирует циклы и не трогает живую сессию
	require.NoError(t, m.RestoreAll(ctx))

	st := m.state(1)
	st.mu.Lock()
	assert.True(t, st.running)
	st.mu.Unlock()
	assert.Equal(t, 0, n.count())

	m.Stop(ctx, 1)
}
