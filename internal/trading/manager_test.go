package trading

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"bybit_bot/internal/models"
	healthsvc "bybit_bot/internal/modules/health/service"
	"bybit_bot/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// ---- fakes ----

type fakeMarket struct {
	mu       sync.Mutex
	price    float64
	priceErr error
	candles  []models.Candle
}

func (f *fakeMarket) DerivativePrice(_ context.Context, _ string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.price, f.priceErr
}

func (f *fakeMarket) RecentCandles(_ context.Context, _, _ string, _ int) ([]models.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.candles, nil
}

type memStateStore struct {
	mu    sync.Mutex
	saved map[int64]*models.UserTradingState
}

func newMemStateStore() *memStateStore {
	return &memStateStore{saved: make(map[int64]*models.UserTradingState)}
}

func (s *memStateStore) SaveTradingState(_ context.Context, userID int64, st *models.UserTradingState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved[userID] = st.Clone()
	return nil
}

func (s *memStateStore) TradingStates(_ context.Context) (map[int64]*models.UserTradingState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]*models.UserTradingState, len(s.saved))
	for id, st := range s.saved {
		out[id] = st.Clone()
	}
	return out, nil
}

func (s *memStateStore) snapshot(userID int64) *models.UserTradingState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved[userID].Clone()
}

type recNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (n *recNotifier) Send(_ context.Context, _ int64, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

func (n *recNotifier) SendF(ctx context.Context, chatID int64, format string, args ...any) {
	n.Send(ctx, chatID, fmt.Sprintf(format, args...))
}

func (n *recNotifier) last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.msgs) == 0 {
		return ""
	}
	return n.msgs[len(n.msgs)-1]
}

func (n *recNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.msgs)
}

// интервалы в час, чтобы фоновые циклы в тестах не успевали тикнуть
func newTestManager(market *fakeMarket, store *memStateStore, n *recNotifier) *Manager {
	return NewManager(market, store, n, healthsvc.NewState(), Config{
		Symbol:          "ETHUSDT",
		KlineInterval:   "15",
		SignalInterval:  time.Hour,
		SignalOffset:    time.Second,
		MonitorInterval: time.Hour,
	})
}

// ---- tests ----

func TestStartIsIdempotent(t *testing.T) {
	n := &recNotifier{}
	m := newTestManager(&fakeMarket{}, newMemStateStore(), n)
	ctx := context.Background()

	m.Start(ctx, 1)
	assert.Equal(t, "Торговля запущена", n.last())

	m.Start(ctx, 1)
	assert.Equal(t, "Торговля уже запущена.", n.last())

	m.Stop(ctx, 1)
}

func TestStopPersistsButKeepsOrder(t *testing.T) {
	n := &recNotifier{}
	store := newMemStateStore()
	m := newTestManager(&fakeMarket{}, store, n)
	ctx := context.Background()

	m.Start(ctx, 1)
	sig := &models.Signal{Side: models.SideLong, Entry: 100, StopLoss: 90, TakeProfit: 110}
	m.handleSignal(ctx, 1, m.state(1), sig, 105) // рынок выше ТВХ — лимитник

	m.Stop(ctx, 1)
	assert.Equal(t, "Торговля остановлена", n.last())

	// ордер переживает стоп и остаётся в снапшоте
	snap := store.snapshot(1)
	require.NotNil(t, snap)
	assert.False(t, snap.Running)
	require.NotNil(t, snap.Order)
	assert.Equal(t, 100.0, snap.Order.Entry)
}

func TestStartRelaunchesMonitorForKeptOrder(t *testing.T) {
	n := &recNotifier{}
	store := newMemStateStore()
	m := newTestManager(&fakeMarket{}, store, n)
	ctx := context.Background()

	m.Start(ctx, 1)
	st := m.state(1)
	sig := &models.Signal{Side: models.SideLong, Entry: 100, StopLoss: 90, TakeProfit: 110}
	m.handleSignal(ctx, 1, st, sig, 105) // лимитник, монитор поднят

	m.Stop(ctx, 1)
	st.mu.Lock()
	assert.False(t, st.monitorOn)
	require.NotNil(t, st.order)
	st.mu.Unlock()

	// рестарт сессии: выживший ордер снова под монитором, иначе он
	// не сможет ни исполниться, ни отмениться
	m.Start(ctx, 1)
	st.mu.Lock()
	assert.True(t, st.monitorOn)
	require.NotNil(t, st.order)
	st.mu.Unlock()

	m.Stop(ctx, 1)
}

func TestStartRelaunchesMonitorForKeptPosition(t *testing.T) {
	n := &recNotifier{}
	m := newTestManager(&fakeMarket{}, newMemStateStore(), n)
	ctx := context.Background()

	m.Start(ctx, 1)
	st := m.state(1)
	sig := &models.Signal{Side: models.SideLong, Entry: 100, StopLoss: 90, TakeProfit: 110}
	m.handleSignal(ctx, 1, st, sig, 98) // вход по рынку

	m.Stop(ctx, 1)
	m.Start(ctx, 1)

	st.mu.Lock()
	assert.True(t, st.monitorOn)
	require.NotNil(t, st.position)
	st.mu.Unlock()

	m.Stop(ctx, 1)
}

func TestHandleSignalPlacesLimitOrder(t *testing.T) {
	n := &recNotifier{}
	store := newMemStateStore()
	m := newTestManager(&fakeMarket{}, store, n)
	ctx := context.Background()

	m.Start(ctx, 1)
	st := m.state(1)

	// ЛОНГ, рынок 105 выше ТВХ 100 — ждём отката, лимитный ордер
	sig := &models.Signal{Side: models.SideLong, Entry: 100, StopLoss: 90, TakeProfit: 110}
	m.handleSignal(ctx, 1, st, sig, 105)

	st.mu.Lock()
	require.NotNil(t, st.order)
	assert.Nil(t, st.position)
	assert.Equal(t, 100.0, st.order.Entry)
	assert.False(t, st.order.Executed)
	st.mu.Unlock()

	assert.Contains(t, n.last(), "Выставлен лимитный ордер на ЛОНГ позицию")

	snap := store.snapshot(1)
	require.NotNil(t, snap.Order)
	assert.Nil(t, snap.Position)

	m.Stop(ctx, 1)
}

func TestHandleSignalOpensMarketPosition(t *testing.T) {
	n := &recNotifier{}
	store := newMemStateStore()
	m := newTestManager(&fakeMarket{}, store, n)
	ctx := context.Background()

	m.Start(ctx, 1)
	st := m.state(1)

	// ЛОНГ, рынок 98 уже на/ниже ТВХ 100 — вход по рынку по текущей цене
	sig := &models.Signal{Side: models.SideLong, Entry: 100, StopLoss: 90, TakeProfit: 110}
	m.handleSignal(ctx, 1, st, sig, 98)

	st.mu.Lock()
	assert.Nil(t, st.order)
	require.NotNil(t, st.position)
	assert.Equal(t, 98.0, st.position.Entry) // цена рынка, не ТВХ сигнала
	assert.Equal(t, 90.0, st.position.StopLoss)
	st.mu.Unlock()

	assert.Contains(t, n.last(), "Открыта ЛОНГ позиция")

	m.Stop(ctx, 1)
}

func TestHandleSignalShortRouting(t *testing.T) {
	n := &recNotifier{}
	m := newTestManager(&fakeMarket{}, newMemStateStore(), n)
	ctx := context.Background()

	m.Start(ctx, 1)
	st := m.state(1)

	// ШОРТ, рынок 85 ниже ТВХ 90 — лимитник, ждём подъёма к ТВХ
	sig := &models.Signal{Side: models.SideShort, Entry: 90, StopLoss: 100, TakeProfit: 80}
	m.handleSignal(ctx, 1, st, sig, 85)

	st.mu.Lock()
	require.NotNil(t, st.order)
	assert.Nil(t, st.position)
	st.mu.Unlock()
	assert.Contains(t, n.last(), "Выставлен лимитный ордер на ШОРТ позицию")

	m.Stop(ctx, 1)
}

func TestHandleSignalSuppressedByOpenPosition(t *testing.T) {
	n := &recNotifier{}
	m := newTestManager(&fakeMarket{}, newMemStateStore(), n)
	ctx := context.Background()

	m.Start(ctx, 1)
	st := m.state(1)
	st.mu.Lock()
	st.position = &models.Position{Side: models.SideLong, Entry: 100}
	st.mu.Unlock()

	before := n.count()
	sig := &models.Signal{Side: models.SideShort, Entry: 90, StopLoss: 100, TakeProfit: 80}
	m.handleSignal(ctx, 1, st, sig, 85)

	// ни сообщения, ни нового ордера
	assert.Equal(t, before, n.count())
	st.mu.Lock()
	assert.Nil(t, st.order)
	require.NotNil(t, st.position)
	assert.Equal(t, models.SideLong, st.position.Side)
	st.mu.Unlock()

	m.Stop(ctx, 1)
}

func TestHandleSignalIgnoredWhenStopped(t *testing.T) {
	n := &recNotifier{}
	m := newTestManager(&fakeMarket{}, newMemStateStore(), n)
	ctx := context.Background()

	st := m.state(1) // running=false
	before := n.count()
	sig := &models.Signal{Side: models.SideLong, Entry: 100, StopLoss: 90, TakeProfit: 110}
	m.handleSignal(ctx, 1, st, sig, 98)

	assert.Equal(t, before, n.count())
	st.mu.Lock()
	assert.Nil(t, st.order)
	assert.Nil(t, st.position)
	st.mu.Unlock()
}

func TestClosePositionCancelsPendingOrder(t *testing.T) {
	n := &recNotifier{}
	store := newMemStateStore()
	m := newTestManager(&fakeMarket{}, store, n)
	ctx := context.Background()

	st := m.state(1)
	st.mu.Lock()
	st.order = &models.PendingOrder{Side: models.SideLong, Entry: 100}
	st.mu.Unlock()

	m.ClosePosition(ctx, 1)
	assert.Equal(t, "Лимитный ордер отменен и не был исполнен", n.last())

	st.mu.Lock()
	assert.Nil(t, st.order)
	st.mu.Unlock()
	assert.Nil(t, store.snapshot(1).Order)
}

func TestClosePositionClosesPosition(t *testing.T) {
	n := &recNotifier{}
	m := newTestManager(&fakeMarket{}, newMemStateStore(), n)
	ctx := context.Background()

	st := m.state(1)
	st.mu.Lock()
	st.position = &models.Position{Side: models.SideShort, Entry: 90}
	st.mu.Unlock()

	m.ClosePosition(ctx, 1)
	assert.Equal(t, "Позиция закрыта: SHORT", n.last())

	st.mu.Lock()
	assert.Nil(t, st.position)
	st.mu.Unlock()
}

func TestClosePositionWithoutTrades(t *testing.T) {
	n := &recNotifier{}
	m := newTestManager(&fakeMarket{}, newMemStateStore(), n)

	m.ClosePosition(context.Background(), 1)
	assert.Equal(t, "Сделок нет", n.last())
}

func TestStatusVariants(t *testing.T) {
	n := &recNotifier{}
	m := newTestManager(&fakeMarket{}, newMemStateStore(), n)
	ctx := context.Background()

	m.Status(ctx, 1)
	assert.Equal(t, "Торговля остановлена", n.last())

	m.Start(ctx, 1)
	m.Status(ctx, 1)
	assert.Equal(t, "Торговля запущена, сделок нет", n.last())

	st := m.state(1)
	st.mu.Lock()
	st.order = &models.PendingOrder{Side: models.SideLong, Entry: 100, StopLoss: 90, TakeProfit: 110}
	st.mu.Unlock()
	m.Status(ctx, 1)
	assert.Contains(t, n.last(), "Выставлен лимитный ордер на LONG позицию")
	assert.Contains(t, n.last(), "ТВХ: 100")

	st.mu.Lock()
	st.order = nil
	st.position = &models.Position{Side: models.SideLong, Entry: 100, StopLoss: 90, TakeProfit: 110}
	st.mu.Unlock()
	m.Status(ctx, 1)
	assert.Contains(t, n.last(), "LONG позиция с параметрами")

	m.Stop(ctx, 1)
}

func TestUsersAreIndependent(t *testing.T) {
	n := &recNotifier{}
	store := newMemStateStore()
	m := newTestManager(&fakeMarket{}, store, n)
	ctx := context.Background()

	m.Start(ctx, 1)
	m.Start(ctx, 2)
	m.Stop(ctx, 1)

	snap1 := store.snapshot(1)
	snap2 := store.snapshot(2)
	require.NotNil(t, snap1)
	require.NotNil(t, snap2)
	assert.False(t, snap1.Running)
	assert.True(t, snap2.Running)

	m.Stop(ctx, 2)
}
