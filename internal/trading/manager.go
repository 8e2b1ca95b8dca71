package trading

import (
	"context"
	"sync"
	"time"

	"bybit_bot/internal/helper"
	"bybit_bot/internal/models"
	healthsvc "bybit_bot/internal/modules/health/service"
	"bybit_bot/internal/notify"
	"bybit_bot/pkg/logger"
)

// MarketData — источник рыночных данных сигнального цикла и монитора.
type MarketData interface {
	DerivativePrice(ctx context.Context, symbol string) (float64, error)
	RecentCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error)
}

// StateStore — durable-снапшот торгового состояния.
type StateStore interface {
	SaveTradingState(ctx context.Context, userID int64, st *models.UserTradingState) error
	TradingStates(ctx context.Context) (map[int64]*models.UserTradingState, error)
}

type Config struct {
	Symbol          string // деривативный символ, напр. ETHUSDT
	KlineInterval   string // интервал свечей в нотации биржи, напр. "15"
	SignalInterval  time.Duration
	SignalOffset    time.Duration
	MonitorInterval time.Duration
}

// userState — состояние торговли одного юзера. Все мутации — только под
// st.mu, на всю последовательность read-modify-persist-notify. Состояния
// разных юзеров независимы и общий лок не делят.
type userState struct {
	mu sync.Mutex

	running  bool
	order    *models.PendingOrder
	position *models.Position

	sessionCtx    context.Context
	cancelLoop    context.CancelFunc
	cancelMonitor context.CancelFunc
	monitorOn     bool
}

// Manager управляет торговыми сессиями юзеров: сигнальный цикл на юзера,
// ленивый минутный монитор, персист после каждого перехода.
type Manager struct {
	market   MarketData
	store    StateStore
	notifier notify.Notifier
	health   *healthsvc.State
	cfg      Config

	mu    sync.Mutex // только мапа users, не состояние
	users map[int64]*userState
}

func NewManager(market MarketData, store StateStore, n notify.Notifier, health *healthsvc.State, cfg Config) *Manager {
	return &Manager{
		market:   market,
		store:    store,
		notifier: n,
		health:   health,
		cfg:      cfg,
		users:    make(map[int64]*userState),
	}
}

func (m *Manager) state(userID int64) *userState {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.users[userID]
	if !ok {
		st = &userState{}
		m.users[userID] = st
	}
	return st
}

// Start запускает сигнальный цикл юзера. Повторный вызов — вежливый no-op.
func (m *Manager) Start(ctx context.Context, userID int64) {
	st := m.state(userID)
	st.mu.Lock()
	if st.running {
		st.mu.Unlock()
		m.notifier.Send(ctx, userID, "Торговля уже запущена.")
		return
	}

	st.running = true
	sctx, cancel := context.WithCancel(context.Background())
	st.sessionCtx = sctx
	st.cancelLoop = cancel
	go m.runSignalLoop(sctx, userID, st)

	// ордер или позиция пережили прошлый стоп — монитору нужно поднять их сразу
	if st.order != nil || st.position != nil {
		m.ensureMonitorLocked(userID, st)
	}

	m.persistLocked(ctx, userID, st)
	st.mu.Unlock()

	m.notifier.Send(ctx, userID, "Торговля запущена")
}

// Stop гасит сигнальный цикл и монитор. Ордер/позиция переживают стоп:
// остаются в снапшоте и подхватываются следующим стартом или рестором.
func (m *Manager) Stop(ctx context.Context, userID int64) {
	st := m.state(userID)
	st.mu.Lock()
	if !st.running {
		st.mu.Unlock()
		m.notifier.Send(ctx, userID, "Торговля остановлена")
		return
	}

	if st.cancelLoop != nil {
		st.cancelLoop()
		st.cancelLoop = nil
	}
	if st.cancelMonitor != nil {
		st.cancelMonitor()
		st.cancelMonitor = nil
	}
	st.monitorOn = false
	st.running = false
	m.persistLocked(ctx, userID, st)
	st.mu.Unlock()

	m.notifier.Send(ctx, userID, "Торговля остановлена")
}

// ClosePosition — единственный путь закрытия. Неисполненный ордер
// отменяется; позиция просто очищается. Автозакрытия по SL/TP нет.
func (m *Manager) ClosePosition(ctx context.Context, userID int64) {
	st := m.state(userID)
	st.mu.Lock()

	if st.order != nil && !st.order.Executed {
		st.order = nil
		m.persistLocked(ctx, userID, st)
		st.mu.Unlock()
		m.notifier.Send(ctx, userID, "Лимитный ордер отменен и не был исполнен")
		return
	}
	if st.position != nil {
		side := st.position.Side
		st.position = nil
		m.persistLocked(ctx, userID, st)
		st.mu.Unlock()
		healthsvc.PositionsClosed.Inc()
		m.notifier.SendF(ctx, userID, "Позиция закрыта: %s", side)
		return
	}

	st.mu.Unlock()
	m.notifier.Send(ctx, userID, "Сделок нет")
}

// Status — read-only отчёт по сессии.
func (m *Manager) Status(ctx context.Context, userID int64) {
	st := m.state(userID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if !st.running {
		m.notifier.Send(ctx, userID, "Торговля остановлена")
		return
	}
	if st.position != nil {
		p := st.position
		m.notifier.SendF(ctx, userID,
			"Торговля запущена,\n%s позиция с параметрами:\nТВХ: %s\nStop-loss: %s\nTake-profit: %s",
			p.Side, helper.FormatPrice(p.Entry), helper.FormatPrice(p.StopLoss), helper.FormatPrice(p.TakeProfit))
		return
	}
	if st.order != nil {
		o := st.order
		m.notifier.SendF(ctx, userID,
			"Торговля запущена,\nВыставлен лимитный ордер на %s позицию с параметрами:\nТВХ: %s\nStop-loss: %s\nTake-profit: %s",
			o.Side, helper.FormatPrice(o.Entry), helper.FormatPrice(o.StopLoss), helper.FormatPrice(o.TakeProfit))
		return
	}
	m.notifier.Send(ctx, userID, "Торговля запущена, сделок нет")
}

// handleSignal решает лимит-или-рынок. ЛОНГ: рынок ещё не дошёл до ТВХ
// сверху — лимитный ордер; иначе вход по рынку по текущей цене. ШОРТ
// зеркально. Открытая позиция глушит сигнал целиком.
func (m *Manager) handleSignal(ctx context.Context, userID int64, st *userState, sig *models.Signal, price float64) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if !st.running {
		return
	}
	if st.position != nil {
		// уже в позиции — без пирамидинга и без очереди сигналов
		return
	}

	healthsvc.SignalsTotal.WithLabelValues(string(sig.Side)).Inc()

	limit := (sig.Side == models.SideLong && sig.Entry < price) ||
		(sig.Side == models.SideShort && sig.Entry > price)

	if limit {
		st.order = &models.PendingOrder{
			Side:       sig.Side,
			Entry:      sig.Entry,
			StopLoss:   sig.StopLoss,
			TakeProfit: sig.TakeProfit,
		}
		m.persistLocked(ctx, userID, st)
		healthsvc.OrdersPlaced.Inc()
		m.notifier.SendF(ctx, userID,
			"Выставлен лимитный ордер на %s позицию с параметрами:\nТВХ: %s\nStop-loss: %s\nTake-profit: %s",
			sideRu(sig.Side), helper.FormatPrice(sig.Entry), helper.FormatPrice(sig.StopLoss), helper.FormatPrice(sig.TakeProfit))
	} else {
		st.position = &models.Position{
			Side:       sig.Side,
			Entry:      price, // вход по рынку, не по ТВХ сигнала
			StopLoss:   sig.StopLoss,
			TakeProfit: sig.TakeProfit,
		}
		m.persistLocked(ctx, userID, st)
		healthsvc.PositionsOpened.Inc()
		m.notifier.SendF(ctx, userID,
			"Открыта %s позиция:\nТВХ: %s\nStop-loss: %s\nTake-profit: %s",
			sideRu(sig.Side), helper.FormatPrice(price), helper.FormatPrice(sig.StopLoss), helper.FormatPrice(sig.TakeProfit))
	}

	m.ensureMonitorLocked(userID, st)
}

// ensureMonitorLocked лениво поднимает минутный монитор и держит его до
// конца сессии. Вызывается под st.mu.
func (m *Manager) ensureMonitorLocked(userID int64, st *userState) {
	if st.monitorOn {
		return
	}
	base := st.sessionCtx
	if base == nil {
		base = context.Background()
	}
	mctx, cancel := context.WithCancel(base)
	st.cancelMonitor = cancel
	st.monitorOn = true
	go m.runMonitor(mctx, userID, st)
}

// persistLocked пишет снапшот под st.mu. Ошибка записи логируется и
// глотается: живой бот важнее дискового сбоя.
func (m *Manager) persistLocked(ctx context.Context, userID int64, st *userState) {
	snap := &models.UserTradingState{
		Running:  st.running,
		Order:    st.order,
		Position: st.position,
	}
	if err := m.store.SaveTradingState(ctx, userID, snap.Clone()); err != nil {
		logger.Error("trading: persist user=%d: %v", userID, err)
		healthsvc.PersistErrors.Inc()
	}
}

func sideRu(s models.Side) string {
	if s == models.SideLong {
		return "ЛОНГ"
	}
	return "ШОРТ"
}
