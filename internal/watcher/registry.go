package watcher

import (
	"context"
	"sync"
	"time"

	"bybit_bot/internal/notify"
	"bybit_bot/pkg/logger"
)

// PriceSource — текущая спотовая цена символа.
type PriceSource interface {
	SpotPrice(ctx context.Context, symbol string) (float64, error)
}

// TargetStore — персистентная мапа целей (user, symbol) -> price.
type TargetStore interface {
	SaveTarget(ctx context.Context, userID int64, symbol string, price float64) error
	Target(ctx context.Context, userID int64, symbol string) (float64, bool, error)
	DeleteTarget(ctx context.Context, userID int64, symbol string) error
	Targets(ctx context.Context) (map[int64]map[string]float64, error)
}

type Key struct {
	UserID int64
	Symbol string
}

type handle struct {
	cancel context.CancelFunc
}

// Registry владеет вотчерами целей. Инвариант: не больше одного живого
// вотчера на (user, symbol) — новый старт под локом сначала гасит старый
// и только потом регистрирует замену, двухшаговой гонки нет.
type Registry struct {
	source   PriceSource
	store    TargetStore
	notifier notify.Notifier
	interval time.Duration

	mu       sync.Mutex
	watchers map[Key]*handle
}

func NewRegistry(source PriceSource, store TargetStore, n notify.Notifier, interval time.Duration) *Registry {
	return &Registry{
		source:   source,
		store:    store,
		notifier: n,
		interval: interval,
		watchers: make(map[Key]*handle),
	}
}

// SetTarget сохраняет цель и запускает (или перезапускает) вотчер.
// Ошибка записи не мешает вотчеру работать: снапшот best-effort.
func (r *Registry) SetTarget(ctx context.Context, userID int64, symbol string, target float64) {
	if err := r.store.SaveTarget(ctx, userID, symbol, target); err != nil {
		logger.Error("watcher: save target user=%d symbol=%s: %v", userID, symbol, err)
	}
	r.Watch(ctx, userID, symbol, target)
}

// Watch атомарно заменяет вотчер для (user, symbol): прежний гасится до
// регистрации нового, направление вычисляется заново от свежей цены.
func (r *Registry) Watch(ctx context.Context, userID int64, symbol string, target float64) {
	key := Key{UserID: userID, Symbol: symbol}

	r.mu.Lock()
	if prev, ok := r.watchers[key]; ok {
		prev.cancel()
	}
	wctx, cancel := context.WithCancel(ctx)
	h := &handle{cancel: cancel}
	r.watchers[key] = h
	r.mu.Unlock()

	go r.run(wctx, key, h, target)
}

// Cancel гасит вотчер, если он есть. Повторный вызов — no-op.
func (r *Registry) Cancel(userID int64, symbol string) {
	key := Key{UserID: userID, Symbol: symbol}

	r.mu.Lock()
	h, ok := r.watchers[key]
	if ok {
		delete(r.watchers, key)
	}
	r.mu.Unlock()

	if ok {
		h.cancel()
	}
}

// Target — текущая цель юзера по символу, если она есть.
func (r *Registry) Target(ctx context.Context, userID int64, symbol string) (float64, bool) {
	target, ok, err := r.store.Target(ctx, userID, symbol)
	if err != nil {
		logger.Error("watcher: read target user=%d symbol=%s: %v", userID, symbol, err)
		return 0, false
	}
	return target, ok
}

// ClearTarget — явное удаление цели юзером: гасим вотчер и чистим стор.
func (r *Registry) ClearTarget(ctx context.Context, userID int64, symbol string) {
	r.Cancel(userID, symbol)
	if err := r.store.DeleteTarget(ctx, userID, symbol); err != nil {
		logger.Error("watcher: delete target user=%d symbol=%s: %v", userID, symbol, err)
	}
}

// RestoreAll перезапускает вотчеры по персистентным целям после рестарта.
// Направление пересчитывается от текущей цены, повторного уведомления о
// уже сработавшей цели быть не может — сработавшая цель удалена из стора.
func (r *Registry) RestoreAll(ctx context.Context) error {
	targets, err := r.store.Targets(ctx)
	if err != nil {
		return err
	}
	for userID, bySymbol := range targets {
		for symbol, target := range bySymbol {
			r.Watch(ctx, userID, symbol, target)
		}
	}
	return nil
}

// deregister снимает хэндл, только если он всё ещё текущий: замена через
// Watch уже перезаписала слот своим хэндлом.
func (r *Registry) deregister(key Key, h *handle) {
	r.mu.Lock()
	if cur, ok := r.watchers[key]; ok && cur == h {
		delete(r.watchers, key)
	}
	r.mu.Unlock()
}
