package watcher

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"bybit_bot/pkg/logger"

	"github.com/pkg/errors"
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

// seqSource отдаёт цены по очереди, последняя «залипает». errFirst —
// ошибка на самом первом запросе (baseline).
type seqSource struct {
	mu       sync.Mutex
	prices   []float64
	idx      int
	errFirst bool
	calls    int
}

func (s *seqSource) SpotPrice(_ context.Context, _ string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.errFirst && s.calls == 1 {
		return 0, errors.New("exchange down")
	}
	p := s.prices[s.idx]
	if s.idx < len(s.prices)-1 {
		s.idx++
	}
	return p, nil
}

func (s *seqSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type memTargets struct {
	mu sync.Mutex
	m  map[int64]map[string]float64
}

func newMemTargets() *memTargets {
	return &memTargets{m: make(map[int64]map[string]float64)}
}

func (s *memTargets) SaveTarget(_ context.Context, userID int64, symbol string, price float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m[userID] == nil {
		s.m[userID] = make(map[string]float64)
	}
	s.m[userID][symbol] = price
	return nil
}

func (s *memTargets) Target(_ context.Context, userID int64, symbol string) (float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.m[userID][symbol]
	return p, ok, nil
}

func (s *memTargets) DeleteTarget(_ context.Context, userID int64, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m[userID], symbol)
	return nil
}

func (s *memTargets) Targets(_ context.Context) (map[int64]map[string]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]map[string]float64, len(s.m))
	for id, bySym := range s.m {
		cp := make(map[string]float64, len(bySym))
		for sym, p := range bySym {
			cp[sym] = p
		}
		out[id] = cp
	}
	return out, nil
}

func (s *memTargets) has(userID int64, symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.m[userID][symbol]
	return ok
}

// chanNotifier отдаёт сообщения в буферизованный канал.
type chanNotifier struct {
	ch chan string
}

func newChanNotifier() *chanNotifier {
	return &chanNotifier{ch: make(chan string, 16)}
}

func (n *chanNotifier) Send(_ context.Context, _ int64, msg string) {
	n.ch <- msg
}

func (n *chanNotifier) SendF(ctx context.Context, chatID int64, format string, args ...any) {
	n.Send(ctx, chatID, fmt.Sprintf(format, args...))
}

func (n *chanNotifier) waitMsg(t *testing.T) string {
	t.Helper()
	select {
	case msg := <-n.ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no notification within 2s")
		return ""
	}
}

func (n *chanNotifier) assertSilent(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case msg := <-n.ch:
		t.Fatalf("unexpected notification: %q", msg)
	case <-time.After(d):
	}
}

func (r *Registry) liveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.watchers)
}

// ---- tests ----

func TestFireImmediatelyWhenAtTarget(t *testing.T) {
	src := &seqSource{prices: []float64{100}}
	store := newMemTargets()
	n := newChanNotifier()
	r := NewRegistry(src, store, n, 5*time.Millisecond)

	r.SetTarget(context.Background(), 1, "BTCUSDT", 100)

	msg := n.waitMsg(t)
	assert.Contains(t, msg, "🚀 Цена BTC достигла цели")
	// ровно один запрос цены: цикл опроса не стартовал
	assert.Equal(t, 1, src.callCount())
	assert.False(t, store.has(1, "BTCUSDT"))

	assert.Eventually(t, func() bool { return r.liveCount() == 0 },
		time.Second, 5*time.Millisecond)
}

func TestFireOnUpwardCross(t *testing.T) {
	src := &seqSource{prices: []float64{100, 101, 103, 106}}
	store := newMemTargets()
	n := newChanNotifier()
	r := NewRegistry(src, store, n, 5*time.Millisecond)

	r.SetTarget(context.Background(), 1, "BTCUSDT", 105)

	msg := n.waitMsg(t)
	assert.Contains(t, msg, "🚀 Цена BTC достигла цели: 106!")
	// одно уведомление, цель стёрта из стора
	assert.False(t, store.has(1, "BTCUSDT"))
	n.assertSilent(t, 50*time.Millisecond)
}

func TestFireOnDownwardCross(t *testing.T) {
	src := &seqSource{prices: []float64{3600, 3550, 3490}}
	store := newMemTargets()
	n := newChanNotifier()
	r := NewRegistry(src, store, n, 5*time.Millisecond)

	r.SetTarget(context.Background(), 2, "ETHUSDT", 3500)

	msg := n.waitMsg(t)
	assert.Contains(t, msg, "📉 Цена ETH опустилась до цели: 3490!")
	assert.False(t, store.has(2, "ETHUSDT"))
}

func TestCancelStopsPollingWithoutNotify(t *testing.T) {
	src := &seqSource{prices: []float64{100, 100, 100}}
	store := newMemTargets()
	n := newChanNotifier()
	r := NewRegistry(src, store, n, 5*time.Millisecond)

	r.SetTarget(context.Background(), 1, "BTCUSDT", 1_000_000)
	r.Cancel(1, "BTCUSDT")

	assert.Eventually(t, func() bool { return r.liveCount() == 0 },
		time.Second, 5*time.Millisecond)

	calls := src.callCount()
	n.assertSilent(t, 50*time.Millisecond)
	// после отмены опросы остановились
	assert.LessOrEqual(t, src.callCount(), calls+1)
}

func TestReplaceKeepsSingleWatcher(t *testing.T) {
	src := &seqSource{prices: []float64{100, 100, 106}}
	store := newMemTargets()
	n := newChanNotifier()
	r := NewRegistry(src, store, n, 5*time.Millisecond)
	ctx := context.Background()

	// первая цель недостижима, замена — достижима
	r.SetTarget(ctx, 1, "BTCUSDT", 1_000_000)
	r.SetTarget(ctx, 1, "BTCUSDT", 105)

	assert.Equal(t, 1, r.liveCount())

	msg := n.waitMsg(t)
	assert.Contains(t, msg, "достигла цели")
	// ровно одно уведомление: старый вотчер погашен до запуска нового
	n.assertSilent(t, 50*time.Millisecond)
}

func TestDegradedModeFiresWithoutBaseline(t *testing.T) {
	// baseline недоступен: направление по умолчанию UP, гард по baseline снят
	src := &seqSource{prices: []float64{106}, errFirst: true}
	store := newMemTargets()
	n := newChanNotifier()
	r := NewRegistry(src, store, n, 5*time.Millisecond)

	r.SetTarget(context.Background(), 1, "BTCUSDT", 105)

	msg := n.waitMsg(t)
	assert.Contains(t, msg, "🚀 Цена BTC достигла цели")
}

func TestUpwardCrossRequiresMoveAboveBaseline(t *testing.T) {
	// цена стоит на месте на уровне выше цели быть не может: цель выше
	// baseline, залипшая baseline-цена уведомления не даёт
	src := &seqSource{prices: []float64{100}}
	store := newMemTargets()
	n := newChanNotifier()
	r := NewRegistry(src, store, n, 5*time.Millisecond)

	r.SetTarget(context.Background(), 1, "BTCUSDT", 105)
	n.assertSilent(t, 60*time.Millisecond)

	r.Cancel(1, "BTCUSDT")
}

// symbolSource — отдельная последовательность цен на символ, последняя
// «залипает». Вотчеры разных символов не крадут цены друг у друга.
type symbolSource struct {
	mu  sync.Mutex
	seq map[string][]float64
	idx map[string]int
}

func newSymbolSource(seq map[string][]float64) *symbolSource {
	return &symbolSource{seq: seq, idx: make(map[string]int)}
}

func (s *symbolSource) SpotPrice(_ context.Context, symbol string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prices := s.seq[symbol]
	i := s.idx[symbol]
	p := prices[i]
	if i < len(prices)-1 {
		s.idx[symbol] = i + 1
	}
	return p, nil
}

func TestRestoreAllRelaunchesWatchers(t *testing.T) {
	src := newSymbolSource(map[string][]float64{
		"BTCUSDT": {100, 106},
		"ETHUSDT": {3000},
	})
	store := newMemTargets()
	n := newChanNotifier()
	ctx := context.Background()

	require.NoError(t, store.SaveTarget(ctx, 1, "BTCUSDT", 105))
	require.NoError(t, store.SaveTarget(ctx, 2, "ETHUSDT", 1_000_000))

	r := NewRegistry(src, store, n, 5*time.Millisecond)
	require.NoError(t, r.RestoreAll(ctx))

	// BTC пересекает цель вверх; ETH с недостижимой целью молчит
	msg := n.waitMsg(t)
	assert.Contains(t, msg, "🚀 Цена BTC достигла цели")
	assert.False(t, store.has(1, "BTCUSDT"))
	n.assertSilent(t, 50*time.Millisecond)

	// после срабатывания BTC живым остаётся ровно ETH-вотчер
	assert.Eventually(t, func() bool { return r.liveCount() == 1 },
		time.Second, 5*time.Millisecond)
	assert.True(t, store.has(2, "ETHUSDT"))

	r.Cancel(2, "ETHUSDT")
}
