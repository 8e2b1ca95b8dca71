package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"bybit_bot/internal/models"
)

// Store — файловый JSON-снапшот. Кэш в памяти, ленивый load, запись через
// tmp+rename, чтобы упавший посреди записи процесс не оставил битый файл.
type Store struct {
	path string

	mu      sync.Mutex
	trading map[int64]*models.UserTradingState
	targets map[int64]map[string]float64
	loaded  bool
}

func NewStore(path string) *Store {
	return &Store{
		path:    path,
		trading: make(map[int64]*models.UserTradingState),
		targets: make(map[int64]map[string]float64),
	}
}

// ---- trading state ----

func (s *Store) SaveTradingState(_ context.Context, userID int64, st *models.UserTradingState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return err
	}
	s.trading[userID] = st.Clone()
	return s.saveLocked()
}

func (s *Store) TradingState(_ context.Context, userID int64) (*models.UserTradingState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return nil, err
	}
	return s.trading[userID].Clone(), nil
}

func (s *Store) TradingStates(_ context.Context) (map[int64]*models.UserTradingState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return nil, err
	}
	out := make(map[int64]*models.UserTradingState, len(s.trading))
	for id, st := range s.trading {
		out[id] = st.Clone()
	}
	return out, nil
}

// ---- watcher targets ----

func (s *Store) SaveTarget(_ context.Context, userID int64, symbol string, price float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return err
	}
	if s.targets[userID] == nil {
		s.targets[userID] = make(map[string]float64)
	}
	s.targets[userID][symbol] = price
	return s.saveLocked()
}

func (s *Store) Target(_ context.Context, userID int64, symbol string) (float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return 0, false, err
	}
	price, ok := s.targets[userID][symbol]
	return price, ok, nil
}

func (s *Store) DeleteTarget(_ context.Context, userID int64, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return err
	}
	if m, ok := s.targets[userID]; ok {
		delete(m, symbol)
		if len(m) == 0 {
			delete(s.targets, userID)
		}
	}
	return s.saveLocked()
}

func (s *Store) Targets(_ context.Context) (map[int64]map[string]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return nil, err
	}
	out := make(map[int64]map[string]float64, len(s.targets))
	for id, m := range s.targets {
		cp := make(map[string]float64, len(m))
		for sym, px := range m {
			cp[sym] = px
		}
		out[id] = cp
	}
	return out, nil
}

// ---- storage format ----

type snapshot struct {
	UpdatedAt time.Time                          `json:"updated_at"`
	Trading   map[int64]*models.UserTradingState `json:"trading"`
	Targets   map[int64]map[string]float64       `json:"targets"`
}

func (s *Store) loadLocked() error {
	if s.loaded {
		return nil
	}

	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.loaded = true
			return nil
		}
		return fmt.Errorf("read %s: %w", s.path, err)
	}

	var snap snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return fmt.Errorf("decode %s: %w", s.path, err)
	}

	s.trading = make(map[int64]*models.UserTradingState, len(snap.Trading))
	for id, st := range snap.Trading {
		s.trading[id] = st.Clone()
	}
	s.targets = make(map[int64]map[string]float64, len(snap.Targets))
	for id, m := range snap.Targets {
		cp := make(map[string]float64, len(m))
		for sym, px := range m {
			cp[sym] = px
		}
		s.targets[id] = cp
	}

	s.loaded = true
	return nil
}

func (s *Store) saveLocked() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	snap := snapshot{
		UpdatedAt: time.Now(),
		Trading:   s.trading,
		Targets:   s.targets,
	}

	b, err := json.MarshalIndent(&snap, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path) // атомарно
}
