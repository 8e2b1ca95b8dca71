package models

// PendingOrder — лимитный ордер симуляции, ждёт исполнения или отмены.
type PendingOrder struct {
	Side       Side    `json:"side"`
	Entry      float64 `json:"entry"`
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
	Executed   bool    `json:"executed"`
}

// Position — открытая симулированная позиция.
type Position struct {
	Side       Side    `json:"side"`
	Entry      float64 `json:"entry"`
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
}

// UserTradingState — персистируемое состояние торговли юзера.
// Инвариант: одновременно не-nil может быть только одно из {Order, Position}.
type UserTradingState struct {
	Running  bool          `json:"running"`
	Order    *PendingOrder `json:"order,omitempty"`
	Position *Position     `json:"position,omitempty"`
}

// Clone — копия, чтобы никто извне не мутировал shared ptr.
func (s *UserTradingState) Clone() *UserTradingState {
	if s == nil {
		return nil
	}
	out := &UserTradingState{Running: s.Running}
	if s.Order != nil {
		o := *s.Order
		out.Order = &o
	}
	if s.Position != nil {
		p := *s.Position
		out.Position = &p
	}
	return out
}
