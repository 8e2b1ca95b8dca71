package models

// Side — направление сделки.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Signal — торговая идея по двум закрытым свечам. Живёт один цикл:
// не персистится, потребляется state-машиной синхронно.
type Signal struct {
	Side       Side
	Entry      float64
	StopLoss   float64
	TakeProfit float64
}

// Direction — направление ожидаемого пересечения цели вотчером.
type Direction string

const (
	DirectionUp   Direction = "UP"
	DirectionDown Direction = "DOWN"
)
