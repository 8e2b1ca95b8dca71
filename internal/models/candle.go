package models

import "time"

// Candle — закрытая 15m свеча с Bybit. Все цены в котируемой валюте.
// Биржа отдаёт список «свежие первыми», индекс 0 может быть ещё не закрыт —
// такую свечу нельзя использовать как закрытые данные.
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// Range — размах свечи high-low.
func (c Candle) Range() float64 {
	return c.High - c.Low
}
