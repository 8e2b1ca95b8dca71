package service

import (
	"context"
	"strconv"
	"time"

	"bybit_bot/pkg/logger"

	"github.com/bytedance/sonic"
)

// OnWSState регистрирует колбэк статуса соединения (для health).
// Вызывать до StreamTickers.
func (c *Client) OnWSState(fn func(connected bool)) {
	c.onWSState = fn
}

func (c *Client) setWSState(connected bool) {
	if c.onWSState != nil {
		c.onWSState(connected)
	}
}

// StreamTickers держит подписку на публичные тикеры и наполняет кэш
// последних цен. Реконнект с бэкоффом, пинг каждые 15 секунд.
// Блокируется до отмены ctx.
func (c *Client) StreamTickers(ctx context.Context, symbols []string) {
	retry := 0
	defer c.setWSState(false)
	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := c.wsDialer.DialContext(ctx, c.wsURL, nil)
		if err != nil {
			retry++
			logger.Error("bybit ws dial: %v (retry %d)", err, retry)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(300*min(retry, 10)) * time.Millisecond):
			}
			continue
		}
		retry = 0

		args := make([]string, 0, len(symbols))
		for _, s := range symbols {
			args = append(args, "tickers."+s)
		}
		_ = conn.WriteJSON(map[string]any{"op": "subscribe", "args": args})
		c.setWSState(true)

		stopPing := make(chan struct{})
		go func() {
			t := time.NewTicker(15 * time.Second)
			defer t.Stop()
			for {
				select {
				case <-stopPing:
					return
				case <-ctx.Done():
					return
				case <-t.C:
					_ = conn.WriteJSON(map[string]string{"op": "ping"})
				}
			}
		}()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				close(stopPing)
				_ = conn.Close()
				c.setWSState(false)
				break
			}
			var frame wsTickerFrame
			if err := sonic.Unmarshal(msg, &frame); err != nil || frame.Data.Symbol == "" {
				continue
			}
			px, err := strconv.ParseFloat(frame.Data.LastPrice, 64)
			if err != nil || px <= 0 {
				continue
			}
			c.mu.Lock()
			c.prices[frame.Data.Symbol] = cachedPrice{px: px, at: time.Now()}
			c.mu.Unlock()
		}
	}
}
