package service

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"bybit_bot/internal/models"
	"bybit_bot/internal/modules/config"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// ErrDataUnavailable — биржа недоступна или ответ не распарсился.
// Всегда восстановимая ошибка: вызывающий цикл пропускает тик и ретраит.
var ErrDataUnavailable = errors.New("market data unavailable")

// цена из WS-кэша годится, пока не старше этого
const tickerStaleAfter = 10 * time.Second

type cachedPrice struct {
	px float64
	at time.Time
}

type Client struct {
	baseURL   string
	wsURL     string
	apiKey    string
	apiSecret string

	http     *http.Client
	wsDialer *websocket.Dialer

	onWSState func(connected bool)

	mu     sync.RWMutex
	prices map[string]cachedPrice // symbol -> last ws ticker
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:   cfg.Bybit.BaseURL,
		wsURL:     cfg.Bybit.WSURL,
		apiKey:    cfg.Bybit.Key,
		apiSecret: cfg.Bybit.Secret,
		http:      &http.Client{Timeout: 10 * time.Second},
		wsDialer:  &websocket.Dialer{},
		prices:    make(map[string]cachedPrice),
	}
}

// SpotPrice — последняя цена спота. Сначала WS-кэш, при устаревании — REST.
func (c *Client) SpotPrice(ctx context.Context, symbol string) (float64, error) {
	c.mu.RLock()
	cp, ok := c.prices[symbol]
	c.mu.RUnlock()
	if ok && time.Since(cp.at) < tickerStaleAfter {
		return cp.px, nil
	}
	return c.lastPrice(ctx, "spot", symbol)
}

// DerivativePrice — последняя цена бессрочного контракта.
func (c *Client) DerivativePrice(ctx context.Context, symbol string) (float64, error) {
	return c.lastPrice(ctx, "linear", symbol)
}

func (c *Client) lastPrice(ctx context.Context, category, symbol string) (float64, error) {
	q := url.Values{}
	q.Set("category", category)
	q.Set("symbol", symbol)

	var out tickersResponse
	if err := c.getPublic(ctx, "/v5/market/tickers", q, &out); err != nil {
		return 0, err
	}
	if out.RetCode != 0 || len(out.Result.List) == 0 {
		return 0, errors.Wrapf(ErrDataUnavailable, "tickers %s: code=%d msg=%s", symbol, out.RetCode, out.RetMsg)
	}
	px, err := strconv.ParseFloat(out.Result.List[0].LastPrice, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrDataUnavailable, "tickers %s: bad lastPrice %q", symbol, out.Result.List[0].LastPrice)
	}
	return px, nil
}

// RecentCandles — limit последних свечей, свежие первыми.
// Индекс 0 может быть формирующейся свечой, это забота вызывающего.
func (c *Client) RecentCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	q := url.Values{}
	q.Set("category", "linear")
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))

	var out klineResponse
	if err := c.getPublic(ctx, "/v5/market/kline", q, &out); err != nil {
		return nil, err
	}
	if out.RetCode != 0 {
		return nil, errors.Wrapf(ErrDataUnavailable, "kline %s: code=%d msg=%s", symbol, out.RetCode, out.RetMsg)
	}

	res := make([]models.Candle, 0, len(out.Result.List))
	for _, row := range out.Result.List {
		if len(row) < 6 {
			return nil, errors.Wrapf(ErrDataUnavailable, "kline %s: short row", symbol)
		}
		ts, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(ErrDataUnavailable, "kline %s: bad start %q", symbol, row[0])
		}
		var vals [5]float64
		for i := 0; i < 5; i++ {
			v, err := strconv.ParseFloat(row[i+1], 64)
			if err != nil {
				return nil, errors.Wrapf(ErrDataUnavailable, "kline %s: bad field %q", symbol, row[i+1])
			}
			vals[i] = v
		}
		res = append(res, models.Candle{
			OpenTime: time.UnixMilli(ts),
			Open:     vals[0],
			High:     vals[1],
			Low:      vals[2],
			Close:    vals[3],
			Volume:   vals[4],
		})
	}
	return res, nil
}

func (c *Client) getPublic(ctx context.Context, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return errors.Wrapf(ErrDataUnavailable, "%s: %v", path, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Wrapf(ErrDataUnavailable, "%s: %v", path, err)
	}
	defer resp.Body.Close()

	rb, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return errors.Wrapf(ErrDataUnavailable, "%s: http %d: %s", path, resp.StatusCode, string(rb))
	}
	if err := sonic.Unmarshal(rb, out); err != nil {
		return errors.Wrapf(ErrDataUnavailable, "%s: decode: %v", path, err)
	}
	return nil
}
