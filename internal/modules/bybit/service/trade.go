package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

// ErrOrderRejected — биржа отказала в выставлении/отмене ордера.
// Репортится юзеру, внутреннее состояние не меняется.
var ErrOrderRejected = errors.New("order rejected")

const recvWindow = "5000"

// NormalizeQty округляет qty вниз до шага step. ok=false если после
// округления размер меньше minSize.
func NormalizeQty(qty, minSize, step float64) (float64, bool) {
	if step <= 0 {
		return qty, qty >= minSize
	}
	steps := math.Floor(qty/step + 1e-9)
	rounded := steps * step
	return rounded, rounded >= minSize
}

// WalletBalance — totalEquity UNIFIED-аккаунта в USD.
func (c *Client) WalletBalance(ctx context.Context) (float64, error) {
	q := url.Values{}
	q.Set("accountType", "UNIFIED")

	var out walletBalanceResponse
	if err := c.signedRequest(ctx, http.MethodGet, "/v5/account/wallet-balance", q, nil, &out); err != nil {
		return 0, err
	}
	if out.RetCode != 0 || len(out.Result.List) == 0 {
		return 0, errors.Wrapf(ErrOrderRejected, "wallet-balance: code=%d msg=%s", out.RetCode, out.RetMsg)
	}
	eq, err := strconv.ParseFloat(out.Result.List[0].TotalEquity, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrOrderRejected, "wallet-balance: bad totalEquity %q", out.Result.List[0].TotalEquity)
	}
	return eq, nil
}

// CreateOrder выставляет ордер (Market при price=0, иначе Limit).
// side ожидается "Buy"/"Sell" в нотации Bybit.
func (c *Client) CreateOrder(ctx context.Context, symbol, side string, qty float64, price float64) (string, error) {
	body := map[string]any{
		"category":       "linear",
		"symbol":         symbol,
		"side":           side,
		"orderType":      "Market",
		"qty":            strconv.FormatFloat(qty, 'f', -1, 64),
		"timeInForce":    "GTC",
		"reduceOnly":     false,
		"closeOnTrigger": false,
	}
	if price > 0 {
		body["orderType"] = "Limit"
		body["price"] = strconv.FormatFloat(price, 'f', -1, 64)
	}

	var out orderResponse
	if err := c.signedRequest(ctx, http.MethodPost, "/v5/order/create", nil, body, &out); err != nil {
		return "", err
	}
	if out.RetCode != 0 {
		return "", errors.Wrapf(ErrOrderRejected, "order create: code=%d msg=%s", out.RetCode, out.RetMsg)
	}
	return out.Result.OrderID, nil
}

// CancelOrder отменяет активный ордер по orderId.
func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) error {
	body := map[string]any{
		"category": "linear",
		"symbol":   symbol,
		"orderId":  orderID,
	}

	var out orderResponse
	if err := c.signedRequest(ctx, http.MethodPost, "/v5/order/cancel", nil, body, &out); err != nil {
		return err
	}
	if out.RetCode != 0 {
		return errors.Wrapf(ErrOrderRejected, "order cancel: code=%d msg=%s", out.RetCode, out.RetMsg)
	}
	return nil
}

// signedRequest — приватный запрос с подписью v5:
// sign = hex(hmac_sha256(secret, ts + apiKey + recvWindow + query|body)).
func (c *Client) signedRequest(ctx context.Context, method, path string, q url.Values, body map[string]any, out any) error {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)

	var payload string
	var reqBody io.Reader
	if method == http.MethodGet {
		payload = q.Encode()
	} else {
		b, err := sonic.Marshal(body)
		if err != nil {
			return errors.Wrapf(ErrOrderRejected, "%s: encode: %v", path, err)
		}
		payload = string(b)
		reqBody = bytes.NewReader(b)
	}

	h := hmac.New(sha256.New, []byte(c.apiSecret))
	h.Write([]byte(ts + c.apiKey + recvWindow + payload))
	sign := hex.EncodeToString(h.Sum(nil))

	u := c.baseURL + path
	if method == http.MethodGet && len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return errors.Wrapf(ErrOrderRejected, "%s: %v", path, err)
	}
	req.Header.Set("X-BAPI-API-KEY", c.apiKey)
	req.Header.Set("X-BAPI-TIMESTAMP", ts)
	req.Header.Set("X-BAPI-RECV-WINDOW", recvWindow)
	req.Header.Set("X-BAPI-SIGN", sign)
	if method != http.MethodGet {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Wrapf(ErrOrderRejected, "%s: %v", path, err)
	}
	defer resp.Body.Close()

	rb, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return errors.Wrapf(ErrOrderRejected, "%s: http %d: %s", path, resp.StatusCode, string(rb))
	}
	if err := sonic.Unmarshal(rb, out); err != nil {
		return errors.Wrapf(ErrOrderRejected, "%s: decode: %v", path, err)
	}
	return nil
}
