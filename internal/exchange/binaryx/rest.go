package binaryx

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client is the REST surface onto the exchange: balance lookup and order
// placement, built with the same connection-pooled resty.Client
// internal/exchange/bitunix.NewREST configures.
type Client struct {
	key, secret, base string
	rest              *resty.Client
}

// NewREST builds a Client against base, authenticating with key/secret.
func NewREST(key, secret, base string, timeout time.Duration) *Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	r := resty.New()
	r.SetTransport(transport)
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(5 * time.Second)
	}
	r.SetRetryCount(3)
	r.SetRetryWaitTime(1 * time.Second)
	r.SetRetryMaxWaitTime(5 * time.Second)

	return &Client{key: key, secret: secret, base: base, rest: r}
}

func (c *Client) authHeaders(req *resty.Request) *resty.Request {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	nonce := ts
	sign := Sign(c.secret, nonce, c.key, ts)
	return req.
		SetHeader("api-key", c.key).
		SetHeader("nonce", nonce).
		SetHeader("timestamp", ts).
		SetHeader("sign", sign)
}

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// GetBalance returns the account's available/locked balance for tokenID.
func (c *Client) GetBalance(tokenID string) (Balance, error) {
	var resp struct {
		apiError
		Available float64 `json:"available,string"`
		Locked    float64 `json:"locked,string"`
	}

	httpResp, err := c.authHeaders(c.rest.R()).
		SetQueryParam("tokenId", tokenID).
		SetResult(&resp).
		Get(c.base + "/api/v1/binary/account/balance")
	if err != nil {
		return Balance{}, fmt.Errorf("get balance: %w", err)
	}
	if httpResp.StatusCode() != 200 {
		return Balance{}, fmt.Errorf("get balance: status %d", httpResp.StatusCode())
	}
	if resp.Code != 0 {
		return Balance{}, fmt.Errorf("binaryx: %d %s", resp.Code, resp.Msg)
	}

	return Balance{TokenID: tokenID, Available: resp.Available, Locked: resp.Locked}, nil
}

// PlaceOrder submits a market order for one window's option contract.
func (c *Client) PlaceOrder(o OrderReq) (OrderResult, error) {
	var resp struct {
		apiError
		OrderID    string  `json:"orderId"`
		FilledSize float64 `json:"filledSize,string"`
		FillPrice  float64 `json:"fillPrice,string"`
	}

	httpResp, err := c.authHeaders(c.rest.R()).
		SetBody(o).
		SetResult(&resp).
		Post(c.base + "/api/v1/binary/trade/place_order")
	if err != nil {
		return OrderResult{}, fmt.Errorf("place order: %w", err)
	}
	if httpResp.StatusCode() != 200 {
		return OrderResult{}, fmt.Errorf("place order: status %d", httpResp.StatusCode())
	}
	if resp.Code != 0 {
		return OrderResult{}, fmt.Errorf("binaryx: %d %s", resp.Code, resp.Msg)
	}

	return OrderResult{OrderID: resp.OrderID, FilledSize: resp.FilledSize, FillPrice: resp.FillPrice}, nil
}

// GetQuote fetches the current spot and option price for windowID without
// placing an order, used by strategies that need a fresh read outside the
// tick stream (e.g. at startup before the WS feed has produced a sample).
func (c *Client) GetQuote(market, windowID string) (Tick, error) {
	var resp struct {
		apiError
		SpotPrice   float64 `json:"spotPrice,string"`
		OptionPrice float64 `json:"optionPrice,string"`
		BidVol      float64 `json:"bidVol,string"`
		AskVol      float64 `json:"askVol,string"`
	}

	httpResp, err := c.rest.R().
		SetQueryParams(map[string]string{"market": market, "windowId": windowID}).
		SetResult(&resp).
		Get(c.base + "/api/v1/binary/market/quote")
	if err != nil {
		return Tick{}, fmt.Errorf("get quote: %w", err)
	}
	if httpResp.StatusCode() != 200 {
		return Tick{}, fmt.Errorf("get quote: status %d", httpResp.StatusCode())
	}
	if resp.Code != 0 {
		return Tick{}, fmt.Errorf("binaryx: %d %s", resp.Code, resp.Msg)
	}

	return Tick{
		Market: market, WindowID: windowID,
		SpotPrice: resp.SpotPrice, OptionPrice: resp.OptionPrice,
		BidVol: resp.BidVol, AskVol: resp.AskVol, Ts: time.Now(),
	}, nil
}
