package binaryx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSignDeterministic(t *testing.T) {
	a := Sign("secret", "nonce", "key", "123")
	b := Sign("secret", "nonce", "key", "123")
	if a != b {
		t.Errorf("Sign should be deterministic, got %q and %q", a, b)
	}
	c := Sign("secret", "nonce", "key", "124")
	if a == c {
		t.Errorf("Sign should vary with timestamp")
	}
}

func TestGetBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("api-key") != "k" {
			t.Errorf("missing api-key header")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"code": 0, "available": "100.5", "locked": "2.25",
		})
	}))
	defer srv.Close()

	c := NewREST("k", "s", srv.URL, time.Second)
	bal, err := c.GetBalance("USD")
	if err != nil {
		t.Fatal(err)
	}
	if bal.Available != 100.5 || bal.Locked != 2.25 {
		t.Errorf("got %+v", bal)
	}
}

func TestGetBalanceAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"code": 400, "msg": "bad token"})
	}))
	defer srv.Close()

	c := NewREST("k", "s", srv.URL, time.Second)
	_, err := c.GetBalance("USD")
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestPlaceOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req OrderReq
		json.NewDecoder(r.Body).Decode(&req)
		if req.Market != "btc" {
			t.Errorf("expected market btc, got %s", req.Market)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"code": 0, "orderId": "abc", "filledSize": "10", "fillPrice": "0.5",
		})
	}))
	defer srv.Close()

	c := NewREST("k", "s", srv.URL, time.Second)
	res, err := c.PlaceOrder(OrderReq{Market: "btc", WindowID: "w", Side: string(Buy), TradeSide: string(Open), Size: "10"})
	if err != nil {
		t.Fatal(err)
	}
	if res.OrderID != "abc" || res.FilledSize != 10 || res.FillPrice != 0.5 {
		t.Errorf("got %+v", res)
	}
}

func TestGetQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"code": 0, "spotPrice": "50000", "optionPrice": "0.6", "bidVol": "10", "askVol": "12",
		})
	}))
	defer srv.Close()

	c := NewREST("k", "s", srv.URL, time.Second)
	tick, err := c.GetQuote("btc", "btc-15m-2026-01-31-10:00")
	if err != nil {
		t.Fatal(err)
	}
	if tick.SpotPrice != 50000 || tick.OptionPrice != 0.6 {
		t.Errorf("got %+v", tick)
	}
}
