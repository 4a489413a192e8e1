package binaryx

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const defaultBufferSize = 1000

// WS streams ticks over a reconnecting websocket connection, the same
// exponential-backoff reconnect loop internal/exchange/bitunix.WS.Stream
// uses, retargeted to emit Tick instead of separate Trade/Depth events.
type WS struct {
	url            string
	isConnected    int32
	reconnectCount int32
}

// NewWS builds a WS client against url.
func NewWS(u string) *WS {
	return &WS{url: u}
}

// Alive reports whether the most recent connection attempt succeeded and
// has not yet been marked disconnected.
func (w *WS) Alive() bool {
	return atomic.LoadInt32(&w.isConnected) == 1
}

// ReconnectCount returns how many times Stream has had to reconnect.
func (w *WS) ReconnectCount() int32 {
	return atomic.LoadInt32(&w.reconnectCount)
}

// Stream subscribes to windowIDs and emits a Tick per update onto ticks
// until ctx is canceled, reconnecting with exponential backoff (capped at
// 30s) on any connection error.
func (w *WS) Stream(ctx context.Context, windowIDs []string, ticks chan<- Tick, errs chan<- error) error {
	if cap(ticks) == 0 {
		ticks = make(chan Tick, defaultBufferSize)
	}
	if cap(errs) == 0 {
		errs = make(chan error, defaultBufferSize)
	}

	backoff := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			atomic.StoreInt32(&w.isConnected, 0)
			return ctx.Err()
		default:
			if err := w.streamOnce(ctx, windowIDs, ticks); err != nil {
				atomic.StoreInt32(&w.isConnected, 0)
				log.Warn().Err(err).Dur("backoff", backoff).Msg("binaryx websocket disconnected, reconnecting")
				select {
				case errs <- fmt.Errorf("ws reconnect: %w", err):
				default:
				}

				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					atomic.StoreInt32(&w.isConnected, 0)
					return ctx.Err()
				}

				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
				atomic.AddInt32(&w.reconnectCount, 1)
				continue
			}
			backoff = time.Second
			atomic.StoreInt32(&w.reconnectCount, 0)
		}
	}
}

func (w *WS) streamOnce(ctx context.Context, windowIDs []string, ticks chan<- Tick) error {
	url := strings.TrimRight(w.url, "/")
	log.Info().Str("url", url).Int("windows", len(windowIDs)).Msg("establishing binaryx websocket connection")

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}
	defer conn.Close()

	sub := map[string]any{"op": "subscribe", "channels": windowIDs}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe failed: %w", err)
	}

	atomic.StoreInt32(&w.isConnected, 1)

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	var seq int64
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read failed: %w", err)
		}

		t, ok, err := parseTick(msg)
		if err != nil {
			log.Warn().Err(err).Msg("failed to parse binaryx tick message")
			continue
		}
		if !ok {
			continue
		}
		seq++
		t.Seq = seq

		select {
		case ticks <- t:
		default:
			log.Warn().Str("windowId", t.WindowID).Msg("tick channel full, dropping sample")
		}
	}
}

func parseTick(msg []byte) (Tick, bool, error) {
	var raw map[string]any
	if err := json.Unmarshal(msg, &raw); err != nil {
		return Tick{}, false, err
	}

	windowID, _ := raw["windowId"].(string)
	market, _ := raw["market"].(string)
	if windowID == "" || market == "" {
		return Tick{}, false, nil // control frame (e.g. a subscribe ack), not a tick
	}

	spot, err := toFloat(raw["spotPrice"])
	if err != nil {
		return Tick{}, false, fmt.Errorf("spotPrice: %w", err)
	}
	option, err := toFloat(raw["optionPrice"])
	if err != nil {
		return Tick{}, false, fmt.Errorf("optionPrice: %w", err)
	}
	bidVol, _ := toFloat(raw["bidVol"])
	askVol, _ := toFloat(raw["askVol"])

	return Tick{
		Market: market, WindowID: windowID,
		SpotPrice: spot, OptionPrice: option,
		BidVol: bidVol, AskVol: askVol, Ts: time.Now(),
	}, true, nil
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case string:
		return strconv.ParseFloat(x, 64)
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
