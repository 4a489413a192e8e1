package binaryx

import "testing"

func TestParseTickValid(t *testing.T) {
	msg := []byte(`{"market":"btc","windowId":"btc-15m-2026-01-31-10:00","spotPrice":50000,"optionPrice":0.55,"bidVol":"10","askVol":"8"}`)
	tick, ok, err := parseTick(msg)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected ok=true")
	}
	if tick.SpotPrice != 50000 || tick.OptionPrice != 0.55 {
		t.Errorf("got %+v", tick)
	}
	if tick.BidVol != 10 || tick.AskVol != 8 {
		t.Errorf("got %+v", tick)
	}
}

func TestParseTickControlFrameIgnored(t *testing.T) {
	msg := []byte(`{"op":"subscribed","channels":["btc-15m"]}`)
	_, ok, err := parseTick(msg)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("control frame should not be treated as a tick")
	}
}

func TestParseTickMalformed(t *testing.T) {
	_, _, err := parseTick([]byte(`not json`))
	if err == nil {
		t.Fatal("expected error for malformed json")
	}
}

func TestParseTickBadNumericField(t *testing.T) {
	msg := []byte(`{"market":"btc","windowId":"w","spotPrice":{}}`)
	_, _, err := parseTick(msg)
	if err == nil {
		t.Fatal("expected error for non-numeric spotPrice")
	}
}

func TestToFloatVariants(t *testing.T) {
	cases := []struct {
		in   any
		want float64
	}{
		{float64(1.5), 1.5},
		{"2.5", 2.5},
		{nil, 0},
	}
	for _, c := range cases {
		got, err := toFloat(c.in)
		if err != nil {
			t.Fatalf("toFloat(%v): %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("toFloat(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestNewWSAliveInitiallyFalse(t *testing.T) {
	ws := NewWS("ws://example.invalid")
	if ws.Alive() {
		t.Error("a freshly constructed WS should not report alive")
	}
}
