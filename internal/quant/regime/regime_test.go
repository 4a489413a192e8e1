package regime

import "testing"

func TestClassifyVolatilityBands(t *testing.T) {
	th := DefaultThresholds()
	if c := Classify(th, 0.05, 0, th.MinDepth); c.Volatility != VolLow {
		t.Errorf("expected LOW, got %s", c.Volatility)
	}
	if c := Classify(th, 0.25, 0, th.MinDepth); c.Volatility != VolNormal {
		t.Errorf("expected NORMAL, got %s", c.Volatility)
	}
	if c := Classify(th, 0.6, 0, th.MinDepth); c.Volatility != VolHigh {
		t.Errorf("expected HIGH, got %s", c.Volatility)
	}
}

func TestClassifyTrend(t *testing.T) {
	th := DefaultThresholds()
	if c := Classify(th, 0.2, th.TrendThreshold+0.001, th.MinDepth); c.Trend != TrendTrending || c.Direction != DirUp {
		t.Errorf("expected TRENDING up, got %s %s", c.Trend, c.Direction)
	}
	if c := Classify(th, 0.2, -th.TrendThreshold-0.001, th.MinDepth); c.Trend != TrendTrending || c.Direction != DirDown {
		t.Errorf("expected TRENDING down, got %s %s", c.Trend, c.Direction)
	}
	if c := Classify(th, 0.2, 0, th.MinDepth); c.Trend != TrendRanging {
		t.Errorf("expected RANGING, got %s", c.Trend)
	}
}

func TestClassifyLiquidity(t *testing.T) {
	th := DefaultThresholds()
	if c := Classify(th, 0.2, 0, th.MinDepth-1); c.Liquidity != LiquidityThin {
		t.Errorf("expected THIN, got %s", c.Liquidity)
	}
	if c := Classify(th, 0.2, 0, th.MinDepth); c.Liquidity != LiquidityNormal {
		t.Errorf("expected NORMAL at the floor, got %s", c.Liquidity)
	}
}

func TestTagsReturnsAllThree(t *testing.T) {
	c := Classify(DefaultThresholds(), 0.2, 0, 2000)
	tags := c.Tags()
	if len(tags) != 3 {
		t.Fatalf("expected 3 tags, got %d", len(tags))
	}
}

func TestNormalizedSlopeGuardsZeroAndNaN(t *testing.T) {
	if s := NormalizedSlope(100, 0); s != 0 {
		t.Errorf("divide-by-zero should report 0, got %v", s)
	}
	if s := NormalizedSlope(110, 100); s <= 0 {
		t.Errorf("rising price should report positive slope, got %v", s)
	}
}
