package volatility

import (
	"math"
	"testing"
	"time"
)

func TestRealizedRequiresTwoSamples(t *testing.T) {
	e := New(0, 0, 0)
	if v := e.Realized(0); v != 0 {
		t.Errorf("empty estimator should report 0, got %v", v)
	}
	e.Add(100)
	if v := e.Realized(0); v != 0 {
		t.Errorf("single sample should report 0, got %v", v)
	}
}

func TestRealizedPositiveForVaryingPrices(t *testing.T) {
	e := New(0, 100, 0)
	prices := []float64{100, 101, 99, 102, 98, 103, 97}
	for _, p := range prices {
		e.Add(p)
	}
	v := e.Realized(0)
	if v <= 0 {
		t.Errorf("expected positive realized vol, got %v", v)
	}
}

func TestRealizedAnnualizationScalesBySqrt(t *testing.T) {
	e := New(0, 100, 0)
	prices := []float64{100, 101, 99, 102, 98}
	for _, p := range prices {
		e.Add(p)
	}
	raw := e.Realized(0)
	annualized := e.Realized(252)
	if math.Abs(annualized-raw*math.Sqrt(252)) > 1e-9 {
		t.Errorf("annualized = %v, want %v", annualized, raw*math.Sqrt(252))
	}
}

func TestEWMAAccumulates(t *testing.T) {
	e := New(0, 100, 0.5)
	if v := e.EWMA(); v != 0 {
		t.Errorf("expected 0 before any return observed, got %v", v)
	}
	e.Add(100)
	e.Add(105)
	e.Add(95)
	if v := e.EWMA(); v <= 0 {
		t.Errorf("expected positive EWMA, got %v", v)
	}
}

func TestAddRejectsInvalidPrices(t *testing.T) {
	e := New(0, 10, 0)
	e.Add(math.NaN())
	e.Add(math.Inf(1))
	e.Add(-5)
	e.Add(0)
	if e.current != 0 {
		t.Errorf("invalid samples should not be recorded, current = %d", e.current)
	}
}

func TestParkinson(t *testing.T) {
	if v := Parkinson(110, 100); v <= 0 {
		t.Errorf("expected positive estimate, got %v", v)
	}
	if v := Parkinson(100, 100); v != 0 {
		t.Errorf("zero range should report 0, got %v", v)
	}
	if v := Parkinson(0, 0); v != 0 {
		t.Errorf("invalid inputs should report 0, got %v", v)
	}
	if v := Parkinson(90, 100); v != 0 {
		t.Errorf("high < low should report 0, got %v", v)
	}
}

func TestBestEstimateFallsBackToConstantWithNoData(t *testing.T) {
	e := New(time.Minute, 30, 0.94)
	if v := e.BestEstimate(0, 0, 0); v != noDataFallback {
		t.Errorf("expected fresh estimator to report noDataFallback, got %v", v)
	}
}

func TestBestEstimateBlendsEWMAOnceWarm(t *testing.T) {
	e := New(time.Minute, 30, 0.94)
	prices := []float64{100, 101, 99, 102, 98, 103, 97}
	for _, p := range prices {
		e.Add(p)
	}
	v := e.BestEstimate(0, 0, 0)
	if v <= 0 || v == noDataFallback {
		t.Errorf("expected a blended estimate once warmed up, got %v", v)
	}
}
