// Package volatility estimates realized and exponentially-weighted
// volatility over a sliding tick window, built the way
// a VWAP accumulator maintains its own sliding window: a ring buffer of
// samples guarded by a mutex, with an optional MetricsTracker for
// observability, rather than a channel-fed goroutine.
package volatility

import (
	"container/ring"
	"math"
	"sync"
	"time"
)

// MetricsTracker receives error, duration and sample-count observations
// from this package's own calculations.
type MetricsTracker interface {
	FeatureErrorsInc()
	FeatureCalcDuration(duration time.Duration)
	FeatureSampleCount(count int)
}

type sample struct {
	price float64
	t     time.Time
}

// Estimator tracks return samples over a sliding time window and computes
// realized and EWMA volatility on demand.
type Estimator struct {
	win        time.Duration
	ring       *ring.Ring
	mu         sync.RWMutex
	maxSize    int
	current    int
	ewma       float64
	ewmaInit   bool
	ewmaLambda float64
}

// New builds an Estimator over window win holding up to size samples.
// lambda is the EWMA decay factor (0,1); 0.94 is the conventional RiskMetrics
// choice and is used if lambda is out of range.
func New(win time.Duration, size int, lambda float64) *Estimator {
	if size <= 0 {
		size = 1
	}
	if win <= 0 {
		win = time.Minute
	}
	if lambda <= 0 || lambda >= 1 {
		lambda = 0.94
	}
	return &Estimator{win: win, ring: ring.New(size), maxSize: size, ewmaLambda: lambda}
}

// Add records a new price observation.
func (e *Estimator) Add(price float64) {
	e.AddWithMetrics(price, nil)
}

// AddWithMetrics records a new price observation, tracking invalid inputs
// via metrics if provided.
func (e *Estimator) AddWithMetrics(price float64, metrics MetricsTracker) {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		if metrics != nil {
			metrics.FeatureErrorsInc()
		}
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var prev *sample
	if v, ok := e.ring.Prev().Value.(*sample); ok && v != nil {
		prev = v
	}

	e.ring.Value = &sample{price: price, t: time.Now()}
	e.ring = e.ring.Next()
	if e.current < e.maxSize {
		e.current++
	}

	if prev != nil && prev.price > 0 {
		r := math.Log(price / prev.price)
		sq := r * r
		if !e.ewmaInit {
			e.ewma = sq
			e.ewmaInit = true
		} else {
			e.ewma = e.ewmaLambda*e.ewma + (1-e.ewmaLambda)*sq
		}
	}
}

// Realized computes the sample standard deviation of log returns within the
// sliding window, annualized by sqrt(periodsPerYear). Returns 0 if fewer
// than three samples (two returns) fall within the window.
func (e *Estimator) Realized(periodsPerYear float64) float64 {
	return e.RealizedWithMetrics(periodsPerYear, nil)
}

// RealizedWithMetrics is Realized with metrics tracking.
func (e *Estimator) RealizedWithMetrics(periodsPerYear float64, metrics MetricsTracker) float64 {
	start := time.Now()
	e.mu.RLock()
	defer e.mu.RUnlock()

	cutoff := time.Now().Add(-e.win)
	var prices []float64
	e.ring.Do(func(x any) {
		s, ok := x.(*sample)
		if !ok || s == nil {
			return
		}
		if s.t.After(cutoff) {
			prices = append(prices, s.price)
		}
	})

	if metrics != nil {
		metrics.FeatureSampleCount(len(prices))
		defer metrics.FeatureCalcDuration(time.Since(start))
	}

	if len(prices) < 2 {
		return 0
	}

	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] <= 0 {
			continue
		}
		returns = append(returns, math.Log(prices[i]/prices[i-1]))
	}
	if len(returns) < 2 {
		return 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns) - 1)
	if variance < 0 {
		if metrics != nil {
			metrics.FeatureErrorsInc()
		}
		return 0
	}

	sigma := math.Sqrt(variance)
	if periodsPerYear > 0 {
		sigma *= math.Sqrt(periodsPerYear)
	}
	return sigma
}

// EWMA returns the current exponentially-weighted volatility estimate
// (already a standard deviation, not a variance), or 0 if fewer than two
// samples have been observed.
func (e *Estimator) EWMA() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.ewmaInit {
		return 0
	}
	return math.Sqrt(e.ewma)
}

// Parkinson estimates volatility from a high/low range instead of a close
// series, useful when only OHLC bars (not a full tick stream) are
// available. factor is 1/(4*ln(2)).
func Parkinson(high, low float64) float64 {
	if high <= 0 || low <= 0 || high < low {
		return 0
	}
	const factor = 1.0 / (4.0 * 0.6931471805599453)
	r := math.Log(high / low)
	return math.Sqrt(factor * r * r)
}

// ewmaOnlyWeight is the weight given to EWMA when realized vol is available
// from neither the 30-sample window nor (by construction) this branch's
// caller: the remaining weight falls to whichever of realized/EWMA is
// actually populated.
const ewmaOnlyWeight = 0.8

// noDataFallback is the volatility BestEstimate reports when neither the
// realized, EWMA, nor Parkinson estimators have enough data yet — an
// estimator that just started returns a usable annualized figure instead of
// a misleadingly confident 0.
const noDataFallback = 0.8

// BestEstimate combines the 30-sample realized estimate, the running EWMA,
// and a Parkinson high/low estimate into one blended figure: realized and
// EWMA are averaged when both are available, and Parkinson is blended in at
// a fixed weight when a high/low pair is supplied (high/low both > 0). When
// realized vol can't be computed yet (fewer than three samples in the
// window), BestEstimate falls back to a straight EWMA reading weighted by
// ewmaOnlyWeight; when neither has any data yet, it returns noDataFallback.
func (e *Estimator) BestEstimate(periodsPerYear, high, low float64) float64 {
	realized := e.Realized(periodsPerYear)
	ewma := e.EWMA()

	var blended float64
	switch {
	case realized > 0 && ewma > 0:
		blended = 0.5*realized + 0.5*ewma
	case ewma > 0:
		blended = ewmaOnlyWeight*ewma + (1-ewmaOnlyWeight)*realized
	case realized > 0:
		blended = realized
	default:
		blended = noDataFallback
	}

	if high > 0 && low > 0 && high >= low {
		park := Parkinson(high, low)
		if periodsPerYear > 0 {
			park *= math.Sqrt(periodsPerYear)
		}
		blended = 0.7*blended + 0.3*park
	}

	return blended
}
