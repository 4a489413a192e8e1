// Package spotlag detects when the priced instrument's quote is stale
// relative to the underlying spot feed — a lagging options book is one of
// the clearest signals this strategy family trades on — by comparing the
// relative spot move and option move over a sliding window of recent ticks.
package spotlag

import (
	"math"
	"time"
)

// Tick is one observation pairing a priced-instrument quote with the
// contemporaneous spot price.
type Tick struct {
	Time        time.Time
	SpotPrice   float64
	OptionPrice float64
}

// Analyzer accumulates ticks and reports whether the option price appears
// to be lagging the spot move.
type Analyzer struct {
	window []Tick
	maxLen int
}

// New builds an Analyzer retaining up to maxLen ticks.
func New(maxLen int) *Analyzer {
	if maxLen <= 0 {
		maxLen = 64
	}
	return &Analyzer{maxLen: maxLen}
}

// Add records a tick, dropping the oldest once maxLen is exceeded.
func (a *Analyzer) Add(t Tick) {
	a.window = append(a.window, t)
	if len(a.window) > a.maxLen {
		a.window = a.window[len(a.window)-a.maxLen:]
	}
}

// SpotMoveEvent flags a spot move the option price has not yet caught up
// to.
type SpotMoveEvent struct {
	DetectedAt      time.Time
	SpotMovePct     float64
	OptionMovePct   float64
	LagRatio        float64 // optionMove / spotMove; near 0 means full lag
	FullPricingTime time.Duration
	HalfPricingTime time.Duration
}

// Detect compares the most recent tick against the tick lookback samples
// earlier and reports a SpotMoveEvent when spot has moved more than
// minSpotMovePct while the option has moved by less than lagThreshold times
// that move. FullPricingTime and HalfPricingTime estimate, from the
// observed partial catch-up, how long the option needed to fully and
// half-price the move — linear extrapolation from the single observed
// lag ratio, which is what a tick-resolution (not continuous) feed permits.
func (a *Analyzer) Detect(lookback int, minSpotMovePct, lagThreshold float64) *SpotMoveEvent {
	n := len(a.window)
	if lookback <= 0 || n <= lookback {
		return nil
	}

	latest := a.window[n-1]
	base := a.window[n-1-lookback]

	if base.SpotPrice == 0 || base.OptionPrice == 0 {
		return nil
	}

	spotMove := (latest.SpotPrice - base.SpotPrice) / base.SpotPrice
	optionMove := (latest.OptionPrice - base.OptionPrice) / base.OptionPrice

	if math.Abs(spotMove) < minSpotMovePct {
		return nil
	}

	var lagRatio float64
	if spotMove != 0 {
		lagRatio = optionMove / spotMove
	}

	if lagRatio >= lagThreshold {
		return nil // option has already caught up enough; not a lag event
	}

	elapsed := latest.Time.Sub(base.Time)
	var fullPricing, halfPricing time.Duration
	if lagRatio > 0 && lagRatio < 1 {
		fullPricing = time.Duration(float64(elapsed) / lagRatio)
		halfPricing = time.Duration(float64(elapsed) / (2 * lagRatio))
	} else {
		fullPricing = elapsed
		halfPricing = elapsed / 2
	}

	return &SpotMoveEvent{
		DetectedAt:      latest.Time,
		SpotMovePct:     spotMove,
		OptionMovePct:   optionMove,
		LagRatio:        lagRatio,
		FullPricingTime: fullPricing,
		HalfPricingTime: halfPricing,
	}
}
