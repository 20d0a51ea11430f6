package models

import "time"

// Regime is the market condition label supplied by the external detector.
type Regime string

const (
	RegimeBullish  Regime = "bullish"
	RegimeBearish  Regime = "bearish"
	RegimeSideways Regime = "sideways"
	RegimeVolatile Regime = "volatile"
)

// RegimeFallback is used when the detector is unreachable: no strategy opens
// new positions under it, but exit evaluation still runs.
const RegimeFallback = RegimeVolatile

// RegimeSnapshot is the detector's answer for one cycle.
type RegimeSnapshot struct {
	Regime        Regime
	Confidence    float64
	Probabilities map[Regime]float64
	At            time.Time
}

// Fallback builds the conservative snapshot emitted when the regime fetch fails.
func Fallback(at time.Time) RegimeSnapshot {
	return RegimeSnapshot{
		Regime:        RegimeFallback,
		Confidence:    0,
		Probabilities: map[Regime]float64{RegimeFallback: 1},
		At:            at,
	}
}
