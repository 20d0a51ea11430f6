package models

import "time"

// Position is the read-only view of an open position handed to strategies for
// exit evaluation. The position store owns the record; the engine never
// mutates it, it can only propose a CLOSE signal.
type Position struct {
	ID            string
	Symbol        string
	Direction     Direction // LONG or SHORT
	Entry         float64
	CurrentPrice  float64
	Size          float64
	UnrealizedPnL float64
	PnLPercent    float64
	OpenedAt      time.Time
	StopLoss      *float64
	TakeProfit    *float64
	Strategy      string // owning strategy identifier
}

// HoldingDuration is how long the position has been open.
func (p Position) HoldingDuration(now time.Time) time.Duration {
	return now.Sub(p.OpenedAt)
}
