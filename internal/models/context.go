package models

import "time"

// SymbolData is the market snapshot for one instrument inside a cycle.
type SymbolData struct {
	Symbol     string
	Price      float64
	History    []float64 // daily closes, oldest first
	Indicators map[string]float64
}

// MarketContext is the per-cycle snapshot shared read-only by every strategy
// invoked in that cycle. Built once by the runner, never mutated afterwards.
type MarketContext struct {
	Regime        Regime
	Confidence    float64
	Probabilities map[Regime]float64
	Symbols       map[string]SymbolData
	Capital       float64
	Positions     []Position
	At            time.Time
}

// Symbol returns the snapshot for one instrument, false when the cycle has no
// data for it.
func (c *MarketContext) Symbol(symbol string) (SymbolData, bool) {
	d, ok := c.Symbols[symbol]
	return d, ok
}

// PositionFor finds the open position a strategy holds on a symbol.
func (c *MarketContext) PositionFor(strategyID, symbol string) (Position, bool) {
	for _, p := range c.Positions {
		if p.Strategy == strategyID && p.Symbol == symbol {
			return p, true
		}
	}
	return Position{}, false
}

// PositionCount is how many open positions the strategy owns.
func (c *MarketContext) PositionCount(strategyID string) int {
	n := 0
	for _, p := range c.Positions {
		if p.Strategy == strategyID {
			n++
		}
	}
	return n
}

// Indicator looks up a named indicator for a symbol.
func (c *MarketContext) Indicator(symbol, name string) (float64, bool) {
	d, ok := c.Symbols[symbol]
	if !ok {
		return 0, false
	}
	v, ok := d.Indicators[name]
	return v, ok
}
