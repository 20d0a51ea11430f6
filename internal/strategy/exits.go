package strategy

import (
	"fmt"
	"time"

	"signal_engine/internal/models"
)

// ExitConfidence is the fixed confidence carried by every CLOSE signal.
const ExitConfidence = 0.90

// ExitCheck inspects one open position against the cycle context and reports
// a close reason when its condition fires.
type ExitCheck func(pos models.Position, mc *models.MarketContext) (reason string, fire bool)

// FirstExit runs checks in order and short-circuits on the first match.
func FirstExit(pos models.Position, mc *models.MarketContext, checks ...ExitCheck) (string, bool) {
	for _, check := range checks {
		if reason, fire := check(pos, mc); fire {
			return reason, true
		}
	}
	return "", false
}

// AdverseRegimeExit fires when the cycle regime left the strategy's eligible
// set. Positions opened under a friendly regime get closed when it turns.
func AdverseRegimeExit(eligible []models.Regime) ExitCheck {
	return func(pos models.Position, mc *models.MarketContext) (string, bool) {
		for _, r := range eligible {
			if mc.Regime == r {
				return "", false
			}
		}
		return fmt.Sprintf("regime changed to %s", mc.Regime), true
	}
}

// MaxHoldingExit fires once the position has been open longer than max.
func MaxHoldingExit(max time.Duration) ExitCheck {
	return func(pos models.Position, mc *models.MarketContext) (string, bool) {
		held := pos.HoldingDuration(mc.At)
		if held <= max {
			return "", false
		}
		return fmt.Sprintf("max holding period exceeded (%s > %s)", held.Round(time.Hour), max), true
	}
}

// CloseSignal builds the CLOSE signal for a fired exit check.
func CloseSignal(strategyID string, pos models.Position, mc *models.MarketContext, reason string) (models.Signal, error) {
	return models.NewSignal(models.SignalParams{
		Strategy:         strategyID,
		Symbol:           pos.Symbol,
		Direction:        models.DirectionClose,
		Confidence:       ExitConfidence,
		Regime:           mc.Regime,
		RegimeConfidence: mc.Confidence,
		Rationale:        reason,
		Metadata:         map[string]string{"position_id": pos.ID},
	})
}
