package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal_engine/internal/models"
)

func TestFirstExitShortCircuits(t *testing.T) {
	pos := models.Position{Symbol: "AAPL", OpenedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	mc := testContext(models.RegimeBearish, 0.6, nil, nil)

	calls := 0
	never := func(models.Position, *models.MarketContext) (string, bool) {
		calls++
		return "later check", true
	}

	reason, fired := FirstExit(pos, mc,
		AdverseRegimeExit([]models.Regime{models.RegimeBullish}),
		never,
	)
	require.True(t, fired)
	assert.Equal(t, "regime changed to bearish", reason)
	assert.Zero(t, calls, "first match wins, later checks never run")
}

func TestMaxHoldingExit(t *testing.T) {
	mc := testContext(models.RegimeBullish, 0.6, nil, nil)
	check := MaxHoldingExit(24 * time.Hour)

	fresh := models.Position{Symbol: "AAPL", OpenedAt: mc.At.Add(-time.Hour)}
	_, fired := check(fresh, mc)
	assert.False(t, fired)

	stale := models.Position{Symbol: "AAPL", OpenedAt: mc.At.Add(-48 * time.Hour)}
	reason, fired := check(stale, mc)
	require.True(t, fired)
	assert.Contains(t, reason, "max holding")
}

func TestCloseSignalShape(t *testing.T) {
	mc := testContext(models.RegimeBearish, 0.6, nil, nil)
	pos := models.Position{ID: "p9", Symbol: "AAPL", OpenedAt: mc.At.Add(-time.Hour)}

	sig, err := CloseSignal("momentum", pos, mc, "regime changed to bearish")
	require.NoError(t, err)
	assert.Equal(t, models.DirectionClose, sig.Direction)
	assert.Equal(t, ExitConfidence, sig.Confidence)
	assert.Equal(t, models.RegimeBearish, sig.Regime)
	assert.Equal(t, "p9", sig.Metadata["position_id"])
}
