package models

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validLongParams() SignalParams {
	return SignalParams{
		Strategy:         "momentum",
		Symbol:           "AAPL",
		Direction:        DirectionLong,
		Confidence:       0.7,
		Entry:            Ptr(100),
		StopLoss:         Ptr(95),
		TakeProfit:       Ptr(110),
		Size:             Size{Value: 10, Unit: SizePercent},
		Regime:           RegimeBullish,
		RegimeConfidence: 0.8,
		Timeframe:        "1d",
	}
}

func TestNewSignalConfidenceBounds(t *testing.T) {
	for _, bad := range []float64{-0.01, 1.01, 5, -3} {
		p := validLongParams()
		p.Confidence = bad
		_, err := NewSignal(p)
		require.Error(t, err, "confidence %v", bad)
		assert.True(t, errors.Is(err, ErrInvalidSignal))
	}
	for _, ok := range []float64{0, 0.5, 1} {
		p := validLongParams()
		p.Confidence = ok
		_, err := NewSignal(p)
		require.NoError(t, err, "confidence %v", ok)
	}
}

func TestNewSignalRegimeConfidenceBounds(t *testing.T) {
	p := validLongParams()
	p.RegimeConfidence = 1.2
	_, err := NewSignal(p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidSignal))
}

func TestNewSignalDirectionalRequiresPrices(t *testing.T) {
	for _, dir := range []Direction{DirectionLong, DirectionShort} {
		p := validLongParams()
		p.Direction = dir
		p.Entry = nil
		_, err := NewSignal(p)
		require.Error(t, err, "%s without entry", dir)

		p = validLongParams()
		p.Direction = dir
		p.StopLoss = nil
		_, err = NewSignal(p)
		require.Error(t, err, "%s without stop-loss", dir)
	}

	// HOLD and CLOSE carry no price requirements
	for _, dir := range []Direction{DirectionHold, DirectionClose} {
		p := validLongParams()
		p.Direction = dir
		p.Entry = nil
		p.StopLoss = nil
		p.TakeProfit = nil
		_, err := NewSignal(p)
		require.NoError(t, err, "%s", dir)
	}
}

func TestNewSignalUnknownDirection(t *testing.T) {
	p := validLongParams()
	p.Direction = Direction("SIDEWAYS")
	_, err := NewSignal(p)
	require.Error(t, err)
}

func TestRiskReward(t *testing.T) {
	sig, err := NewSignal(validLongParams())
	require.NoError(t, err)

	rr, ok := sig.RiskReward()
	require.True(t, ok)
	assert.InDelta(t, 2.0, rr, 1e-12) // |110-100| / |100-95|

	// missing take-profit: undefined, not zero
	p := validLongParams()
	p.TakeProfit = nil
	sig, err = NewSignal(p)
	require.NoError(t, err)
	_, ok = sig.RiskReward()
	assert.False(t, ok)

	// entry == stop: zero risk is undefined
	p = validLongParams()
	p.StopLoss = Ptr(100)
	sig, err = NewSignal(p)
	require.NoError(t, err)
	_, ok = sig.RiskReward()
	assert.False(t, ok)
}

func TestIsExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	p := validLongParams()
	sig, err := NewSignal(p)
	require.NoError(t, err)
	assert.False(t, sig.IsExpired(now), "no expiry means never expired")

	exp := now.Add(-time.Minute)
	p.ExpiresAt = &exp
	sig, err = NewSignal(p)
	require.NoError(t, err)
	assert.True(t, sig.IsExpired(now))
	assert.False(t, sig.IsExpired(now.Add(-2*time.Minute)))
}

func TestSignalEncodeDecodeRoundTrip(t *testing.T) {
	exp := time.Date(2025, 6, 2, 9, 30, 0, 123456789, time.UTC)
	p := validLongParams()
	p.ExpiresAt = &exp
	p.Rationale = "momentum rank 1"
	p.Indicators = map[string]float64{"rsi_14": 55.2, "momentum_rank": 1}
	p.Metadata = map[string]string{"note": "test"}

	sig, err := NewSignal(p)
	require.NoError(t, err)

	raw, err := sig.Encode()
	require.NoError(t, err)

	got, err := DecodeSignal(raw)
	require.NoError(t, err)
	assert.Equal(t, sig.ID, got.ID)
	assert.Equal(t, sig.Strategy, got.Strategy)
	assert.Equal(t, sig.Symbol, got.Symbol)
	assert.Equal(t, sig.Direction, got.Direction)
	assert.Equal(t, sig.Confidence, got.Confidence)
	assert.Equal(t, sig.Entry, got.Entry)
	assert.Equal(t, sig.StopLoss, got.StopLoss)
	assert.Equal(t, sig.TakeProfit, got.TakeProfit)
	assert.Equal(t, sig.Size, got.Size)
	assert.Equal(t, sig.Regime, got.Regime)
	assert.Equal(t, sig.RegimeConfidence, got.RegimeConfidence)
	assert.Equal(t, sig.Timeframe, got.Timeframe)
	assert.Equal(t, sig.Rationale, got.Rationale)
	assert.Equal(t, sig.Indicators, got.Indicators)
	assert.Equal(t, sig.Metadata, got.Metadata)
	assert.True(t, sig.CreatedAt.Equal(got.CreatedAt), "created_at drifted: %v vs %v", sig.CreatedAt, got.CreatedAt)
	require.NotNil(t, got.ExpiresAt)
	assert.True(t, exp.Equal(*got.ExpiresAt))
}

func TestPositionHoldingDuration(t *testing.T) {
	opened := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	pos := Position{Symbol: "AAPL", OpenedAt: opened}
	assert.Equal(t, 48*time.Hour, pos.HoldingDuration(opened.Add(48*time.Hour)))
}
