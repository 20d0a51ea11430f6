package strategy

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal_engine/internal/models"
)

// stubStrategy is a minimal contract implementation for registry tests.
type stubStrategy struct {
	id       string
	eligible []models.Regime
	enabled  atomic.Bool
}

func newStub(id string, enabled bool, eligible ...models.Regime) *stubStrategy {
	s := &stubStrategy{id: id, eligible: eligible}
	s.enabled.Store(enabled)
	return s
}

func (s *stubStrategy) ID() string                            { return s.id }
func (s *stubStrategy) Name() string                          { return s.id }
func (s *stubStrategy) Description() string                   { return "stub" }
func (s *stubStrategy) EligibleRegimes() []models.Regime      { return s.eligible }
func (s *stubStrategy) Universe() []string                    { return nil }
func (s *stubStrategy) Enabled() bool                         { return s.enabled.Load() }
func (s *stubStrategy) SetEnabled(v bool)                     { s.enabled.Store(v) }
func (s *stubStrategy) LastSignals() []models.Signal          { return nil }
func (s *stubStrategy) GenerateEntries(ctx context.Context, mc *models.MarketContext) ([]models.Signal, error) {
	return nil, nil
}
func (s *stubStrategy) EvaluateExit(ctx context.Context, pos models.Position, mc *models.MarketContext) (*models.Signal, error) {
	return nil, nil
}

func stubFactory(id string, eligible ...models.Regime) Factory {
	return func(cfg Config) (Strategy, error) {
		return newStub(id, cfg.Enabled, eligible...), nil
	}
}

func TestRegisterValidation(t *testing.T) {
	reg := NewRegistry()
	require.Error(t, reg.Register("", stubFactory("x")))
	require.Error(t, reg.Register("x", nil))
	require.NoError(t, reg.Register("x", stubFactory("x")))
	require.Error(t, reg.Register("x", stubFactory("x")), "duplicate registration")
}

func TestLookupUnknownIsAbsentNotError(t *testing.T) {
	reg := NewRegistry()
	_, ok := reg.Lookup("ghost")
	assert.False(t, ok)
}

func TestInstanceCacheReuse(t *testing.T) {
	reg := NewRegistry()
	built := 0
	require.NoError(t, reg.Register("x", func(cfg Config) (Strategy, error) {
		built++
		return newStub("x", cfg.Enabled, models.RegimeBullish), nil
	}))

	cfg := Config{Enabled: true, TopN: 5}
	a, err := reg.Strategy("x", cfg)
	require.NoError(t, err)
	b, err := reg.Strategy("x", cfg)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, built)

	// different configuration constructs a fresh instance
	cfg.TopN = 10
	c, err := reg.Strategy("x", cfg)
	require.NoError(t, err)
	assert.NotSame(t, a, c)
	assert.Equal(t, 2, built)

	// flipping only the enabled flag reuses the cache
	cfg.Enabled = false
	d, err := reg.Strategy("x", cfg)
	require.NoError(t, err)
	assert.Same(t, c, d)
	assert.False(t, d.Enabled(), "latest enabled flag applied to cached instance")
	assert.Equal(t, 2, built)
}

func TestActiveForIntersectsEnabledAndEligible(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("bull", stubFactory("bull", models.RegimeBullish)))
	require.NoError(t, reg.Register("bear", stubFactory("bear", models.RegimeBearish)))

	_, err := reg.Strategy("bull", Config{Enabled: true})
	require.NoError(t, err)
	_, err = reg.Strategy("bear", Config{Enabled: true})
	require.NoError(t, err)

	active := reg.ActiveFor(models.RegimeBullish)
	require.Len(t, active, 1)
	assert.Equal(t, "bull", active[0].ID())

	active = reg.ActiveFor(models.RegimeBearish)
	require.Len(t, active, 1)
	assert.Equal(t, "bear", active[0].ID())

	assert.Empty(t, reg.ActiveFor(models.RegimeSideways))
}

func TestDisabledNeverActive(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("bull", stubFactory("bull", models.RegimeBullish)))
	_, err := reg.Strategy("bull", Config{Enabled: false})
	require.NoError(t, err)

	for _, regime := range []models.Regime{models.RegimeBullish, models.RegimeBearish, models.RegimeSideways, models.RegimeVolatile} {
		assert.Empty(t, reg.ActiveFor(regime), "disabled strategy active under %s", regime)
	}

	// hot reload flips it on without reconstruction
	reg.SetEnabled("bull", true)
	active := reg.ActiveFor(models.RegimeBullish)
	require.Len(t, active, 1)
	assert.Equal(t, "bull", active[0].ID())
}
