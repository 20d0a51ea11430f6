package strategy

import (
	"sort"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"signal_engine/internal/models"
	"signal_engine/pkg/logger"
)

// Factory builds a strategy instance from its configuration.
type Factory func(cfg Config) (Strategy, error)

// Registry maps strategy identifiers to factories and caches constructed
// instances (one per identifier+configuration). It is an explicit instance
// owned by the process wiring, not a package-level global.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	instances map[string]Strategy // key: id + config fingerprint
	current   map[string]Strategy // latest instance per id
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		instances: make(map[string]Strategy),
		current:   make(map[string]Strategy),
	}
}

// Register binds an identifier to a factory. Re-registering an identifier or
// passing a nil factory is a wiring bug and fails.
func (r *Registry) Register(id string, f Factory) error {
	if id == "" {
		return errors.New("registry: empty strategy id")
	}
	if f == nil {
		return errors.Errorf("registry: nil factory for %q", id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[id]; exists {
		return errors.Errorf("registry: strategy %q already registered", id)
	}
	r.factories[id] = f
	return nil
}

// Strategy returns the cached instance for id+cfg, constructing it on first
// use. The same configuration always yields the same instance.
func (r *Registry) Strategy(id string, cfg Config) (Strategy, error) {
	key, err := instanceKey(id, cfg)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	inst, ok := r.instances[key]
	r.mu.RUnlock()
	if ok {
		// configuration may have flipped the enabled flag since construction
		inst.SetEnabled(cfg.Enabled)
		return inst, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if inst, ok := r.instances[key]; ok {
		inst.SetEnabled(cfg.Enabled)
		return inst, nil
	}
	f, ok := r.factories[id]
	if !ok {
		return nil, errors.Errorf("registry: strategy %q is not registered", id)
	}
	inst, err = f(cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "registry: construct %q", id)
	}
	r.instances[key] = inst
	r.current[id] = inst
	logger.Info("registry: constructed strategy %q", id)
	return inst, nil
}

// Has reports whether a factory is registered under id.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[id]
	return ok
}

// Lookup returns the latest cached instance for id; false when nothing has
// been constructed under that identifier.
func (r *Registry) Lookup(id string) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.current[id]
	return inst, ok
}

// SetEnabled hot-applies a configuration flip to the cached instance.
func (r *Registry) SetEnabled(id string, enabled bool) {
	r.mu.RLock()
	inst, ok := r.current[id]
	r.mu.RUnlock()
	if ok {
		inst.SetEnabled(enabled)
	}
}

// ActiveFor answers which strategies may act under the given regime:
// configuration-enabled AND regime-eligible. Order is deterministic by id.
func (r *Registry) ActiveFor(regime models.Regime) []Strategy {
	r.mu.RLock()
	ids := make([]string, 0, len(r.current))
	for id := range r.current {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)

	active := make([]Strategy, 0, len(ids))
	for _, id := range ids {
		r.mu.RLock()
		inst := r.current[id]
		r.mu.RUnlock()
		if !inst.Enabled() {
			continue
		}
		for _, e := range inst.EligibleRegimes() {
			if e == regime {
				active = append(active, inst)
				break
			}
		}
	}
	return active
}

// instanceKey fingerprints id+configuration, ignoring the enabled flag so a
// flip reuses the cached instance instead of rebuilding it.
func instanceKey(id string, cfg Config) (string, error) {
	cfg.Enabled = false
	raw, err := sonic.Marshal(cfg)
	if err != nil {
		return "", errors.Wrapf(err, "registry: fingerprint %q", id)
	}
	return id + "|" + string(raw), nil
}
