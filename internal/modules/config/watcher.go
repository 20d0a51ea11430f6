package config

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"signal_engine/internal/strategy"
	"signal_engine/pkg/logger"
)

// StrategiesWatcher loads the per-strategy configuration file and re-reads it
// on change, so enable flags and thresholds apply between cycles without a
// restart.
type StrategiesWatcher struct {
	v *viper.Viper

	mu       sync.Mutex
	onReload []func(map[string]strategy.Config)
}

type strategiesFile struct {
	Strategies map[string]strategy.Config `mapstructure:"strategies"`
}

func NewStrategiesWatcher(path string) (*StrategiesWatcher, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "read strategies file %s", path)
	}
	return &StrategiesWatcher{v: v}, nil
}

// Load decodes the current strategy configurations, keyed by identifier.
func (w *StrategiesWatcher) Load() (map[string]strategy.Config, error) {
	var f strategiesFile
	if err := w.v.Unmarshal(&f); err != nil {
		return nil, errors.Wrap(err, "decode strategies file")
	}
	for id, cfg := range f.Strategies {
		cfg.ID = id
		f.Strategies[id] = cfg
	}
	return f.Strategies, nil
}

// OnReload registers a callback fired with the fresh configurations after
// every file change.
func (w *StrategiesWatcher) OnReload(fn func(map[string]strategy.Config)) {
	w.mu.Lock()
	w.onReload = append(w.onReload, fn)
	w.mu.Unlock()
}

// Watch starts the file watcher. Safe to call once after callbacks are set.
func (w *StrategiesWatcher) Watch() {
	w.v.OnConfigChange(func(e fsnotify.Event) {
		cfgs, err := w.Load()
		if err != nil {
			logger.Error("strategies reload failed, keeping previous settings: %v", err)
			return
		}
		logger.Info("strategies file changed (%s), applying %d entries", e.Name, len(cfgs))
		w.mu.Lock()
		callbacks := append([]func(map[string]strategy.Config){}, w.onReload...)
		w.mu.Unlock()
		for _, fn := range callbacks {
			fn(cfgs)
		}
	})
	w.v.WatchConfig()
}
