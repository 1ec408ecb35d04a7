package config

import (
	"sync"

	"tradedesk/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ChangeListener fires after the config file reloaded successfully.
type ChangeListener func(*Config)

// Watcher reloads the config file on change and notifies listeners. Only a
// few knobs are safe to flip at runtime (log level in particular); consumers
// decide what to pick up from the fresh snapshot.
type Watcher struct {
	path string

	mu        sync.RWMutex
	current   *Config
	listeners []ChangeListener
}

// Watch starts watching path. The initial config must already have loaded;
// it seeds the first snapshot.
func Watch(path string, initial *Config) (*Watcher, error) {
	w := &Watcher{path: path, current: initial}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		fresh, err := Load(w.path)
		if err != nil {
			logger.Errorf("config reload failed: %v", err)
			return
		}
		w.mu.Lock()
		w.current = fresh
		listeners := append([]ChangeListener(nil), w.listeners...)
		w.mu.Unlock()
		logger.Infof("config reloaded from %s", evt.Name)
		for _, fn := range listeners {
			if fn != nil {
				fn(fresh)
			}
		}
	})
	v.WatchConfig()
	return w, nil
}

// Current returns the latest loaded config.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnChange registers a listener for future reloads.
func (w *Watcher) OnChange(fn ChangeListener) {
	w.mu.Lock()
	w.listeners = append(w.listeners, fn)
	w.mu.Unlock()
}
