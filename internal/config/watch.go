package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"papertrade/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Snapshot is one successfully loaded configuration.
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Config   Config
}

// ChangeListener is called after the config file changes and reloads cleanly.
type ChangeListener func(Snapshot)

// Watcher reloads the config whenever the main file changes. A reload that
// fails validation is logged and the previous snapshot stays active.
type Watcher struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

// Watch loads path and starts watching it for changes.
func Watch(path string) (*Watcher, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config watcher requires path")
	}
	w := &Watcher{path: path}
	if err := w.reload(); err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config failed: %w", err)
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) {
			return
		}
		if err := w.reload(); err != nil {
			logger.Errorf("config reload failed (%s): %v", evt.Name, err)
			return
		}
		w.notify()
	})
	v.WatchConfig()
	w.v = v
	return w, nil
}

func (w *Watcher) Snapshot() Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return cloneSnapshot(w.snapshot)
}

// Subscribe registers fn for future reloads.
func (w *Watcher) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	w.mu.Lock()
	w.listeners = append(w.listeners, fn)
	w.mu.Unlock()
}

func (w *Watcher) notify() {
	w.mu.RLock()
	snap := cloneSnapshot(w.snapshot)
	listeners := append([]ChangeListener(nil), w.listeners...)
	w.mu.RUnlock()
	for _, fn := range listeners {
		func(cb ChangeListener) {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("config listener panic: %v", r)
				}
			}()
			cb(snap)
		}(fn)
	}
}

func (w *Watcher) reload() error {
	cfg, err := Load(w.path)
	if err != nil {
		return err
	}
	w.mu.Lock()
	version := w.snapshot.Version + 1
	w.snapshot = Snapshot{
		Version:  version,
		LoadedAt: time.Now(),
		Config:   *cfg,
	}
	w.mu.Unlock()
	logger.Infof("config loaded from %s (version %d)", filepath.Base(w.path), version)
	return nil
}

func cloneSnapshot(src Snapshot) Snapshot {
	out := src
	if src.Config.Market.Prices != nil {
		out.Config.Market.Prices = make(map[string]string, len(src.Config.Market.Prices))
		for k, v := range src.Config.Market.Prices {
			out.Config.Market.Prices[k] = v
		}
	}
	out.Config.Market.Redis.Symbols = append([]string(nil), src.Config.Market.Redis.Symbols...)
	return out
}
