// 配置文件变更监听器实现。
//
// 轮询配置文件修改时间，重新加载后只将 voice 段的变化推送给回调，
// 其余段的修改需要重启守护进程才能生效。
package config

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"
)

// VoiceChange describes a reloaded voice section.
type VoiceChange struct {
	Old       VoiceConfig `json:"old"`
	New       VoiceConfig `json:"new"`
	Timestamp time.Time   `json:"timestamp"`
}

// WatcherOption configures the VoiceWatcher
type WatcherOption func(*VoiceWatcher)

// WithPollInterval sets how often the file is stat'ed.
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *VoiceWatcher) {
		w.interval = d
	}
}

// WithWatcherLogger sets the logger for the watcher
func WithWatcherLogger(logger *zap.Logger) WatcherOption {
	return func(w *VoiceWatcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// VoiceWatcher reloads the config file on modification and publishes voice changes.
type VoiceWatcher struct {
	mu sync.RWMutex

	loader   *Loader
	path     string
	interval time.Duration
	current  VoiceConfig
	lastMod  time.Time
	running  bool
	stopChan chan struct{}

	callbacks []func(VoiceChange)
	logger    *zap.Logger
}

// NewVoiceWatcher creates a watcher for path seeded with the currently active voice config.
func NewVoiceWatcher(path string, current VoiceConfig, opts ...WatcherOption) (*VoiceWatcher, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is required")
	}

	w := &VoiceWatcher{
		loader:   NewLoader().WithConfigPath(path).WithValidator((*Config).Validate),
		path:     path,
		interval: time.Second,
		current:  current,
		stopChan: make(chan struct{}),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}

	if info, err := os.Stat(path); err == nil {
		w.lastMod = info.ModTime()
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat path %s: %w", path, err)
	}

	return w, nil
}

// OnChange registers a callback for voice section changes
func (w *VoiceWatcher) OnChange(callback func(VoiceChange)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start begins polling until ctx is done or Stop is called.
func (w *VoiceWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	go w.pollLoop(ctx)

	w.logger.Info("Config watcher started",
		zap.String("path", w.path),
		zap.Duration("interval", w.interval))
	return nil
}

// Stop stops the watcher
func (w *VoiceWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}
	close(w.stopChan)
	w.running = false
	return nil
}

// Current returns the last applied voice config.
func (w *VoiceWatcher) Current() VoiceConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// IsRunning returns whether the watcher is running
func (w *VoiceWatcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

func (w *VoiceWatcher) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.check()
		}
	}
}

// check reloads the file if its modification time moved forward.
func (w *VoiceWatcher) check() {
	info, err := os.Stat(w.path)
	if err != nil {
		return
	}

	w.mu.Lock()
	if !info.ModTime().After(w.lastMod) {
		w.mu.Unlock()
		return
	}
	w.lastMod = info.ModTime()
	w.mu.Unlock()

	cfg, err := w.loader.Load()
	if err != nil {
		// 保留旧配置，等待下一次修改
		w.logger.Warn("Config reload rejected", zap.String("path", w.path), zap.Error(err))
		return
	}

	w.mu.Lock()
	if reflect.DeepEqual(cfg.Voice, w.current) {
		w.mu.Unlock()
		return
	}
	change := VoiceChange{Old: w.current, New: cfg.Voice, Timestamp: time.Now()}
	w.current = cfg.Voice
	callbacks := make([]func(VoiceChange), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	w.logger.Info("Voice config reloaded",
		zap.String("locale", change.New.Locale),
		zap.Float64("speed", change.New.Speed),
		zap.Int("speaker_id", change.New.SpeakerID))

	for _, cb := range callbacks {
		cb(change)
	}
}
