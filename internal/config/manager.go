package config

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ChangeHandler receives the freshly loaded configuration after a reload.
type ChangeHandler func(*Config)

// Manager watches the config file and re-runs Load on change, fanning the
// result out to registered handlers. A reload that fails validation keeps
// the previous configuration in force.
type Manager struct {
	path     string
	logger   *zap.Logger
	watcher  *fsnotify.Watcher
	stopCh   chan struct{}
	stopOnce sync.Once

	mu       sync.RWMutex
	current  *Config
	handlers []ChangeHandler
}

// NewManager wraps an already-loaded configuration with a file watcher.
func NewManager(path string, initial *Config, logger *zap.Logger) *Manager {
	return &Manager{
		path:    path,
		logger:  logger,
		stopCh:  make(chan struct{}),
		current: initial,
	}
}

// Current returns the active configuration snapshot.
func (m *Manager) Current() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// RegisterHandler adds a reload callback. Handlers run on the watcher
// goroutine and must not block.
func (m *Manager) RegisterHandler(h ChangeHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, h)
}

// Start begins watching the config file's directory. Watching the directory
// rather than the file survives editors that replace the file on save.
func (m *Manager) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	m.watcher = watcher

	dir := filepath.Dir(m.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	go m.loop(ctx)
	m.logger.Info("Config hot-reload watching", zap.String("dir", dir))
	return nil
}

func (m *Manager) loop(ctx context.Context) {
	defer m.watcher.Close()
	target := filepath.Clean(m.path)
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case ev, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			m.reload()
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn("Config watcher error", zap.Error(err))
		}
	}
}

func (m *Manager) reload() {
	cfg, err := Load()
	if err != nil {
		m.logger.Warn("Config reload rejected, keeping previous", zap.Error(err))
		return
	}
	m.mu.Lock()
	m.current = cfg
	handlers := append([]ChangeHandler(nil), m.handlers...)
	m.mu.Unlock()

	m.logger.Info("Configuration reloaded",
		zap.Int("max_alignment_iterations", cfg.Loops.MaxAlignmentIterations),
		zap.Int("max_code_attempts", cfg.Loops.MaxCodeAttempts),
		zap.Int("max_total_remediations", cfg.Loops.MaxTotalRemediations),
	)
	for _, h := range handlers {
		h(cfg)
	}
}

// Stop halts the watcher.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}
