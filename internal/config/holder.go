package config

import "sync"

// Holder provides thread-safe access to a mutable *AppConfig and an
// immutable config file path. CLI commands read through a shared Holder,
// so an Update replaces the config for every reader in one place. No
// command reloads config on SIGHUP.
type Holder struct {
	mu   sync.RWMutex
	cfg  *AppConfig
	path string // immutable after construction
}

// NewHolder creates a Holder with the initial config and config file path.
func NewHolder(cfg *AppConfig, path string) *Holder {
	return &Holder{
		cfg:  cfg,
		path: path,
	}
}

// Config returns the current config snapshot. Thread-safe (read lock).
func (h *Holder) Config() *AppConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.cfg
}

// Path returns the config file path. Thread-safe without locking because
// the path is immutable after construction.
func (h *Holder) Path() string {
	return h.path
}

// Update replaces the config. Thread-safe (write lock). One call updates
// config for all consumers.
func (h *Holder) Update(cfg *AppConfig) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.cfg = cfg
}
