package config

import "sync/atomic"

// Holder gives concurrent readers the most recently loaded Config.
type Holder struct {
	cur atomic.Pointer[Config]
}

// NewHolder returns a Holder serving cfg.
func NewHolder(cfg *Config) *Holder {
	h := &Holder{}
	h.cur.Store(cfg)
	return h
}

// Get returns the current Config. Callers must not modify it.
func (h *Holder) Get() *Config {
	return h.cur.Load()
}

// Set replaces the current Config.
func (h *Holder) Set(cfg *Config) {
	h.cur.Store(cfg)
}

// Notification returns the named notification from the current Config.
func (h *Holder) Notification(name string) (Notification, bool) {
	n, ok := h.Get().Notifications[name]
	return n, ok
}
