// Package channel provides the intake sources that hand shared content to
// the service: stdin, an HTTP intent endpoint and a Telegram bot.
package channel

import (
	"context"
	"errors"
	"fmt"

	"github.com/linanwx/sharebridge/logger"
	"github.com/linanwx/sharebridge/share"
)

// Source is the interface for intake sources.
type Source interface {
	// Name returns the source name (e.g., "telegram", "cli", "intent").
	Name() string

	// Start begins accepting input.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the source.
	Stop() error

	// Intents returns the channel of received intents. It is closed once the
	// source has stopped producing.
	Intents() <-chan *share.Intent
}

// Manager manages multiple sources as a pure registry.
type Manager struct {
	sources map[string]Source
	order   []string
}

// NewManager creates a new source manager.
func NewManager() *Manager {
	return &Manager{
		sources: make(map[string]Source),
	}
}

// Register adds a source to the manager and logs it. Nil is silently ignored.
func (m *Manager) Register(src Source) {
	if src == nil {
		return
	}
	if _, exists := m.sources[src.Name()]; !exists {
		m.order = append(m.order, src.Name())
	}
	m.sources[src.Name()] = src
	logger.Info("source registered", "source", src.Name())
}

// Get returns a source by name.
func (m *Manager) Get(name string) (Source, bool) {
	src, ok := m.sources[name]
	return src, ok
}

// Len returns the number of registered sources.
func (m *Manager) Len() int { return len(m.sources) }

// StartAll starts sources in registration order. If one fails, the sources
// already started are stopped again.
func (m *Manager) StartAll(ctx context.Context) error {
	var started []Source
	for _, name := range m.order {
		src := m.sources[name]
		if err := src.Start(ctx); err != nil {
			for _, s := range started {
				if stopErr := s.Stop(); stopErr != nil {
					logger.Warn("source stop failed", "source", s.Name(), "err", stopErr)
				}
			}
			return fmt.Errorf("start %s: %w", name, err)
		}
		started = append(started, src)
	}
	return nil
}

// StopAll stops all registered sources.
func (m *Manager) StopAll() error {
	var errs []error
	for _, name := range m.order {
		if err := m.sources[name].Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Each iterates over all registered sources in registration order.
func (m *Manager) Each(fn func(Source)) {
	for _, name := range m.order {
		fn(m.sources[name])
	}
}
