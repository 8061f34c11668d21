package channel

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"deep-search-wiser/internal/logger"
)

// Manager manages the lifecycle of all channels.
type Manager struct {
	mu       sync.RWMutex
	channels map[string]Channel
	log      *zap.Logger
}

// NewManager creates a new channel manager.
func NewManager() *Manager {
	return &Manager{
		channels: make(map[string]Channel),
		log:      logger.Named("channel"),
	}
}

// Register adds a channel to the manager.
func (m *Manager) Register(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[ch.Name()] = ch
}

// StartAll starts all registered channels in name order. If one fails, the
// ones already started are stopped again.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := lo.Keys(m.channels)
	slices.Sort(names)
	for i, name := range names {
		if err := m.channels[name].Start(ctx); err != nil {
			for _, started := range names[:i] {
				_ = m.channels[started].Stop(ctx)
			}
			return fmt.Errorf("start %s: %w", name, err)
		}
		m.log.Info("started", zap.String("channel", name))
	}
	return nil
}

// StopAll stops all running channels.
func (m *Manager) StopAll(ctx context.Context) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for name, ch := range m.channels {
		if !ch.IsRunning() {
			continue
		}
		if err := ch.Stop(ctx); err != nil {
			m.log.Warn("failed to stop", zap.String("channel", name), zap.Error(err))
		} else {
			m.log.Info("stopped", zap.String("channel", name))
		}
	}
}

// Get returns a channel by name.
func (m *Manager) Get(name string) (Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[name]
	return ch, ok
}

// List returns all channel names and their running status.
func (m *Manager) List() map[string]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make(map[string]bool, len(m.channels))
	for name, ch := range m.channels {
		result[name] = ch.IsRunning()
	}
	return result
}
