/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package prefs

import (
	"context"
	"sync"
)

// Memory keeps preferences for the lifetime of the process.
type Memory struct {
	mu     sync.RWMutex
	timers map[string]int
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{timers: make(map[string]int)}
}

func (m *Memory) DefaultTimer(_ context.Context, playerID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seconds, ok := m.timers[playerID]
	if !ok {
		return 0, ErrNotFound
	}

	return seconds, nil
}

func (m *Memory) SetDefaultTimer(_ context.Context, playerID string, seconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.timers[playerID] = seconds

	return nil
}

func (m *Memory) Close() error {
	return nil
}
