/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package prefs remembers the last turn timer each browser chose, so the
// next lobby starts from it.
package prefs

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("preference not found")

// Store persists the default turn timer, keyed by player cookie.
type Store interface {
	DefaultTimer(ctx context.Context, playerID string) (int, error)
	SetDefaultTimer(ctx context.Context, playerID string, seconds int) error
	Close() error
}

// TimerOrDefault returns the stored timer for playerID, or fallback when
// nothing is stored or the lookup fails.
func TimerOrDefault(ctx context.Context, s Store, playerID string, fallback int) int {
	if s == nil || playerID == "" {
		return fallback
	}

	seconds, err := s.DefaultTimer(ctx, playerID)
	if err != nil {
		return fallback
	}

	return seconds
}
