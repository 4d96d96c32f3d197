/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package numbers

import (
	"math"
	"strings"
)

const (
	DefaultRangeMin     = 1
	DefaultRangeMax     = 10
	DefaultTotalRounds  = 5
	DefaultTimerSeconds = 180

	// MinTimerSeconds is the shortest turn a match may be configured with.
	MinTimerSeconds = 10

	// MaxRangeSpan bounds RangeMax-RangeMin so that range arithmetic,
	// including the picker's retry budget, stays within an int.
	MaxRangeSpan = math.MaxInt/2 - 1

	DefaultPlayerOneName = "Player 1"
	DefaultPlayerTwoName = "Player 2"
)

// MatchConfig is fixed for the lifetime of a match.
type MatchConfig struct {
	PlayerOneName      string `json:"player_one_name"`
	PlayerTwoName      string `json:"player_two_name"`
	RangeMin           int    `json:"range_min"`
	RangeMax           int    `json:"range_max"`
	TotalRounds        int    `json:"total_rounds"`
	TurnTimeoutSeconds int    `json:"turn_timeout_seconds"`
	AvoidRepeats       bool   `json:"avoid_repeats"`
}

// LobbyConfig returns the settings a fresh lobby is pre-filled with.
// timerSeconds is the carried-over default timer preference.
func LobbyConfig(timerSeconds int) MatchConfig {
	return MatchConfig{
		PlayerOneName:      DefaultPlayerOneName,
		PlayerTwoName:      DefaultPlayerTwoName,
		RangeMin:           DefaultRangeMin,
		RangeMax:           DefaultRangeMax,
		TotalRounds:        DefaultTotalRounds,
		TurnTimeoutSeconds: ClampTimer(timerSeconds),
	}
}

// ClampTimer raises seconds to MinTimerSeconds if it is below it.
func ClampTimer(seconds int) int {
	return max(MinTimerSeconds, seconds)
}

// Validate reports the first invalid field as a *ConfigError.
func (c MatchConfig) Validate() error {
	switch {
	case c.RangeMin >= c.RangeMax:
		return &ConfigError{Field: "range_max", Reason: "must be greater than range_min"}
	case c.span() > MaxRangeSpan:
		return &ConfigError{Field: "range_max", Reason: "range is too large"}
	case c.TotalRounds < 1:
		return &ConfigError{Field: "total_rounds", Reason: "must be at least 1"}
	case c.TurnTimeoutSeconds < MinTimerSeconds:
		return &ConfigError{Field: "turn_timeout_seconds", Reason: "must be at least 10"}
	}

	return nil
}

func (c MatchConfig) normalized() MatchConfig {
	c.PlayerOneName = strings.TrimSpace(c.PlayerOneName)
	if c.PlayerOneName == "" {
		c.PlayerOneName = DefaultPlayerOneName
	}

	c.PlayerTwoName = strings.TrimSpace(c.PlayerTwoName)
	if c.PlayerTwoName == "" {
		c.PlayerTwoName = DefaultPlayerTwoName
	}

	return c
}

// span is RangeMax-RangeMin computed without overflow. Only meaningful when
// RangeMin < RangeMax.
func (c MatchConfig) span() uint64 {
	return uint64(c.RangeMax) - uint64(c.RangeMin)
}

// size is the number of values in [RangeMin, RangeMax], saturating at
// math.MaxInt for ranges that fail Validate.
func (c MatchConfig) size() int {
	if c.RangeMin >= c.RangeMax {
		return 1
	}

	if s := c.span(); s < math.MaxInt {
		return int(s) + 1
	}

	return math.MaxInt
}
