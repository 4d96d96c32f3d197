package numbers

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRangeSpan(t *testing.T) {
	valid := func(lo, hi int) MatchConfig {
		return MatchConfig{RangeMin: lo, RangeMax: hi, TotalRounds: 1, TurnTimeoutSeconds: MinTimerSeconds}
	}

	accepted := []MatchConfig{
		valid(1, 10),
		valid(0, MaxRangeSpan),
		valid(-(MaxRangeSpan / 2), MaxRangeSpan/2),
	}
	for _, cfg := range accepted {
		assert.NoError(t, cfg.Validate(), "range [%d, %d]", cfg.RangeMin, cfg.RangeMax)
	}

	rejected := []MatchConfig{
		valid(0, MaxRangeSpan+1),
		valid(0, math.MaxInt),
		valid(math.MinInt, math.MaxInt),
		valid(math.MinInt/2, math.MaxInt/2),
	}
	for _, cfg := range rejected {
		err := cfg.Validate()
		require.ErrorIs(t, err, ErrInvalidConfiguration, "range [%d, %d]", cfg.RangeMin, cfg.RangeMax)

		var ce *ConfigError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, "range_max", ce.Field)
	}
}

func TestSizeSaturates(t *testing.T) {
	assert.Equal(t, 10, MatchConfig{RangeMin: 1, RangeMax: 10}.size())
	assert.Equal(t, 1, MatchConfig{RangeMin: 4, RangeMax: 4}.size())
	assert.Equal(t, math.MaxInt, MatchConfig{RangeMin: math.MinInt, RangeMax: math.MaxInt}.size())
}
