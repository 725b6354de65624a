package lexicon_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eurodeo/esoh/internal/lexicon"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"PT0S", 0},
		{"P0D", 0},
		{"PT1M", 60},
		{"PT10M", 600},
		{"pt10m", 600},
		{"PT1H", 3600},
		{"PT1H30M", 5400},
		{"P1D", 86400},
		{"P1W", 7 * 86400},
		{"P1M", lexicon.SecondsPerMonth},
		{"P1Y", lexicon.SecondsPerYear},
		{"PT0.5H", 1800},
		{"PT1.5M", 90},
		{"P0.5D", 43200},
		{"PT1.9S", 1},
		{"P0.5M", lexicon.SecondsPerMonth / 2},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := lexicon.ParseDuration(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDuration_Invalid(t *testing.T) {
	for _, input := range []string{"", "10M", "P1X", "-PT10M", "hello", "PT0.5M0.5S"} {
		t.Run(input, func(t *testing.T) {
			_, err := lexicon.ParseDuration(input)
			require.ErrorIs(t, err, lexicon.ErrInvalidDuration)
		})
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "PT0S", lexicon.FormatDuration(0))
	assert.Equal(t, "PT24H", lexicon.FormatDuration(86400))
	assert.Equal(t, "PT1H1M1S", lexicon.FormatDuration(3661))
	assert.Equal(t, "PT10M", lexicon.FormatDuration(600))
}

func TestDurationRoundTrip(t *testing.T) {
	for _, s := range []string{"PT0S", "PT1M", "PT10M", "PT1H", "PT24H"} {
		secs, err := lexicon.ParseDuration(s)
		require.NoError(t, err)
		assert.Equal(t, s, lexicon.FormatDuration(secs))
	}
}

func TestCanonicalDuration(t *testing.T) {
	got, err := lexicon.CanonicalDuration("P1D")
	require.NoError(t, err)
	assert.Equal(t, "PT24H", got)

	got, err = lexicon.CanonicalDuration("P0D")
	require.NoError(t, err)
	assert.Equal(t, "PT0S", got)
}
