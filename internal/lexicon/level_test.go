package lexicon_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eurodeo/esoh/internal/lexicon"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"0", 0},
		{"2", 200},
		{"2.0", 200},
		{"0.5", 50},
		{"1.556", 156},
		{"-0.1", -10},
		{" 10 ", 1000},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := lexicon.ParseLevel(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "high", "NaN", "Inf"} {
		_, err := lexicon.ParseLevel(bad)
		require.ErrorIs(t, err, lexicon.ErrInvalidLevel, bad)
	}
}

func TestFormatLevel(t *testing.T) {
	assert.Equal(t, "0.0", lexicon.FormatLevel(0))
	assert.Equal(t, "2.0", lexicon.FormatLevel(200))
	assert.Equal(t, "10.0", lexicon.FormatLevel(1000))
	assert.Equal(t, "1.5", lexicon.FormatLevel(150))
	assert.Equal(t, "0.25", lexicon.FormatLevel(25))
}

func TestCanonicalLevel(t *testing.T) {
	got, err := lexicon.CanonicalLevel("10")
	require.NoError(t, err)
	assert.Equal(t, "10.0", got)
}
