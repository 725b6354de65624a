package lexicon

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidLevel is returned for levels that are not finite decimal numbers.
var ErrInvalidLevel = errors.New("invalid level")

// ParseLevel parses a height in metres and returns it in centimetres.
func ParseLevel(s string) (int64, error) {
	m, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(m) || math.IsInf(m, 0) {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidLevel, s)
	}
	return MetresToCentimetres(m), nil
}

// MetresToCentimetres rounds to the nearest centimetre.
func MetresToCentimetres(m float64) int64 {
	return int64(math.Round(m * 100))
}

// FormatLevel renders centimetres as metres with at least one fractional
// digit, so 1000 becomes "10.0" and 150 becomes "1.5".
func FormatLevel(cm int64) string {
	return FormatMetres(float64(cm) / 100)
}

// FormatMetres renders metres with at least one fractional digit.
func FormatMetres(m float64) string {
	s := strconv.FormatFloat(m, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// CanonicalLevel parses a metres string and renders it back in canonical form.
func CanonicalLevel(s string) (string, error) {
	cm, err := ParseLevel(s)
	if err != nil {
		return "", err
	}
	return FormatLevel(cm), nil
}
