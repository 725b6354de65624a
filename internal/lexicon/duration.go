package lexicon

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/govalues/decimal"
	"github.com/rickb777/period"
)

// Months and years have no fixed length; these are the approximations used
// when a period is reduced to seconds.
const (
	SecondsPerYear  = 31556926
	SecondsPerMonth = 2629744
)

// ErrInvalidDuration is returned for strings that are not ISO-8601 durations.
var ErrInvalidDuration = errors.New("invalid ISO 8601 duration")

// ParseDuration returns the length of an ISO-8601 duration in whole seconds.
// Lowercase input is accepted. Fractional components are kept until the
// total is known, which is then truncated. Negative durations are rejected.
func ParseDuration(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidDuration)
	}

	p, err := period.Parse(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}
	if p.IsNegative() {
		return 0, fmt.Errorf("%w: %q is negative", ErrInvalidDuration, s)
	}

	parts := []struct {
		value  decimal.Decimal
		factor int64
	}{
		{p.YearsDecimal(), SecondsPerYear},
		{p.MonthsDecimal(), SecondsPerMonth},
		{p.DaysIncWeeksDecimal(), 86400},
		{p.HoursDecimal(), 3600},
		{p.MinutesDecimal(), 60},
		{p.SecondsDecimal(), 1},
	}

	total := decimal.Zero
	for _, part := range parts {
		secs, err := part.value.Mul(decimal.MustNew(part.factor, 0))
		if err != nil {
			return 0, fmt.Errorf("%w: %q is too long", ErrInvalidDuration, s)
		}
		if total, err = total.Add(secs); err != nil {
			return 0, fmt.Errorf("%w: %q is too long", ErrInvalidDuration, s)
		}
	}

	secs, _, ok := total.Trunc(0).Int64(0)
	if !ok {
		return 0, fmt.Errorf("%w: %q is too long", ErrInvalidDuration, s)
	}
	return secs, nil
}

// FormatDuration renders seconds as PT{h}H{m}M{s}S, omitting zero parts.
// Days are folded into hours, so one day is PT24H.
func FormatDuration(seconds int64) string {
	if seconds == 0 {
		return "PT0S"
	}

	var b strings.Builder
	if seconds < 0 {
		b.WriteByte('-')
		seconds = -seconds
	}
	b.WriteString("PT")

	h, m, s := seconds/3600, seconds%3600/60, seconds%60
	if h > 0 {
		b.WriteString(strconv.FormatInt(h, 10))
		b.WriteByte('H')
	}
	if m > 0 {
		b.WriteString(strconv.FormatInt(m, 10))
		b.WriteByte('M')
	}
	if s > 0 {
		b.WriteString(strconv.FormatInt(s, 10))
		b.WriteByte('S')
	}
	return b.String()
}

// CanonicalDuration parses s and renders it back in canonical form.
func CanonicalDuration(s string) (string, error) {
	secs, err := ParseDuration(s)
	if err != nil {
		return "", err
	}
	return FormatDuration(secs), nil
}
