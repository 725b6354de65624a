package edr

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/relvacode/iso8601"
)

// Bounds used for open-ended intervals.
var (
	MinTime = time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)
	MaxTime = time.Date(9999, 12, 31, 23, 59, 59, 999999999, time.UTC)
)

const openBound = ".."

// Only the extended ISO-8601 form is accepted; the basic form
// (20221231T000000Z) is rejected.
var extendedInstant = regexp.MustCompile(
	`^\d{4}-\d{2}-\d{2}(T\d{2}:\d{2}(:\d{2}(\.\d+)?)?(Z|[+-]\d{2}(:?\d{2})?)?)?$`,
)

var errBasicFormat = errors.New("instant is not in extended ISO 8601 form")

// TimeRange is a half-open [Start, End) interval.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// ParseDatetimeRange parses the EDR datetime parameter. It accepts an
// instant, instant/instant, ../instant and instant/..; a single instant t
// becomes [t, t+1s). An empty value or a bare ".." means no temporal
// filter and returns nil.
func ParseDatetimeRange(s string) (*TimeRange, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == openBound {
		return nil, nil
	}

	parts := strings.Split(s, "/")
	switch len(parts) {
	case 1:
		t, err := parseInstant(parts[0])
		if err != nil {
			return nil, datetimeError("Invalid format: " + s)
		}
		return &TimeRange{Start: t, End: t.Add(time.Second)}, nil

	case 2:
		if parts[0] == openBound && parts[1] == openBound {
			return nil, nil
		}

		start, end := MinTime, MaxTime
		var err error
		if parts[0] != openBound {
			if start, err = parseInstant(parts[0]); err != nil {
				return nil, datetimeError("Invalid format: " + s)
			}
		}
		if parts[1] != openBound {
			if end, err = parseInstant(parts[1]); err != nil {
				return nil, datetimeError("Invalid format: " + s)
			}
		}
		if start.After(end) {
			return nil, datetimeError("Invalid range: " + parts[0] + " > " + parts[1])
		}
		return &TimeRange{Start: start, End: end}, nil

	default:
		return nil, datetimeError("Invalid format: " + s)
	}
}

func parseInstant(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if !extendedInstant.MatchString(s) {
		return time.Time{}, errBasicFormat
	}
	t, err := iso8601.ParseString(s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func datetimeError(message string) *ValidationError {
	return &ValidationError{Field: "datetime", Message: message, Status: http.StatusUnprocessableEntity}
}
