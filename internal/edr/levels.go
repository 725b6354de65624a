package edr

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/eurodeo/esoh/internal/lexicon"
)

// MaxLevelRepeat bounds n in an Rn/start/step level item.
const MaxLevelRepeat = 1000

var repeatingLevels = regexp.MustCompile(`^R(\d+)/(\d+(?:\.\d+)?)/(\d+(?:\.\d+)?)$`)

// ExpandLevels expands the EDR level parameter into centimetre filter
// values. Items are comma separated and each is a single level in metres,
// a range lo/hi with ".." for an open side, or Rn/start/step which yields
// n levels start + i*step.
func ExpandLevels(s string) ([]string, error) {
	var out []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		if m := repeatingLevels.FindStringSubmatch(item); m != nil {
			n, err := strconv.Atoi(m[1])
			if err != nil || n > MaxLevelRepeat {
				return nil, invalid("level", fmt.Sprintf("%q: repeat count must be at most %d", item, MaxLevelRepeat))
			}
			start, err := lexicon.ParseLevel(m[2])
			if err != nil {
				return nil, invalid("level", fmt.Sprintf("%q: bad start level", item))
			}
			step, err := lexicon.ParseLevel(m[3])
			if err != nil {
				return nil, invalid("level", fmt.Sprintf("%q: bad step", item))
			}
			for i := 0; i < n; i++ {
				out = append(out, strconv.FormatInt(start+int64(i)*step, 10))
			}
			continue
		}

		if lo, hi, ok := strings.Cut(item, "/"); ok {
			loCm, err := rangeBound(lo, "level", lexicon.ParseLevel)
			if err != nil {
				return nil, err
			}
			hiCm, err := rangeBound(hi, "level", lexicon.ParseLevel)
			if err != nil {
				return nil, err
			}
			if err := checkOrder("level", item, loCm, hiCm); err != nil {
				return nil, err
			}
			out = append(out, loCm+"/"+hiCm)
			continue
		}

		cm, err := lexicon.ParseLevel(item)
		if err != nil {
			return nil, invalid("level", fmt.Sprintf("%q is not a number", item))
		}
		out = append(out, strconv.FormatInt(cm, 10))
	}
	return out, nil
}

// ExpandPeriods expands the EDR period parameter into second filter
// values. Items are comma separated ISO-8601 durations or ranges d1/d2
// with ".." for an open side.
func ExpandPeriods(s string) ([]string, error) {
	var out []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		if lo, hi, ok := strings.Cut(item, "/"); ok {
			loS, err := rangeBound(lo, "period", lexicon.ParseDuration)
			if err != nil {
				return nil, err
			}
			hiS, err := rangeBound(hi, "period", lexicon.ParseDuration)
			if err != nil {
				return nil, err
			}
			if err := checkOrder("period", item, loS, hiS); err != nil {
				return nil, err
			}
			out = append(out, loS+"/"+hiS)
			continue
		}

		secs, err := lexicon.ParseDuration(item)
		if err != nil {
			return nil, invalid("period", fmt.Sprintf("%q is not an ISO 8601 duration", item))
		}
		out = append(out, strconv.FormatInt(secs, 10))
	}
	return out, nil
}

func rangeBound(s, field string, parse func(string) (int64, error)) (string, error) {
	s = strings.TrimSpace(s)
	if s == openBound {
		return openBound, nil
	}
	v, err := parse(s)
	if err != nil {
		return "", invalid(field, fmt.Sprintf("%q is not a valid range bound", s))
	}
	return strconv.FormatInt(v, 10), nil
}

func checkOrder(field, item, lo, hi string) error {
	if lo == openBound || hi == openBound {
		return nil
	}
	l, _ := strconv.ParseInt(lo, 10, 64)
	h, _ := strconv.ParseInt(hi, 10, 64)
	if l > h {
		return invalid(field, fmt.Sprintf("%q: lower bound exceeds upper bound", item))
	}
	return nil
}
