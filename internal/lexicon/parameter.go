package lexicon

import (
	"fmt"
	"strings"
)

// Wildcard matches any value of a parameter name component.
const Wildcard = "*"

// ParameterNameSeparator joins the components of a parameter name.
const ParameterNameSeparator = ":"

// ParameterName is the compound series identifier
// standard_name:level:function:period. Level is metres and period an
// ISO-8601 duration; either may be Wildcard.
type ParameterName struct {
	StandardName string
	Level        string
	Function     string
	Period       string
}

// SplitParameterName splits s into its four components without validating them.
func SplitParameterName(s string) (ParameterName, error) {
	parts := strings.Split(s, ParameterNameSeparator)
	if len(parts) != 4 {
		return ParameterName{}, fmt.Errorf("parameter name %q must have 4 components separated by %q", s, ParameterNameSeparator)
	}
	return ParameterName{
		StandardName: strings.TrimSpace(parts[0]),
		Level:        strings.TrimSpace(parts[1]),
		Function:     strings.TrimSpace(parts[2]),
		Period:       strings.TrimSpace(parts[3]),
	}, nil
}

// NewParameterName builds the canonical name of a stored series.
func NewParameterName(standardName string, levelCm int64, function string, periodSeconds int64) ParameterName {
	return ParameterName{
		StandardName: standardName,
		Level:        FormatLevel(levelCm),
		Function:     function,
		Period:       FormatDuration(periodSeconds),
	}
}

func (p ParameterName) String() string {
	return strings.Join([]string{p.StandardName, p.Level, p.Function, p.Period}, ParameterNameSeparator)
}

// HasWildcard reports whether any component is Wildcard.
func (p ParameterName) HasWildcard() bool {
	return p.StandardName == Wildcard || p.Level == Wildcard ||
		p.Function == Wildcard || p.Period == Wildcard
}

// Matches reports whether the canonical name other satisfies p, treating
// wildcard components as always equal.
func (p ParameterName) Matches(other ParameterName) bool {
	return componentMatches(p.StandardName, other.StandardName) &&
		componentMatches(p.Level, other.Level) &&
		componentMatches(p.Function, other.Function) &&
		componentMatches(p.Period, other.Period)
}

func componentMatches(pattern, value string) bool {
	return pattern == Wildcard || pattern == value
}
