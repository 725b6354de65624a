package edr

import (
	"strings"

	"github.com/eurodeo/esoh/internal/lexicon"
)

// ParseParameterName validates and canonicalises one compound parameter
// name. Every component is checked and all failures are reported together.
// Wildcard components pass through unchanged.
func ParseParameterName(vocab *lexicon.Vocabulary, s string) (lexicon.ParameterName, error) {
	p, err := lexicon.SplitParameterName(strings.TrimSpace(s))
	if err != nil {
		return lexicon.ParameterName{}, invalid("parameter-name", err.Error())
	}

	errs := ValidationErrors{}

	if p.StandardName != lexicon.Wildcard {
		canonical, err := vocab.ValidateStandardName(p.StandardName)
		if err != nil {
			errs.Add("standard_name", err.Error())
		} else {
			p.StandardName = canonical
		}
	}

	if p.Level != lexicon.Wildcard {
		level, err := lexicon.CanonicalLevel(p.Level)
		if err != nil {
			errs.Add("level", err.Error())
		} else {
			p.Level = level
		}
	}

	if p.Function != lexicon.Wildcard && !lexicon.IsFunction(p.Function) {
		errs.Add("function", "unknown function "+p.Function+", expected one of "+strings.Join(lexicon.Functions, ", "))
	}

	if p.Period != lexicon.Wildcard {
		period, err := lexicon.CanonicalDuration(p.Period)
		if err != nil {
			errs.Add("period", err.Error())
		} else {
			p.Period = period
		}
	}

	if err := errs.Err(); err != nil {
		return lexicon.ParameterName{}, err
	}
	return p, nil
}

// ParseParameterNames parses a comma-separated list of parameter names and
// stops at the first invalid one. Duplicates are dropped.
func ParseParameterNames(vocab *lexicon.Vocabulary, s string) ([]lexicon.ParameterName, error) {
	var out []lexicon.ParameterName
	seen := make(map[lexicon.ParameterName]struct{})

	for _, raw := range strings.Split(s, ",") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		p, err := ParseParameterName(vocab, raw)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}
