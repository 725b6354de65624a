package formatter

import (
	"strings"

	"github.com/eurodeo/esoh/internal/datastore"
	"github.com/eurodeo/esoh/internal/lexicon"
)

// I18N is a language-keyed string.
type I18N map[string]string

type ObservedProperty struct {
	ID    string `json:"id"`
	Label I18N   `json:"label"`
}

type MeasurementType struct {
	Method   string `json:"method"`
	Duration string `json:"duration"`
}

type Unit struct {
	Label I18N `json:"label"`
}

// Parameter describes one series in a coverage.
type Parameter struct {
	Type             string           `json:"type"`
	Description      I18N             `json:"description"`
	ObservedProperty ObservedProperty `json:"observedProperty"`
	MeasurementType  *MeasurementType `json:"measurementType,omitempty"`
	Unit             Unit             `json:"unit"`
	StandardName     string           `json:"rodeo:standard_name"`
	Level            float64          `json:"rodeo:level"`
}

// NewParameter builds the coverage parameter of a series.
func NewParameter(ts *datastore.TSMetadata) Parameter {
	level := float64(ts.Level) / 100
	period := lexicon.FormatDuration(ts.Period)

	return Parameter{
		Type:        "Parameter",
		Description: I18N{"en": describe(ts.StandardName, ts.Function, lexicon.FormatLevel(ts.Level), period)},
		ObservedProperty: ObservedProperty{
			ID:    lexicon.VocabularyURL(ts.StandardName),
			Label: I18N{"en": ts.StandardName},
		},
		MeasurementType: &MeasurementType{
			Method:   ts.Function,
			Duration: period,
		},
		Unit:         Unit{Label: I18N{"en": ts.Unit}},
		StandardName: ts.StandardName,
		Level:        level,
	}
}

// ParameterName returns the key a series is published under.
func ParameterName(ts *datastore.TSMetadata) string {
	if ts.ParameterName != "" {
		return ts.ParameterName
	}
	return lexicon.NewParameterName(ts.StandardName, ts.Level, ts.Function, ts.Period).String()
}

func describe(standardName, function, level, period string) string {
	words := strings.ReplaceAll(standardName, "_", " ")
	fn := strings.ReplaceAll(function, "_", " ")
	if fn != "" {
		fn = strings.ToUpper(fn[:1]) + fn[1:]
	}
	return fn + " " + words + " at " + level + "m, aggregated over " + period
}
