// Package lexicon holds the controlled vocabularies behind parameter names:
// CF standard names and their aliases, canonical units, ISO-8601 periods,
// vertical levels and WIGOS platform identifiers.
package lexicon

//go:generate curl -fsSL -o data/cf-standard-name-table.xml https://cfconventions.org/Data/cf-standard-names/78/src/cf-standard-name-table.xml

import (
	"bufio"
	"bytes"
	_ "embed"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/govalues/decimal"
)

// VocabularyBaseURL prefixes a standard name to form its vocabulary entry.
const VocabularyBaseURL = "https://vocab.nerc.ac.uk/standard_name/"

var (
	// ErrUnknownStandardName is returned for names missing from the CF vocabulary.
	ErrUnknownStandardName = errors.New("unknown standard name")

	// ErrUnknownUnit is returned when a unit is neither canonical, an alias
	// nor convertible for the standard name.
	ErrUnknownUnit = errors.New("unknown unit")

	// ErrInvalidValue is returned when a value cannot be converted.
	ErrInvalidValue = errors.New("invalid value")
)

var (
	//go:embed data/cf-standard-name-table.xml
	bundledStandardNames []byte

	//go:embed data/cf_aliases.txt
	bundledAliases []byte

	//go:embed data/units.json
	bundledUnits []byte
)

// Config points at vocabulary files that replace the bundled ones.
// Empty paths keep the bundled copy. StandardNamesPath is a CF standard
// name table in its published XML form; AliasesPath adds local
// alias:canonical lines on top of the aliases the table carries.
type Config struct {
	StandardNamesPath string
	AliasesPath       string
	UnitsPath         string
}

// Conversion rewrites a value as value*Mul + Add.
type Conversion struct {
	Add decimal.Decimal
	Mul decimal.Decimal
}

// UnitRecord is the canonical unit of a standard name and the spellings
// that map onto it.
type UnitRecord struct {
	Unit        string
	Aliases     []string
	Conversions map[string]Conversion
}

// Vocabulary is immutable after Load and safe for concurrent use.
type Vocabulary struct {
	version string

	// names maps each standard name to its CF canonical unit.
	names   map[string]string
	aliases map[string]string
	units   map[string]UnitRecord
}

// Load reads the vocabulary from cfg, falling back to the bundled files.
func Load(cfg Config) (*Vocabulary, error) {
	namesRaw, err := readOrBundled(cfg.StandardNamesPath, bundledStandardNames)
	if err != nil {
		return nil, err
	}
	aliasesRaw, err := readOrBundled(cfg.AliasesPath, bundledAliases)
	if err != nil {
		return nil, err
	}
	unitsRaw, err := readOrBundled(cfg.UnitsPath, bundledUnits)
	if err != nil {
		return nil, err
	}

	table, err := parseStandardNameTable(namesRaw)
	if err != nil {
		return nil, err
	}

	v := &Vocabulary{
		version: table.Version,
		names:   make(map[string]string, len(table.Entries)),
		aliases: make(map[string]string, len(table.Aliases)),
	}

	for _, e := range table.Entries {
		v.names[e.ID] = strings.TrimSpace(e.CanonicalUnits)
	}
	for _, a := range table.Aliases {
		v.aliases[a.ID] = a.EntryID
	}

	for i, line := range lines(aliasesRaw) {
		alias, canonical, ok := strings.Cut(line, ":")
		if !ok || alias == "" || canonical == "" {
			return nil, fmt.Errorf("aliases line %d: expected alias:canonical, got %q", i+1, line)
		}
		v.aliases[strings.TrimSpace(alias)] = strings.TrimSpace(canonical)
	}

	v.units, err = parseUnits(unitsRaw)
	if err != nil {
		return nil, err
	}

	return v, nil
}

// MustLoadBundled returns the bundled vocabulary and panics on error.
func MustLoadBundled() *Vocabulary {
	v, err := Load(Config{})
	if err != nil {
		panic(err)
	}
	return v
}

func readOrBundled(path string, bundled []byte) ([]byte, error) {
	if path == "" {
		return bundled, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary file: %w", err)
	}
	return data, nil
}

func lines(data []byte) []string {
	var out []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

type standardNameTable struct {
	Version string `xml:"version_number"`
	Entries []struct {
		ID             string `xml:"id,attr"`
		CanonicalUnits string `xml:"canonical_units"`
	} `xml:"entry"`
	Aliases []struct {
		ID      string `xml:"id,attr"`
		EntryID string `xml:"entry_id"`
	} `xml:"alias"`
}

func parseStandardNameTable(data []byte) (*standardNameTable, error) {
	var table standardNameTable
	if err := xml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse standard name table: %w", err)
	}
	if len(table.Entries) == 0 {
		return nil, errors.New("parse standard name table: no entries")
	}
	return &table, nil
}

type unitFile map[string]struct {
	Unit        string   `json:"unit"`
	Aliases     []string `json:"aliases"`
	Conversions map[string]struct {
		Add json.Number `json:"add"`
		Mul json.Number `json:"mul"`
	} `json:"conversions"`
}

func parseUnits(data []byte) (map[string]UnitRecord, error) {
	var raw unitFile
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse units: %w", err)
	}

	units := make(map[string]UnitRecord, len(raw))
	for name, rec := range raw {
		out := UnitRecord{
			Unit:        rec.Unit,
			Aliases:     rec.Aliases,
			Conversions: make(map[string]Conversion, len(rec.Conversions)),
		}
		for src, c := range rec.Conversions {
			add, err := decimal.Parse(numberOr(c.Add, "0"))
			if err != nil {
				return nil, fmt.Errorf("parse units: %s %s add: %w", name, src, err)
			}
			mul, err := decimal.Parse(numberOr(c.Mul, "1"))
			if err != nil {
				return nil, fmt.Errorf("parse units: %s %s mul: %w", name, src, err)
			}
			out.Conversions[src] = Conversion{Add: add, Mul: mul}
		}
		units[name] = out
	}
	return units, nil
}

func numberOr(n json.Number, def string) string {
	if n == "" {
		return def
	}
	return n.String()
}

// ValidateStandardName rewrites aliases to their canonical name and
// rejects names outside the vocabulary.
func (v *Vocabulary) ValidateStandardName(name string) (string, error) {
	if canonical, ok := v.aliases[name]; ok {
		name = canonical
	}
	if _, ok := v.names[name]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownStandardName, name)
	}
	return name, nil
}

// Version is the version number of the loaded standard name table.
func (v *Vocabulary) Version() string {
	return v.version
}

// unit returns the unit record of a standard name: the configured record
// when there is one, otherwise the bare CF canonical unit.
func (v *Vocabulary) unit(standardName string) (UnitRecord, bool) {
	if rec, ok := v.units[standardName]; ok {
		return rec, true
	}
	cu, ok := v.names[standardName]
	return UnitRecord{Unit: cu}, ok
}

// CanonicaliseUnit maps unit onto the canonical unit of standardName.
// An alias rewrites only the unit. A conversion rewrites the value too,
// keeping as many fractional digits as the input had. Standard names
// without a configured record accept only their CF canonical unit.
func (v *Vocabulary) CanonicaliseUnit(standardName, unit, value string) (string, string, error) {
	rec, ok := v.unit(standardName)
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnknownStandardName, standardName)
	}
	if unit == rec.Unit {
		return unit, value, nil
	}

	for _, alias := range rec.Aliases {
		if unit == alias {
			return rec.Unit, value, nil
		}
	}

	conv, ok := rec.Conversions[unit]
	if !ok {
		return "", "", fmt.Errorf("%w: %q for %s, expected %q", ErrUnknownUnit, unit, standardName, rec.Unit)
	}

	converted, err := conv.Apply(value)
	if err != nil {
		return "", "", err
	}
	return rec.Unit, converted, nil
}

// Apply converts value, preserving its number of fractional digits.
func (c Conversion) Apply(value string) (string, error) {
	d, err := decimal.Parse(strings.TrimSpace(value))
	if err != nil {
		return "", fmt.Errorf("%w: %q is not a decimal number", ErrInvalidValue, value)
	}
	scale := d.Scale()

	d, err = d.Mul(c.Mul)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	d, err = d.Add(c.Add)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}

	return d.Round(scale).Pad(scale).String(), nil
}

// VocabularyURL returns the vocabulary entry of a standard name.
func VocabularyURL(standardName string) string {
	return VocabularyBaseURL + standardName
}
