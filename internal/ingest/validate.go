package ingest

import (
	"bytes"
	"compress/gzip"
	_ "embed"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/eurodeo/esoh/internal/lexicon"
)

//go:embed schemas/observation.json
var observationSchema []byte

// ErrInvalidMessage wraps every validation failure.
var ErrInvalidMessage = errors.New("invalid message")

// Content encodings.
const (
	EncodingUTF8   = "utf-8"
	EncodingBase64 = "base64"
	EncodingGzip   = "gzip"
)

// MaxDecodedContent caps the size of a content value after base64 and gzip
// decoding.
const MaxDecodedContent = 1 << 20

// Validator checks envelopes against the message schema and then applies the
// semantic checks, rewriting the envelope into canonical form.
type Validator struct {
	schema *gojsonschema.Schema
	vocab  *lexicon.Vocabulary
}

// NewValidator compiles the bundled schema.
func NewValidator(vocab *lexicon.Vocabulary) (*Validator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(observationSchema))
	if err != nil {
		return nil, fmt.Errorf("compile observation schema: %w", err)
	}
	return &Validator{schema: schema, vocab: vocab}, nil
}

// Validate parses one raw message and returns it in canonical form.
func (v *Validator) Validate(raw []byte) (*Envelope, error) {
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidMessage, strings.Join(msgs, "; "))
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	if err := v.normalise(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return &env, nil
}

func (v *Validator) normalise(env *Envelope) error {
	p := &env.Properties
	c := &p.Content

	sn, err := v.vocab.ValidateStandardName(c.StandardName)
	if err != nil {
		return err
	}
	c.StandardName = sn

	value, err := decodeContent(c.Encoding, c.Value)
	if err != nil {
		return err
	}
	c.Encoding = EncodingUTF8
	c.Value = value

	unit, value, err := v.vocab.CanonicaliseUnit(c.StandardName, c.Unit, c.Value)
	if err != nil {
		return err
	}
	c.Unit = unit
	c.Value = value
	c.Size = len(value)

	if err := lexicon.ValidatePlatform(p.Platform); err != nil {
		return err
	}

	dt, err := parseUTC(p.Datetime)
	if err != nil {
		return err
	}
	p.Datetime = dt.Format(time.RFC3339Nano)

	seconds, err := lexicon.ParseDuration(p.Period)
	if err != nil {
		return err
	}
	p.PeriodSeconds = seconds
	p.Period = lexicon.FormatDuration(seconds)

	cm, err := lexicon.ParseLevel(string(p.Level))
	if err != nil {
		return err
	}
	p.LevelCm = cm
	p.Level = Level(lexicon.FormatLevel(cm))

	if !lexicon.IsFunction(p.Function) {
		return fmt.Errorf("unknown function %q", p.Function)
	}
	return nil
}

// parseUTC accepts RFC 3339 timestamps with a zero offset only.
func parseUTC(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("datetime %q is not RFC 3339", s)
	}
	if _, offset := t.Zone(); offset != 0 {
		return time.Time{}, fmt.Errorf("datetime %q is not in UTC", s)
	}
	return t.UTC(), nil
}

func decodeContent(encoding, value string) (string, error) {
	switch encoding {
	case "", EncodingUTF8:
		return value, nil
	case EncodingBase64:
		b, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			return "", fmt.Errorf("content: invalid base64: %v", err)
		}
		return string(b), nil
	case EncodingGzip:
		b, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			return "", fmt.Errorf("content: invalid base64: %v", err)
		}
		zr, err := gzip.NewReader(bytes.NewReader(b))
		if err != nil {
			return "", fmt.Errorf("content: invalid gzip stream: %v", err)
		}
		defer zr.Close()
		out, err := io.ReadAll(io.LimitReader(zr, MaxDecodedContent+1))
		if err != nil {
			return "", fmt.Errorf("content: invalid gzip stream: %v", err)
		}
		if len(out) > MaxDecodedContent {
			return "", fmt.Errorf("content: decoded value exceeds %d bytes", MaxDecodedContent)
		}
		return string(out), nil
	default:
		return "", fmt.Errorf("content: unsupported encoding %q", encoding)
	}
}
