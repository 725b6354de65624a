package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// DefaultBUFRDecoderCommand turns a BUFR file into GeoJSON messages.
const DefaultBUFRDecoderCommand = "bufr2geojson"

// ErrDecode is returned when a BUFR payload cannot be decoded.
var ErrDecode = errors.New("bufr decode failed")

// Decoder turns a binary payload into raw JSON messages.
type Decoder interface {
	Decode(ctx context.Context, data []byte) ([]json.RawMessage, error)
}

// CommandDecoder runs an external decoder on a temporary file holding the
// payload. The command writes either a JSON array of messages or a stream of
// JSON objects to stdout.
type CommandDecoder struct {
	// Command is split on whitespace; the file path is appended.
	Command string
}

func (d CommandDecoder) Decode(ctx context.Context, data []byte) ([]json.RawMessage, error) {
	args := strings.Fields(d.Command)
	if len(args) == 0 {
		args = []string{DefaultBUFRDecoderCommand}
	}

	f, err := os.CreateTemp("", "esoh-*.bufr")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(data); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], append(args[1:], f.Name())...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: %v: %s", ErrDecode, err, strings.TrimSpace(stderr.String()))
	}

	return ParseMessageStream(stdout.Bytes())
}

// ParseMessageStream reads a JSON array of messages or concatenated JSON
// objects.
func ParseMessageStream(out []byte) ([]json.RawMessage, error) {
	out = bytes.TrimSpace(out)
	if len(out) == 0 {
		return nil, nil
	}

	if out[0] == '[' {
		var msgs []json.RawMessage
		if err := json.Unmarshal(out, &msgs); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return msgs, nil
	}

	var msgs []json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(out))
	for {
		var msg json.RawMessage
		err := dec.Decode(&msg)
		if errors.Is(err, io.EOF) {
			return msgs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		msgs = append(msgs, msg)
	}
}
