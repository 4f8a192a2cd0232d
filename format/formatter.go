package format

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// Formatter converts in-memory objects to and from their persisted byte form.
// It is used by the command journal, the snapshot manager and for defensive
// copying at the engine boundary.
type Formatter interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// GobFormatter is the default Formatter, backed by encoding/gob.
type GobFormatter struct{}

var _ Formatter = (*GobFormatter)(nil)

func NewGobFormatter() *GobFormatter {
	return &GobFormatter{}
}

func (f *GobFormatter) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("gob encode: %w", err)
	}
	return buf.Bytes(), nil
}

func (f *GobFormatter) Unmarshal(data []byte, v any) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return fmt.Errorf("gob decode: %w", err)
	}
	return nil
}
