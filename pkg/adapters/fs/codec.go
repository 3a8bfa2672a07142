package fs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/orbit/pkg/core"
)

// Codec reads and writes the session record in one file format.
type Codec interface {
	// Ext is the file extension, including the dot.
	Ext() string
	Encode(rec core.Record) ([]byte, error)
	Decode(data []byte) (core.Record, error)
}

// CodecFor returns the codec for a format name or extension
// ("json", ".yaml", "yml"). Unknown formats fall back to JSON.
func CodecFor(format string) Codec {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(format)), ".") {
	case "yaml", "yml":
		return YAMLCodec{}
	default:
		return JSONCodec{}
	}
}

// JSONCodec stores the record as indented JSON.
type JSONCodec struct{}

func (JSONCodec) Ext() string { return ".json" }

func (JSONCodec) Encode(rec core.Record) ([]byte, error) {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func (JSONCodec) Decode(data []byte) (core.Record, error) {
	var rec core.Record
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&rec); err != nil {
		return core.Record{}, fmt.Errorf("invalid json: %w", err)
	}
	return rec, nil
}

// YAMLCodec stores the record as YAML, for people who edit it by hand.
type YAMLCodec struct{}

func (YAMLCodec) Ext() string { return ".yaml" }

func (YAMLCodec) Encode(rec core.Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(rec); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (YAMLCodec) Decode(data []byte) (core.Record, error) {
	var rec core.Record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return core.Record{}, fmt.Errorf("invalid yaml: %w", err)
	}
	return rec, nil
}
