package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SubDocument is a nested value stored as one serialized column. Stored
// sub-documents carry a version envelope: {"_version": n, "data": ...}.
type SubDocument interface {
	SubDocVersion() int
	Validate() error
}

type subDocEnvelope struct {
	Version *int            `json:"_version"`
	Data    json.RawMessage `json:"data"`
}

// EncodeSubDoc validates v and returns its enveloped serialized form.
func EncodeSubDoc(v SubDocument) (string, error) {
	if err := v.Validate(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedSubDocument, err)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding sub-document: %w", err)
	}
	version := v.SubDocVersion()
	out, err := json.Marshal(subDocEnvelope{Version: &version, Data: data})
	if err != nil {
		return "", fmt.Errorf("encoding sub-document envelope: %w", err)
	}
	return string(out), nil
}

// DecodeSubDoc parses raw into v and validates the result. Payloads written
// before envelopes existed (a bare array or object without "_version") are
// read as version 0. An empty column decodes to the zero value.
func DecodeSubDoc(raw string, v SubDocument) error {
	payload, version, err := unwrapSubDoc(raw)
	if err != nil {
		return err
	}
	if version > v.SubDocVersion() {
		return fmt.Errorf("%w: %d", ErrSubDocumentVersion, version)
	}
	if payload != nil {
		if err := json.Unmarshal(payload, v); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedSubDocument, err)
		}
	}
	if err := v.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedSubDocument, err)
	}
	return nil
}

// SubDocVersionOf reports the envelope version of raw, or 0 for a legacy
// payload.
func SubDocVersionOf(raw string) (int, error) {
	_, version, err := unwrapSubDoc(raw)
	return version, err
}

func unwrapSubDoc(raw string) (json.RawMessage, int, error) {
	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, 0, nil
	}
	if !json.Valid(trimmed) {
		return nil, 0, fmt.Errorf("%w: invalid JSON", ErrMalformedSubDocument)
	}
	if trimmed[0] == '{' {
		var env subDocEnvelope
		if err := json.Unmarshal(trimmed, &env); err == nil && env.Version != nil {
			return env.Data, *env.Version, nil
		}
	}
	return json.RawMessage(trimmed), 0, nil
}

// Feature is a named block of rules text: a stat block trait or action, a
// lineage trait, or a background feature.
type Feature struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Features is a list sub-document of named rules blocks.
type Features []Feature

func (Features) SubDocVersion() int { return 1 }

func (f Features) Validate() error {
	for i, feat := range f {
		if feat.Name == "" {
			return fmt.Errorf("feature %d has no name", i)
		}
	}
	return nil
}
