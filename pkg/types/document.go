package types

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is a document serialization.
type Format string

// Supported document formats.
const (
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatJSONL Format = "jsonl"
)

// FormatFromPath picks a format from a file extension. Unknown extensions
// fall back to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".jsonl", ".ndjson":
		return FormatJSONL
	}
	return FormatJSON
}

// VersionKey is the optional document format marker.
const VersionKey = "_version"

// Document is the serialized form of one collection: a top-level object
// whose collection key holds the records, plus an optional "_version"
// marker. Records stay raw so a malformed entry can be skipped without
// failing the rest of the document.
type Document struct {
	Kind    Kind
	Version int
	Records []json.RawMessage
}

// NewDocument encodes items as a document of the given kind.
func NewDocument[T any](kind Kind, version int, items []T) (*Document, error) {
	doc := &Document{Kind: kind, Version: version, Records: make([]json.RawMessage, 0, len(items))}
	for i := range items {
		raw, err := json.Marshal(&items[i])
		if err != nil {
			return nil, fmt.Errorf("encoding %s record %d: %w", kind, i, err)
		}
		doc.Records = append(doc.Records, raw)
	}
	return doc, nil
}

// MarshalJSON renders {"<kind>": [...], "_version": n}.
func (d *Document) MarshalJSON() ([]byte, error) {
	records := d.Records
	if records == nil {
		records = []json.RawMessage{}
	}
	out := map[string]any{string(d.Kind): records}
	if d.Version > 0 {
		out[VersionKey] = d.Version
	}
	return json.Marshal(out)
}

// ReadDocument parses a document of the given kind. The classes collection
// also accepts the keyed form {"classes": {"Wizard": {...}}}; records
// missing a name take it from their key.
func ReadDocument(r io.Reader, kind Kind, format Format) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}
	switch format {
	case FormatJSON, "":
		return decodeJSONDocument(data, kind)
	case FormatYAML:
		var tree map[string]any
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
		}
		js, err := json.Marshal(normalizeYAML(tree))
		if err != nil {
			return nil, fmt.Errorf("converting YAML document: %w", err)
		}
		return decodeJSONDocument(js, kind)
	case FormatJSONL:
		return decodeJSONLDocument(data, kind)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// Write serializes the document in the given format.
func (d *Document) Write(w io.Writer, format Format) error {
	switch format {
	case FormatJSON, "":
		data, err := json.MarshalIndent(d, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding document: %w", err)
		}
		data = append(data, '\n')
		_, err = w.Write(data)
		return err
	case FormatYAML:
		data, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("encoding document: %w", err)
		}
		var tree any
		if err := json.Unmarshal(data, &tree); err != nil {
			return fmt.Errorf("encoding document: %w", err)
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(tree); err != nil {
			return fmt.Errorf("encoding YAML document: %w", err)
		}
		return enc.Close()
	case FormatJSONL:
		bw := bufio.NewWriter(w)
		for _, rec := range d.Records {
			var buf bytes.Buffer
			if err := json.Compact(&buf, rec); err != nil {
				return fmt.Errorf("compacting record: %w", err)
			}
			buf.WriteByte('\n')
			if _, err := bw.Write(buf.Bytes()); err != nil {
				return fmt.Errorf("writing record: %w", err)
			}
		}
		return bw.Flush()
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

func decodeJSONDocument(data []byte, kind Kind) (*Document, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}
	doc := &Document{Kind: kind}
	if raw, ok := top[VersionKey]; ok {
		if err := json.Unmarshal(raw, &doc.Version); err != nil {
			return nil, fmt.Errorf("%w: invalid %s: %w", ErrMalformedRecord, VersionKey, err)
		}
	}
	body, ok := top[string(kind)]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q collection", ErrKindMismatch, kind)
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return doc, decodeKeyedRecords(doc, trimmed)
	}
	if err := json.Unmarshal(trimmed, &doc.Records); err != nil {
		return nil, fmt.Errorf("%w: %q is not a list: %w", ErrMalformedRecord, kind, err)
	}
	return doc, nil
}

func decodeKeyedRecords(doc *Document, body []byte) error {
	var keyed map[string]json.RawMessage
	if err := json.Unmarshal(body, &keyed); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}
	names := make([]string, 0, len(keyed))
	for name := range keyed {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		raw := keyed[name]
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			// Keep it so the record-level decoder can report and skip it.
			doc.Records = append(doc.Records, raw)
			continue
		}
		if _, ok := fields["name"]; !ok {
			fields["name"], _ = json.Marshal(name)
			raw, _ = json.Marshal(fields)
		}
		doc.Records = append(doc.Records, raw)
	}
	return nil
}

func decodeJSONLDocument(data []byte, kind Kind) (*Document, error) {
	doc := &Document{Kind: kind}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		doc.Records = append(doc.Records, json.RawMessage(cp))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	return doc, nil
}

// normalizeYAML converts map[any]any nodes, which yaml.v3 produces for
// non-string keys, into JSON-compatible maps.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeYAML(val)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return out
	case []any:
		for i, val := range t {
			t[i] = normalizeYAML(val)
		}
		return t
	}
	return v
}

// DecodeRecord unmarshals one raw record into a fresh T and validates it.
// Any failure wraps ErrMalformedRecord.
func DecodeRecord[T any, PT interface {
	*T
	Validate() error
}](raw json.RawMessage) (T, error) {
	var item T
	if !json.Valid(raw) {
		return item, fmt.Errorf("%w: invalid JSON", ErrMalformedRecord)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return item, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}
	if _, ok := fields["name"]; !ok {
		return item, fmt.Errorf("%w: missing name", ErrMalformedRecord)
	}
	if err := json.Unmarshal(raw, &item); err != nil {
		return item, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}
	if err := PT(&item).Validate(); err != nil {
		return item, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}
	return item, nil
}
