// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Structured extraction from JSON summaries

package harvest

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
)

// StructuredStrategy parses every JSON file in the workspace and walks the
// decoded structure looking for factor-like objects. Malformed JSON in a
// given file is logged and that file is skipped.
type StructuredStrategy struct {
	log *zap.Logger
}

// NewStructuredStrategy creates the JSON extraction strategy.
func NewStructuredStrategy(log *zap.Logger) *StructuredStrategy {
	return &StructuredStrategy{log: log}
}

// Name identifies the strategy in logs.
func (s *StructuredStrategy) Name() string { return "structured-json" }

// Extract scans every *.json file under root.
func (s *StructuredStrategy) Extract(root string) ([]FactorRecord, error) {
	matches, err := doublestar.Glob(os.DirFS(root), "**/*.json")
	if err != nil {
		return nil, err
	}

	var records []FactorRecord
	for _, rel := range matches {
		path := filepath.Join(root, rel)
		raw, err := os.ReadFile(path)
		if err != nil {
			s.log.Debug("skipping unreadable file", zap.String("file", path), zap.Error(err))
			continue
		}

		decoded, err := decodeOrdered(json.NewDecoder(bytes.NewReader(raw)))
		if err != nil {
			s.log.Debug("skipping malformed JSON", zap.String("file", path), zap.Error(err))
			continue
		}

		records = append(records, walkValue(decoded)...)
	}
	return records, nil
}

// orderedObject is a decoded JSON object that remembers its key order, so
// the walk visits values in document order. Plain map decoding would visit
// siblings in randomized iteration order and make the output list
// irreproducible.
type orderedObject struct {
	keys   []string
	fields map[string]any
}

// decodeOrdered decodes the next JSON value from dec. Objects become
// *orderedObject, arrays []any, scalars the usual string/float64/bool/nil.
func decodeOrdered(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}

	switch delim {
	case '{':
		obj := &orderedObject{fields: make(map[string]any)}
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key := keyTok.(string)
			value, err := decodeOrdered(dec)
			if err != nil {
				return nil, err
			}
			obj.keys = append(obj.keys, key)
			obj.fields[key] = value
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return obj, nil
	case '[':
		arr := []any{}
		for dec.More() {
			value, err := decodeOrdered(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, value)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return arr, nil
	}
	return tok, nil
}

// walkValue recursively visits decoded JSON values. Objects and arrays are
// the only containers; every object is offered to normalizeObject before
// its values are visited, in document order.
func walkValue(v any) []FactorRecord {
	var records []FactorRecord

	switch value := v.(type) {
	case *orderedObject:
		if record := normalizeObject(value.fields); record != nil {
			records = append(records, *record)
		}
		for _, key := range value.keys {
			records = append(records, walkValue(value.fields[key])...)
		}
	case []any:
		for _, item := range value {
			records = append(records, walkValue(item)...)
		}
	}

	return records
}

// normalizeObject turns an object into a FactorRecord when it carries a
// recognizable name-like key. Returns nil otherwise.
func normalizeObject(obj map[string]any) *FactorRecord {
	name := firstString(obj, "name", "factor_name", "factor")
	if name == "" {
		return nil
	}

	record := FactorRecord{
		Name:        name,
		Expression:  firstString(obj, "expression", "formula", "expr"),
		ICMean:      numberField(obj, "ic_mean"),
		ICIR:        numberField(obj, "ic_ir"),
		Description: DefaultDescription,
		Enabled:     true,
	}
	if desc, ok := obj["description"].(string); ok && desc != "" {
		record.Description = desc
	}
	return &record
}

func firstString(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := obj[key]; ok && v != nil {
			if s := stringify(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func numberField(obj map[string]any, key string) *float64 {
	if v, ok := obj[key]; ok {
		if n, ok := v.(float64); ok {
			return &n
		}
	}
	return nil
}
