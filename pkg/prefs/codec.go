package prefs

import (
	"bytes"
	"fmt"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// encodeDocument renders values as a flat TOML document with keys in schema
// field order. go-toml sorts map keys, so each key is marshalled on its own
// and the fragments are concatenated.
func encodeDocument(s *Schema, values []any) ([]byte, error) {
	var buf bytes.Buffer

	for i, f := range s.fields {
		fragment, err := toml.Marshal(map[string]any{f.Key(): f.encodeAny(values[i])})
		if err != nil {
			return nil, fmt.Errorf("encode %q: %w", f.Key(), err)
		}

		buf.Write(fragment)
	}

	return buf.Bytes(), nil
}

// decodeDocument parses a TOML document into its top-level key/value table.
// An empty document decodes to an empty table.
func decodeDocument(data []byte) (map[string]any, error) {
	doc := make(map[string]any)

	err := toml.Unmarshal(data, &doc)
	if err != nil {
		return nil, err
	}

	return doc, nil
}

// resolveValues picks each field's value from doc: the current key, then
// legacy keys in declared order, then the default. A key whose value has the
// wrong type is treated as missing. The returned slice reports, per field,
// which key supplied the value ("" for the default).
func resolveValues(s *Schema, doc map[string]any, onMismatch func(f Descriptor, key string, raw any)) ([]any, []string) {
	values := make([]any, len(s.fields))
	sources := make([]string, len(s.fields))

	for i, f := range s.fields {
		values[i] = f.DefaultValue()

		keys := append([]string{f.Key()}, f.LegacyKeys()...)
		for _, key := range keys {
			raw, ok := doc[key]
			if !ok {
				continue
			}

			v, ok := f.decodeAny(raw)
			if !ok {
				if onMismatch != nil {
					onMismatch(f, key, raw)
				}

				continue
			}

			values[i] = v
			sources[i] = key

			break
		}
	}

	return values, sources
}

// ParseValue converts command-line text into a value for field d.
//
// The text is first read as a TOML value ("true", "42", "['a', 'b']").
// If that does not fit the field's kind, the raw text is used instead,
// so strings need no quoting and durations are written as "90s". A string
// list also accepts comma-separated items.
func ParseValue(d Descriptor, text string) (any, error) {
	var doc map[string]any

	if toml.Unmarshal([]byte("v = "+text), &doc) == nil {
		if v, ok := d.decodeAny(doc["v"]); ok {
			return v, nil
		}
	}

	var raw any = text

	if d.Kind() == KindStrings {
		items := []string{}

		for item := range strings.SplitSeq(text, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}

		raw = items
	}

	v, ok := d.decodeAny(raw)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a valid %s for %q", ErrInvalidValue, text, d.Kind(), d.Name())
	}

	return v, nil
}
