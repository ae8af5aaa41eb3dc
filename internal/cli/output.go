package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/calvinalkan/prefstore/pkg/prefs"
)

// Output formats.
const (
	formatTOML = "toml"
	formatJSON = "json"
	formatYAML = "yaml"
)

func validFormat(f string) bool {
	return f == formatTOML || f == formatJSON || f == formatYAML
}

// renderRecord renders the record's values keyed by storage key, in field
// order.
func renderRecord(rec *prefs.Record, format string) (string, error) {
	switch format {
	case formatJSON:
		return renderJSON(rec.Values())
	case formatYAML:
		return renderYAML(rec.Values())
	default:
		return rec.String(), nil
	}
}

func renderJSON(values []prefs.FieldValue) (string, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')

	for i, fv := range values {
		if i > 0 {
			buf.WriteByte(',')
		}

		key, err := json.Marshal(fv.Key)
		if err != nil {
			return "", err
		}

		val, err := json.Marshal(plainValue(fv.Value))
		if err != nil {
			return "", fmt.Errorf("encode %s: %w", fv.Key, err)
		}

		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}

	buf.WriteByte('}')

	var out bytes.Buffer

	err := json.Indent(&out, buf.Bytes(), "", "  ")
	if err != nil {
		return "", err
	}

	out.WriteByte('\n')

	return out.String(), nil
}

func renderYAML(values []prefs.FieldValue) (string, error) {
	doc := &yaml.Node{Kind: yaml.MappingNode}

	for _, fv := range values {
		var val yaml.Node

		err := val.Encode(plainValue(fv.Value))
		if err != nil {
			return "", fmt.Errorf("encode %s: %w", fv.Key, err)
		}

		doc.Content = append(doc.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: fv.Key}, &val)
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return "", err
	}

	return string(out), nil
}

// plainValue converts values to the form they take in a document.
func plainValue(v any) any {
	if d, ok := v.(time.Duration); ok {
		return d.String()
	}

	return v
}

// formatValue renders a single value the way "set" accepts it back.
func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []string:
		return strings.Join(t, ",")
	case time.Duration:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
