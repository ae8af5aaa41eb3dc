package prefs

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// Kind is the semantic type of a field.
type Kind uint8

// Supported field kinds.
const (
	KindBool Kind = iota + 1
	KindInt
	KindFloat
	KindString
	KindStrings
	KindDuration
)

var kindNames = map[Kind]string{
	KindBool:     "bool",
	KindInt:      "int",
	KindFloat:    "float",
	KindString:   "string",
	KindStrings:  "strings",
	KindDuration: "duration",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind parses the names printed by [Kind.String].
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}

	return 0, fmt.Errorf("%w: unknown kind %q", ErrInvalidSchema, s)
}

// Descriptor is the type-erased view of a [Field] used by [Schema] and
// [Record]. It is implemented only by *Field[T].
type Descriptor interface {
	// Name is the field's name in code and in tools.
	Name() string

	// Key is the storage key written to the document.
	Key() string

	// LegacyKeys are older storage keys consulted, in order, when Key is
	// missing from a document.
	LegacyKeys() []string

	Kind() Kind

	// DefaultValue returns a copy of the default.
	DefaultValue() any

	decodeAny(raw any) (any, bool)
	encodeAny(v any) any
	equalAny(a, b any) bool
	cloneAny(v any) any
}

// FieldOption customizes a field declaration.
type FieldOption func(*fieldOptions)

type fieldOptions struct {
	key    string
	legacy []string
}

// Key overrides the storage key. By default the key equals the field name.
func Key(key string) FieldOption {
	return func(o *fieldOptions) { o.key = key }
}

// Legacy declares older storage keys for the field, consulted in the given
// order when the current key is absent. Renaming a field's key keeps saved
// data as long as the old key is listed here.
func Legacy(keys ...string) FieldOption {
	return func(o *fieldOptions) { o.legacy = append(o.legacy, keys...) }
}

// Field is a typed field declaration. Read it with [Field.Get], write it with
// [Field.Save] or, inside an edit batch, [Field.Set].
type Field[T any] struct {
	name   string
	key    string
	legacy []string
	kind   Kind
	def    T

	decode func(raw any) (T, bool)
	encode func(v T) any
	equal  func(a, b T) bool
	clone  func(v T) T
}

func newField[T any](kind Kind, name string, def T, opts []FieldOption) *Field[T] {
	var o fieldOptions
	for _, opt := range opts {
		opt(&o)
	}

	key := o.key
	if key == "" {
		key = name
	}

	return &Field[T]{
		name:   name,
		key:    key,
		legacy: o.legacy,
		kind:   kind,
		def:    def,
		encode: func(v T) any { return v },
		clone:  func(v T) T { return v },
	}
}

func comparableEqual[T comparable](a, b T) bool { return a == b }

// Bool declares a boolean field.
func Bool(name string, def bool, opts ...FieldOption) *Field[bool] {
	f := newField(KindBool, name, def, opts)
	f.decode = decodeBool
	f.equal = comparableEqual[bool]

	return f
}

// Int declares an integer field.
func Int(name string, def int64, opts ...FieldOption) *Field[int64] {
	f := newField(KindInt, name, def, opts)
	f.decode = decodeInt
	f.equal = comparableEqual[int64]

	return f
}

// Float declares a floating point field. Integer document values are accepted.
func Float(name string, def float64, opts ...FieldOption) *Field[float64] {
	f := newField(KindFloat, name, def, opts)
	f.decode = decodeFloat
	f.equal = comparableEqual[float64]

	return f
}

// String declares a string field.
func String(name string, def string, opts ...FieldOption) *Field[string] {
	f := newField(KindString, name, def, opts)
	f.decode = decodeString
	f.equal = comparableEqual[string]

	return f
}

// Strings declares a string list field. Values are copied on the way in and
// out, so callers never alias the record's storage.
func Strings(name string, def []string, opts ...FieldOption) *Field[[]string] {
	f := newField(KindStrings, name, cloneStrings(def), opts)
	f.decode = decodeStrings
	f.encode = func(v []string) any { return cloneStrings(v) }
	f.equal = func(a, b []string) bool { return slices.Equal(a, b) }
	f.clone = cloneStrings

	return f
}

// Duration declares a duration field, stored as a Go duration string ("1m30s").
func Duration(name string, def time.Duration, opts ...FieldOption) *Field[time.Duration] {
	f := newField(KindDuration, name, def, opts)
	f.decode = decodeDuration
	f.encode = func(v time.Duration) any { return v.String() }
	f.equal = comparableEqual[time.Duration]

	return f
}

// NewDescriptor declares a field from a kind and an untyped default, for
// tools that read schemas from configuration. def goes through the kind's
// decoder, so "30s" is a valid default for [KindDuration].
func NewDescriptor(kind Kind, name string, def any, opts ...FieldOption) (Descriptor, error) {
	var (
		d  Descriptor
		ok bool
	)

	switch kind {
	case KindBool:
		var v bool
		v, ok = decodeOrZero(def, decodeBool)
		d = Bool(name, v, opts...)
	case KindInt:
		var v int64
		v, ok = decodeOrZero(def, decodeInt)
		d = Int(name, v, opts...)
	case KindFloat:
		var v float64
		v, ok = decodeOrZero(def, decodeFloat)
		d = Float(name, v, opts...)
	case KindString:
		var v string
		v, ok = decodeOrZero(def, decodeString)
		d = String(name, v, opts...)
	case KindStrings:
		var v []string
		v, ok = decodeOrZero(def, decodeStrings)
		d = Strings(name, v, opts...)
	case KindDuration:
		var v time.Duration
		v, ok = decodeOrZero(def, decodeDuration)
		d = Duration(name, v, opts...)
	default:
		return nil, fmt.Errorf("%w: field %q: unknown kind %v", ErrInvalidSchema, name, kind)
	}

	if !ok {
		return nil, fmt.Errorf("%w: field %q: default %v (%T) is not a valid %v", ErrInvalidSchema, name, def, def, kind)
	}

	return d, nil
}

// decodeOrZero treats a nil default as the zero value.
func decodeOrZero[T any](raw any, decode func(any) (T, bool)) (T, bool) {
	if raw == nil {
		var zero T

		return zero, true
	}

	return decode(raw)
}

func (f *Field[T]) Name() string         { return f.name }
func (f *Field[T]) Key() string          { return f.key }
func (f *Field[T]) LegacyKeys() []string { return slices.Clone(f.legacy) }
func (f *Field[T]) Kind() Kind           { return f.kind }
func (f *Field[T]) DefaultValue() any    { return f.clone(f.def) }

// Default returns the declared default.
func (f *Field[T]) Default() T { return f.clone(f.def) }

func (f *Field[T]) decodeAny(raw any) (any, bool) {
	v, ok := f.decode(raw)
	if !ok {
		return nil, false
	}

	return v, true
}

func (f *Field[T]) encodeAny(v any) any {
	return f.encode(v.(T))
}

func (f *Field[T]) equalAny(a, b any) bool {
	return f.equal(a.(T), b.(T))
}

func (f *Field[T]) cloneAny(v any) any {
	return f.clone(v.(T))
}

func decodeBool(raw any) (bool, bool) {
	v, ok := raw.(bool)

	return v, ok
}

func decodeInt(raw any) (int64, bool) {
	switch v := raw.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case uint32:
		return int64(v), true
	default:
		return 0, false
	}
}

func decodeFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

func decodeString(raw any) (string, bool) {
	v, ok := raw.(string)

	return v, ok
}

func decodeStrings(raw any) ([]string, bool) {
	switch v := raw.(type) {
	case []string:
		return cloneStrings(v), true
	case []any:
		out := make([]string, 0, len(v))

		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}

			out = append(out, s)
		}

		return out, true
	default:
		return nil, false
	}
}

func decodeDuration(raw any) (time.Duration, bool) {
	switch v := raw.(type) {
	case time.Duration:
		return v, true
	case string:
		d, err := time.ParseDuration(v)

		return d, err == nil
	default:
		return 0, false
	}
}

// cloneStrings copies s; nil becomes an empty list so documents always
// carry the key.
func cloneStrings(s []string) []string {
	if s == nil {
		return []string{}
	}

	return slices.Clone(s)
}

// Schema is a record type: an ordered list of fields plus the record type
// name and the document file name.
//
// The name identifies the record type for the instance registry. Two schemas
// with different names may point at the same file, which is how a newer
// schema reads documents written by an older one.
type Schema struct {
	name   string
	file   string
	fields []Descriptor

	byName  map[string]int
	byField map[Descriptor]int
}

// NewSchema validates and builds a schema.
//
// file is the document name without extension; ".toml" is appended. It must
// be a single path element.
//
// Storage keys must be unique, and a legacy key may not equal any field's
// current key or another field's legacy key.
func NewSchema(name, file string, fields ...Descriptor) (*Schema, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: name is empty", ErrInvalidSchema)
	}

	file = strings.TrimSuffix(file, documentExt)
	if file == "" || file == "." || file == ".." || strings.ContainsAny(file, `/\`) || filepath.Base(file) != file {
		return nil, fmt.Errorf("%w: %s: file %q must be a plain file name", ErrInvalidSchema, name, file)
	}

	s := &Schema{
		name:    name,
		file:    file,
		fields:  make([]Descriptor, 0, len(fields)),
		byName:  make(map[string]int, len(fields)),
		byField: make(map[Descriptor]int, len(fields)),
	}

	keys := make(map[string]string, len(fields))
	legacyOwner := make(map[string]string)

	for _, f := range fields {
		if f == nil {
			return nil, fmt.Errorf("%w: %s: nil field", ErrInvalidSchema, name)
		}

		if f.Name() == "" || f.Key() == "" {
			return nil, fmt.Errorf("%w: %s: field name and key must be non-empty", ErrInvalidSchema, name)
		}

		if _, dup := s.byName[f.Name()]; dup {
			return nil, fmt.Errorf("%w: %s: duplicate field %q", ErrInvalidSchema, name, f.Name())
		}

		if other, dup := keys[f.Key()]; dup {
			return nil, fmt.Errorf("%w: %s: fields %q and %q share key %q", ErrInvalidSchema, name, other, f.Name(), f.Key())
		}

		keys[f.Key()] = f.Name()
		s.byName[f.Name()] = len(s.fields)
		s.byField[f] = len(s.fields)
		s.fields = append(s.fields, f)
	}

	for _, f := range s.fields {
		for _, old := range f.LegacyKeys() {
			if owner, clash := keys[old]; clash {
				return nil, fmt.Errorf("%w: %s: legacy key %q of %q is the current key of %q", ErrInvalidSchema, name, old, f.Name(), owner)
			}

			if owner, clash := legacyOwner[old]; clash && owner != f.Name() {
				return nil, fmt.Errorf("%w: %s: legacy key %q declared by %q and %q", ErrInvalidSchema, name, old, owner, f.Name())
			}

			legacyOwner[old] = f.Name()
		}
	}

	return s, nil
}

// MustSchema is like [NewSchema] but panics on error. Intended for
// package-level declarations.
func MustSchema(name, file string, fields ...Descriptor) *Schema {
	s, err := NewSchema(name, file, fields...)
	if err != nil {
		panic(err)
	}

	return s
}

const documentExt = ".toml"

// Name returns the record type name.
func (s *Schema) Name() string { return s.name }

// File returns the document file name including the ".toml" extension.
func (s *Schema) File() string { return s.file + documentExt }

// Fields returns the fields in declaration order.
func (s *Schema) Fields() []Descriptor { return slices.Clone(s.fields) }

// Field looks up a field by name.
func (s *Schema) Field(name string) (Descriptor, bool) {
	i, ok := s.byName[name]
	if !ok {
		return nil, false
	}

	return s.fields[i], true
}

func (s *Schema) indexOf(f Descriptor) int {
	i, ok := s.byField[f]
	if !ok {
		panic(fmt.Sprintf("prefs: field %q is not part of schema %s", f.Name(), s.name))
	}

	return i
}

func (s *Schema) defaults() []any {
	values := make([]any, len(s.fields))
	for i, f := range s.fields {
		values[i] = f.DefaultValue()
	}

	return values
}
