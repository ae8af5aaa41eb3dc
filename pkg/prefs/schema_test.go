package prefs_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/prefstore/pkg/prefs"
)

func Test_NewSchema_Rejects_Invalid_Declarations(t *testing.T) {
	t.Parallel()

	a := prefs.Bool("a", false)

	tests := []struct {
		name   string
		schema string
		file   string
		fields []prefs.Descriptor
	}{
		{name: "empty name", schema: "", file: "f", fields: []prefs.Descriptor{a}},
		{name: "empty file", schema: "S", file: "", fields: []prefs.Descriptor{a}},
		{name: "file with separator", schema: "S", file: "dir/f", fields: []prefs.Descriptor{a}},
		{name: "dot dot file", schema: "S", file: "..", fields: []prefs.Descriptor{a}},
		{name: "nil field", schema: "S", file: "f", fields: []prefs.Descriptor{nil}},
		{name: "empty field name", schema: "S", file: "f", fields: []prefs.Descriptor{prefs.Int("", 0)}},
		{name: "duplicate field name", schema: "S", file: "f", fields: []prefs.Descriptor{a, prefs.Int("a", 0, prefs.Key("other"))}},
		{name: "duplicate key", schema: "S", file: "f", fields: []prefs.Descriptor{a, prefs.Int("b", 0, prefs.Key("a"))}},
		{name: "legacy equals current key", schema: "S", file: "f", fields: []prefs.Descriptor{a, prefs.Int("b", 0, prefs.Legacy("a"))}},
		{
			name:   "legacy shared by two fields",
			schema: "S",
			file:   "f",
			fields: []prefs.Descriptor{prefs.Int("b", 0, prefs.Legacy("old")), prefs.Int("c", 0, prefs.Legacy("old"))},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := prefs.NewSchema(tc.schema, tc.file, tc.fields...)
			require.ErrorIs(t, err, prefs.ErrInvalidSchema)
		})
	}
}

func Test_NewSchema_Appends_Toml_Extension_Once(t *testing.T) {
	t.Parallel()

	for _, file := range []string{"settings", "settings.toml"} {
		s, err := prefs.NewSchema("S", file, prefs.Bool("a", true))
		require.NoError(t, err)
		require.Equal(t, "settings.toml", s.File())
	}
}

func Test_Schema_Keeps_Declaration_Order_And_Looks_Up_By_Name(t *testing.T) {
	t.Parallel()

	var names []string
	for _, f := range appSchema.Fields() {
		names = append(names, f.Name())
	}

	want := []string{"notifications", "username", "volume", "ratio", "tags", "timeout"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("field order mismatch (-want +got):\n%s", diff)
	}

	f, ok := appSchema.Field("username")
	require.True(t, ok)
	require.Equal(t, []string{"user", "login"}, f.LegacyKeys())
	require.Equal(t, prefs.KindString, f.Kind())

	_, ok = appSchema.Field("nope")
	require.False(t, ok)
}

func Test_Field_Key_Option_Overrides_Storage_Key(t *testing.T) {
	t.Parallel()

	f := prefs.Int("maxItems", 10, prefs.Key("max_items"))

	require.Equal(t, "maxItems", f.Name())
	require.Equal(t, "max_items", f.Key())
	require.Equal(t, int64(10), f.Default())
}

func Test_ParseKind_Round_Trips_Kind_Names(t *testing.T) {
	t.Parallel()

	for _, k := range []prefs.Kind{prefs.KindBool, prefs.KindInt, prefs.KindFloat, prefs.KindString, prefs.KindStrings, prefs.KindDuration} {
		got, err := prefs.ParseKind(k.String())
		require.NoError(t, err)
		require.Equal(t, k, got)
	}

	_, err := prefs.ParseKind("map")
	require.ErrorIs(t, err, prefs.ErrInvalidSchema)
}

func Test_NewDescriptor_Decodes_Untyped_Defaults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind prefs.Kind
		def  any
		want any
	}{
		{kind: prefs.KindBool, def: true, want: true},
		{kind: prefs.KindInt, def: int64(3), want: int64(3)},
		{kind: prefs.KindFloat, def: int64(2), want: 2.0},
		{kind: prefs.KindString, def: "x", want: "x"},
		{kind: prefs.KindStrings, def: []any{"a", "b"}, want: []string{"a", "b"}},
		{kind: prefs.KindDuration, def: "1m30s", want: 90 * time.Second},
		{kind: prefs.KindInt, def: nil, want: int64(0)},
	}

	for _, tc := range tests {
		d, err := prefs.NewDescriptor(tc.kind, "f", tc.def)
		require.NoError(t, err, "kind %v", tc.kind)
		require.Equal(t, tc.want, d.DefaultValue(), "kind %v", tc.kind)
	}

	_, err := prefs.NewDescriptor(prefs.KindInt, "f", "seven")
	require.ErrorIs(t, err, prefs.ErrInvalidSchema)

	_, err = prefs.NewDescriptor(prefs.Kind(99), "f", nil)
	require.ErrorIs(t, err, prefs.ErrInvalidSchema)
}

func Test_ParseValue_Reads_Command_Line_Text(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		field prefs.Descriptor
		text  string
		want  any
	}{
		{name: "bool", field: notifications, text: "false", want: false},
		{name: "int", field: volume, text: "42", want: int64(42)},
		{name: "float from int", field: ratio, text: "2", want: 2.0},
		{name: "float", field: ratio, text: "0.25", want: 0.25},
		{name: "bare string", field: username, text: "ada lovelace", want: "ada lovelace"},
		{name: "numeric string", field: username, text: "42", want: "42"},
		{name: "quoted string", field: username, text: `"true"`, want: "true"},
		{name: "toml list", field: tags, text: `["x", "y"]`, want: []string{"x", "y"}},
		{name: "comma list", field: tags, text: "x, y,,z", want: []string{"x", "y", "z"}},
		{name: "empty list", field: tags, text: "", want: []string{}},
		{name: "duration", field: timeout, text: "1h2m", want: time.Hour + 2*time.Minute},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := prefs.ParseValue(tc.field, tc.text)
			require.NoError(t, err)

			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("value mismatch (-want +got):\n%s", diff)
			}
		})
	}

	for _, bad := range []struct {
		field prefs.Descriptor
		text  string
	}{
		{field: notifications, text: "yes"},
		{field: volume, text: "1.5"},
		{field: timeout, text: "90"},
	} {
		_, err := prefs.ParseValue(bad.field, bad.text)
		require.ErrorIs(t, err, prefs.ErrInvalidValue, "%s=%q", bad.field.Name(), bad.text)
	}
}
