package prefs_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/prefstore/pkg/fs"
	"github.com/calvinalkan/prefstore/pkg/prefs"
)

func Test_Save_Skips_Write_When_Value_Unchanged(t *testing.T) {
	t.Parallel()

	env := newMemEnv()
	rec := env.open(t, appSchema)
	defer closeRecord(t, rec)

	require.NoError(t, volume.Save(rec, 5)) // default
	require.Equal(t, 0, env.writes(appSchema))

	require.NoError(t, volume.Save(rec, 6))
	require.NoError(t, volume.Save(rec, 6))
	require.Equal(t, 1, env.writes(appSchema))
	require.False(t, rec.Dirty())
}

func Test_Persist_Always_Writes(t *testing.T) {
	t.Parallel()

	env := newMemEnv()
	rec := env.open(t, appSchema)
	defer closeRecord(t, rec)

	require.NoError(t, rec.Persist())
	require.NoError(t, rec.Persist())
	require.Equal(t, 2, env.writes(appSchema))
}

func Test_Save_Failure_Keeps_Previous_Document_And_Memory_Value(t *testing.T) {
	t.Parallel()

	env := newMemEnv()
	rec := env.open(t, scenarioSchema)
	defer closeRecord(t, rec)

	require.NoError(t, username.Save(rec, "first"))

	before, _ := env.backend.Document(env.location(scenarioSchema))

	env.backend.SetWriteHook(func(string, []byte) error { return errors.New("quota exceeded") })

	err := username.Save(rec, "second")
	assertErrorIs(t, err, prefs.ErrPersist)

	var perr *prefs.Error
	require.ErrorAs(t, err, &perr)
	require.Equal(t, env.location(scenarioSchema), perr.Location)

	after, _ := env.backend.Document(env.location(scenarioSchema))
	require.Equal(t, string(before), string(after))

	require.Equal(t, "second", username.Get(rec))
	require.True(t, rec.Dirty())

	// The next successful write carries the pending value.
	env.backend.SetWriteHook(nil)
	require.NoError(t, notifications.Save(rec, false))

	doc, _ := env.backend.Document(env.location(scenarioSchema))
	require.Equal(t, "second", decodeTOML(t, doc)["username"])
}

func Test_Save_Retry_Of_Same_Value_Writes_After_Failed_Persist(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		save func(rec *prefs.Record) error
	}{
		{name: "typed", save: func(rec *prefs.Record) error { return username.Save(rec, "second") }},
		{name: "by name", save: func(rec *prefs.Record) error { return rec.SaveValue("username", "second") }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			env := newMemEnv()
			rec := env.open(t, scenarioSchema)
			defer closeRecord(t, rec)

			env.backend.SetWriteHook(func(string, []byte) error { return errors.New("quota exceeded") })
			assertErrorIs(t, tc.save(rec), prefs.ErrPersist)
			require.Equal(t, 0, env.writes(scenarioSchema))

			env.backend.SetWriteHook(nil)
			require.NoError(t, tc.save(rec))
			require.Equal(t, 1, env.writes(scenarioSchema))
			require.False(t, rec.Dirty())

			doc, found := env.backend.Document(env.location(scenarioSchema))
			require.True(t, found)
			require.Equal(t, "second", decodeTOML(t, doc)["username"])

			// Nothing pending now, so the same value is a no-op again.
			require.NoError(t, tc.save(rec))
			require.Equal(t, 1, env.writes(scenarioSchema))
		})
	}
}

func Test_Save_Aborted_Mid_Write_Leaves_Previous_Document_Loadable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		fault fs.Fault
	}{
		{name: "mid write", fault: fs.Fault{Op: fs.OpFileWrite, Partial: true, Abort: true}},
		{name: "before fsync", fault: fs.Fault{Op: fs.OpFileSync, Abort: true}},
		{name: "before rename", fault: fs.Fault{Op: fs.OpRename, Abort: true}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			faulty := fs.NewFaulty(fs.NewReal())
			env := newFileEnvFS(t, faulty)

			rec := env.open(t, appSchema)
			require.NoError(t, username.Save(rec, "committed"))

			faulty.Add(tc.fault)

			r := recoverPanic(func() {
				_ = rec.Update(func(g *prefs.EditGuard) error {
					username.Set(g, strings.Repeat("x", 4096))
					volume.Set(g, 99)

					return nil
				})
			})

			var abort *fs.AbortError
			if err, ok := r.(error); !ok || !errors.As(err, &abort) {
				t.Fatalf("panic=%v, want *fs.AbortError", r)
			}

			// A new process starts from whatever is on disk.
			restarted := prefs.Options{Backend: prefs.NewFileBackend(fs.NewReal(), nil), Registry: prefs.NewRegistry()}

			after, err := prefs.Open(appSchema, env.dir, restarted)
			require.NoError(t, err)

			defer closeRecord(t, after)

			require.Equal(t, "committed", username.Get(after))
			require.Equal(t, int64(5), volume.Get(after))
		})
	}
}

func Test_Save_Tolerates_Directory_Sync_Failure(t *testing.T) {
	t.Parallel()

	faulty := fs.NewFaulty(fs.NewReal())
	env := newFileEnvFS(t, faulty)
	obs := &recordingObserver{}
	env.opts.Observer = obs

	rec := env.open(t, scenarioSchema)
	defer closeRecord(t, rec)

	// Sync #1 is the temp file, sync #2 the directory.
	faulty.Add(fs.Fault{Op: fs.OpFileSync, After: 2})

	require.NoError(t, username.Save(rec, "synced-or-not"))
	require.Equal(t, "synced-or-not", env.readDoc(t, scenarioSchema)["username"])
	require.False(t, rec.Dirty())

	require.Len(t, obs.persists, 1)
	require.Equal(t, prefs.PersistUnsynced, obs.persists[0].Result)
}

func Test_Save_Leaves_No_Temp_Files(t *testing.T) {
	t.Parallel()

	env := newFileEnv(t)
	rec := env.open(t, appSchema)
	defer closeRecord(t, rec)

	for i := range 5 {
		require.NoError(t, volume.Save(rec, int64(i+10)))
	}

	entries, err := os.ReadDir(env.dir)
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}

	require.Equal(t, []string{"app.toml"}, names)
}

func Test_Save_Creates_Missing_Namespace_Directory(t *testing.T) {
	t.Parallel()

	env := newFileEnv(t)
	ns := filepath.Join(env.dir, "nested", "com.example")

	rec, err := prefs.Open(scenarioSchema, ns, env.opts)
	require.NoError(t, err)

	defer closeRecord(t, rec)

	require.NoError(t, notifications.Save(rec, false))

	_, err = os.Stat(filepath.Join(ns, "scenario.toml"))
	require.NoError(t, err)
}

func Test_Strings_Field_Does_Not_Alias_Record_Storage(t *testing.T) {
	t.Parallel()

	env := newMemEnv()
	rec := env.open(t, appSchema)
	defer closeRecord(t, rec)

	in := []string{"x", "y"}
	require.NoError(t, tags.Save(rec, in))

	in[0] = "mutated"

	out := tags.Get(rec)
	out[1] = "mutated"

	require.Equal(t, []string{"x", "y"}, tags.Get(rec))
}

func Test_Dynamic_Accessors_Read_And_Write_By_Name(t *testing.T) {
	t.Parallel()

	env := newMemEnv()
	rec := env.open(t, appSchema)
	defer closeRecord(t, rec)

	v, err := rec.Value("timeout")
	require.NoError(t, err)
	require.Equal(t, 30*time.Second, v)

	_, err = rec.Value("missing")
	require.ErrorIs(t, err, prefs.ErrUnknownField)

	require.NoError(t, rec.SaveValue("timeout", "2m"))
	require.Equal(t, 2*time.Minute, timeout.Get(rec))
	require.Equal(t, 1, env.writes(appSchema))

	require.NoError(t, rec.SaveValue("timeout", "120s"))
	require.Equal(t, 1, env.writes(appSchema), "equal value must not write")

	require.ErrorIs(t, rec.SaveValue("volume", "loud"), prefs.ErrInvalidValue)
	require.ErrorIs(t, rec.SaveValue("nope", 1), prefs.ErrUnknownField)

	want := []prefs.FieldValue{
		{Name: "notifications", Key: "notifications", Kind: prefs.KindBool, Value: true},
		{Name: "username", Key: "username", Kind: prefs.KindString, Value: "guest"},
		{Name: "volume", Key: "volume", Kind: prefs.KindInt, Value: int64(5)},
		{Name: "ratio", Key: "ratio", Kind: prefs.KindFloat, Value: 0.5},
		{Name: "tags", Key: "tags", Kind: prefs.KindStrings, Value: []string{"a"}},
		{Name: "timeout", Key: "timeout", Kind: prefs.KindDuration, Value: 2 * time.Minute},
	}

	if diff := cmp.Diff(want, rec.Values()); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
}

func Test_Reset_Restores_Defaults(t *testing.T) {
	t.Parallel()

	env := newMemEnv()
	rec := env.open(t, scenarioSchema)
	defer closeRecord(t, rec)

	require.NoError(t, username.Save(rec, "ada"))
	require.NoError(t, rec.Reset())
	require.Equal(t, "guest", username.Get(rec))

	doc, _ := env.backend.Document(env.location(scenarioSchema))
	require.Equal(t, "guest", decodeTOML(t, doc)["username"])
}

func Test_Import_Applies_Present_Keys_In_One_Write(t *testing.T) {
	t.Parallel()

	env := newMemEnv()
	rec := env.open(t, appSchema)
	defer closeRecord(t, rec)

	require.NoError(t, rec.Import([]byte("user = 'imported'\nvolume = 1\nextra = true\n")))
	require.Equal(t, "imported", username.Get(rec))
	require.Equal(t, int64(1), volume.Get(rec))
	require.Equal(t, 0.5, ratio.Get(rec))
	require.Equal(t, 1, env.writes(appSchema))

	err := rec.Import([]byte("volume = 'loud'\nusername = 'ignored'\n"))
	require.ErrorIs(t, err, prefs.ErrInvalidValue)
	require.Equal(t, "imported", username.Get(rec))

	require.ErrorIs(t, rec.Import([]byte("= broken")), prefs.ErrDeserialization)
	require.Equal(t, 1, env.writes(appSchema))
}

func Test_Closed_Record_Rejects_Writes_And_Close_Is_Idempotent(t *testing.T) {
	t.Parallel()

	env := newMemEnv()
	rec := env.open(t, scenarioSchema)

	closeRecord(t, rec)
	closeRecord(t, rec)

	require.ErrorIs(t, notifications.Save(rec, false), prefs.ErrClosed)
	require.ErrorIs(t, rec.Persist(), prefs.ErrClosed)
	require.ErrorIs(t, rec.SaveValue("username", "x"), prefs.ErrClosed)

	// Reads keep working from the cached values.
	require.True(t, notifications.Get(rec))

	require.Panics(t, func() { rec.Edit() })
}

func Test_Get_Panics_For_Field_Of_Another_Schema(t *testing.T) {
	t.Parallel()

	env := newMemEnv()
	rec := env.open(t, scenarioSchema)
	defer closeRecord(t, rec)

	require.Panics(t, func() { volume.Get(rec) })
}

func Test_Record_String_Is_The_Document(t *testing.T) {
	t.Parallel()

	env := newMemEnv()
	rec := env.open(t, scenarioSchema)
	defer closeRecord(t, rec)

	want := map[string]any{"notifications": true, "username": "guest"}
	if diff := cmp.Diff(want, decodeTOML(t, []byte(rec.String()))); diff != "" {
		t.Fatalf("document mismatch (-want +got):\n%s", diff)
	}

	// Keys follow field order.
	s := rec.String()
	require.Less(t, strings.Index(s, "notifications"), strings.Index(s, "username"))
}

func Test_Error_Formats_Cause_Then_Context(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  *prefs.Error
		want string
	}{
		{err: &prefs.Error{Err: prefs.ErrPersist}, want: "persist document"},
		{err: &prefs.Error{Schema: "S", Err: prefs.ErrPersist}, want: "persist document (schema=S)"},
		{err: &prefs.Error{Schema: "S", Location: "/x.toml", Err: prefs.ErrFileOpen}, want: "open document (schema=S location=/x.toml)"},
		{err: &prefs.Error{Schema: "S"}, want: "(schema=S)"},
	}

	for _, tc := range tests {
		require.Equal(t, tc.want, tc.err.Error())
	}

	var nilErr *prefs.Error
	require.Empty(t, nilErr.Error())
	require.NoError(t, nilErr.Unwrap())
}

func Test_Record_Shared_Behind_Mutex_Keeps_Every_Increment(t *testing.T) {
	t.Parallel()

	env := newMemEnv()
	env.opts.EditHoldLimit = time.Second

	rec := env.open(t, appSchema)
	defer closeRecord(t, rec)

	const (
		workers = 8
		perWork = 25
	)

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for range perWork {
				mu.Lock()

				err := rec.Update(func(g *prefs.EditGuard) error {
					volume.Set(g, volume.Get(g.Record())+1)

					return nil
				})

				mu.Unlock()

				if err != nil {
					t.Errorf("Update: %v", err)

					return
				}
			}
		}()
	}

	wg.Wait()

	want := int64(5 + workers*perWork)
	require.Equal(t, want, volume.Get(rec))

	doc, _ := env.backend.Document(env.location(appSchema))
	require.Equal(t, want, decodeTOML(t, doc)["volume"])
}
