package prefs_test

import (
	"fmt"

	"github.com/calvinalkan/prefstore/pkg/prefs"
)

func Example() {
	var (
		darkMode = prefs.Bool("darkMode", false)
		fontSize = prefs.Int("fontSize", 12, prefs.Legacy("font_size"))
		editor   = prefs.MustSchema("EditorPrefs", "editor", darkMode, fontSize)
	)

	// A memory backend keeps the example self-contained; the default
	// backend writes under the user config directory.
	opts := prefs.Options{Backend: prefs.NewMemoryBackend(), Registry: prefs.NewRegistry()}

	rec, err := prefs.Open(editor, "com.example.editor", opts)
	if err != nil {
		fmt.Println(err)

		return
	}
	defer rec.Close()

	fmt.Println(darkMode.Get(rec), fontSize.Get(rec))

	err = rec.Update(func(g *prefs.EditGuard) error {
		darkMode.Set(g, true)
		fontSize.Set(g, 14)

		return nil
	})
	if err != nil {
		fmt.Println(err)

		return
	}

	fmt.Print(rec.String())

	// Output:
	// false 12
	// darkMode = true
	// fontSize = 14
}
