// Package prefs keeps a small typed record in memory and mirrors it to a
// single TOML document.
//
// A record type is declared once as a [Schema] of typed fields:
//
//	var (
//		Notifications = prefs.Bool("notifications", true)
//		Username      = prefs.String("username", "guest", prefs.Legacy("user"))
//		AppPrefs      = prefs.MustSchema("AppPrefs", "app", Notifications, Username)
//	)
//
// and loaded, read, and written through a [Record]:
//
//	rec, err := prefs.Load(AppPrefs, "com.example.app")
//	if err != nil {
//		return err
//	}
//	defer rec.Close()
//
//	if Notifications.Get(rec) {
//		err = Username.Save(rec, "ada")
//	}
//
// Guarantees:
//
//   - The document is never observed partially written. File writes go
//     through a temp file, fsync, and rename.
//   - At most one live [Record] per schema name exists in the process.
//     A second load fails with [ErrInstanceAlreadyLoaded] until the first
//     record is closed.
//   - Missing documents, missing keys, and keys holding the wrong type fall
//     back to legacy keys and then to field defaults.
//
// Several changes are batched into one write with an [EditGuard]:
//
//	err = rec.Update(func(g *prefs.EditGuard) error {
//		Notifications.Set(g, false)
//		Username.Set(g, "grace")
//		return nil
//	})
//
// There are three entry points with different error policies: [Open] is
// strict, [OpenOrDefault] falls back to defaults on storage errors, and
// [OpenTesting] uses a disposable location and skips the registry.
//
// A Record is not safe for concurrent mutation. Wrap it in a mutex to share
// it between goroutines.
package prefs
