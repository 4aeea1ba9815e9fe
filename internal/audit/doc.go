// Package audit keeps a journal of device registry changes in SQLite.
//
// Every successful registry mutation (add, remove, state, attribute) can be
// appended to the change_log table by attaching a Recorder as a
// device.Observer. The journal is append-only; List pages through it newest
// first with optional filters.
//
// Usage:
//
//	repo := audit.NewSQLiteRepository(db.DB)
//	rec := audit.NewRecorder(ctx, repo, "cli")
//	reg.SetObserver(rec)
//
//	res, err := repo.List(ctx, audit.Filter{Op: device.OpRemoved})
package audit
