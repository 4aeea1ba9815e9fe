// Package database provides SQLite connectivity for the device snapshot store.
//
// This package manages:
//   - Opening the database file with busy timeout and optional WAL mode
//   - Embedded, forward-only schema migrations
//   - Health checks
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files live in the top-level migrations package and are named
// YYYYMMDD_HHMMSS_description.up.sql / .down.sql.
package database
