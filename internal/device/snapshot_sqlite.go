package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// metaSavedAt is the device_snapshot_meta key holding the last save time.
const metaSavedAt = "saved_at"

// SnapshotStore persists whole-registry snapshots.
// This abstraction allows the CLI to be tested without a database.
type SnapshotStore interface {
	// SaveSnapshot replaces the stored snapshot with the contents of r.
	SaveSnapshot(ctx context.Context, r *Registry) error

	// LoadSnapshot rebuilds a registry from the stored snapshot.
	// Returns ErrSnapshotNotFound if nothing has been saved yet.
	LoadSnapshot(ctx context.Context) (*Registry, error)
}

// SnapshotInfo describes the stored snapshot.
type SnapshotInfo struct {
	Count   int
	SavedAt time.Time
}

// SQLiteSnapshotStore implements SnapshotStore using the device_snapshot table.
type SQLiteSnapshotStore struct {
	db *sql.DB
}

// NewSQLiteSnapshotStore creates a snapshot store on an open, migrated SQLite connection.
func NewSQLiteSnapshotStore(db *sql.DB) *SQLiteSnapshotStore {
	return &SQLiteSnapshotStore{db: db}
}

// SaveSnapshot replaces the stored snapshot with r in a single transaction.
// Row position 0 holds the registry head.
func (s *SQLiteSnapshotStore) SaveSnapshot(ctx context.Context, r *Registry) error {
	if r == nil {
		return ErrNilRegistry
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting snapshot transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM device_snapshot"); err != nil {
		return fmt.Errorf("clearing snapshot: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO device_snapshot (position, id, name, kind, state, attribute)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing snapshot insert: %w", err)
	}
	defer stmt.Close()

	for i, d := range r.devices {
		if _, err := stmt.ExecContext(ctx, i, d.ID, d.Name, int(d.Kind), boolToInt(d.On), d.Attribute); err != nil {
			return fmt.Errorf("inserting snapshot row %d: %w", i, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO device_snapshot_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		metaSavedAt,
		time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("recording snapshot time: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot rebuilds a registry from the stored rows, preserving order.
func (s *SQLiteSnapshotStore) LoadSnapshot(ctx context.Context) (*Registry, error) {
	if _, err := s.savedAt(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, kind, state, attribute
		FROM device_snapshot
		ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("querying snapshot: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		var d Device
		var kind, state int
		if err := rows.Scan(&d.ID, &d.Name, &kind, &state, &d.Attribute); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		d.Kind = Kind(kind)
		d.On = state != 0
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshot rows: %w", err)
	}

	return NewRegistryFrom(devices), nil
}

// Info returns the size and save time of the stored snapshot.
// Returns ErrSnapshotNotFound if nothing has been saved yet.
func (s *SQLiteSnapshotStore) Info(ctx context.Context) (SnapshotInfo, error) {
	savedAt, err := s.savedAt(ctx)
	if err != nil {
		return SnapshotInfo{}, err
	}

	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM device_snapshot").Scan(&count); err != nil {
		return SnapshotInfo{}, fmt.Errorf("counting snapshot rows: %w", err)
	}
	return SnapshotInfo{Count: count, SavedAt: savedAt}, nil
}

func (s *SQLiteSnapshotStore) savedAt(ctx context.Context) (time.Time, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM device_snapshot_meta WHERE key = ?", metaSavedAt,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrSnapshotNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("querying snapshot metadata: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing snapshot time: %w", err)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
