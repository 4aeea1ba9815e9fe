package device_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/devicemgr/internal/device"
	"github.com/nerrad567/devicemgr/internal/infrastructure/database"
	_ "github.com/nerrad567/devicemgr/migrations"
)

// setupSnapshotStore opens a migrated SQLite database in a temp dir,
// exactly as the CLI does for snapshot push/pull.
func setupSnapshotStore(t *testing.T) *device.SQLiteSnapshotStore {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "devicemgr.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return device.NewSQLiteSnapshotStore(db.DB)
}

func demoRegistry(t *testing.T) *device.Registry {
	t.Helper()
	r := device.NewRegistry()
	for _, d := range []struct {
		name string
		kind device.Kind
		id   int
	}{
		{"LivingRoomLight", device.KindLight, 1},
		{"Thermostat", device.KindThermostat, 2},
		{"FrontDoorCamera", device.KindCamera, 3},
		{"Thermostat", device.KindThermostat, 2},
	} {
		if err := r.Add(d.name, d.kind, d.id); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}
	_ = r.SetState(1, true)
	_ = r.SetAttribute(2, 72)
	return r
}

func TestIntegration_SnapshotRoundTrip(t *testing.T) {
	store := setupSnapshotStore(t)
	ctx := context.Background()
	r := demoRegistry(t)

	if err := store.SaveSnapshot(ctx, r); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}

	loaded, err := store.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadSnapshot() error = %v", err)
	}

	got, want := loaded.Devices(), r.Devices()
	if len(got) != len(want) {
		t.Fatalf("loaded %d devices, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("device[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestIntegration_SnapshotReplacesPrevious(t *testing.T) {
	store := setupSnapshotStore(t)
	ctx := context.Background()

	if err := store.SaveSnapshot(ctx, demoRegistry(t)); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}

	small := device.NewRegistry()
	if err := small.Add("Porch", device.KindLight, 9); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	before := time.Now().UTC().Add(-time.Second)
	if err := store.SaveSnapshot(ctx, small); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}

	info, err := store.Info(ctx)
	if err != nil {
		t.Fatalf("Info() error = %v", err)
	}
	if info.Count != 1 {
		t.Errorf("Info().Count = %d, want 1", info.Count)
	}
	if info.SavedAt.Before(before) {
		t.Errorf("Info().SavedAt = %v, want after %v", info.SavedAt, before)
	}

	loaded, err := store.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadSnapshot() error = %v", err)
	}
	if id, ok := loaded.FindIDByName("Porch"); !ok || id != 9 || loaded.Count() != 1 {
		t.Errorf("loaded registry = %+v, want only Porch", loaded.Devices())
	}
}

func TestIntegration_SnapshotEmptyRegistry(t *testing.T) {
	store := setupSnapshotStore(t)
	ctx := context.Background()

	if err := store.SaveSnapshot(ctx, device.NewRegistry()); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}
	loaded, err := store.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadSnapshot() error = %v", err)
	}
	if loaded.Count() != 0 {
		t.Errorf("Count() = %d, want 0", loaded.Count())
	}
}

func TestIntegration_SnapshotNotFound(t *testing.T) {
	store := setupSnapshotStore(t)
	ctx := context.Background()

	if _, err := store.LoadSnapshot(ctx); !errors.Is(err, device.ErrSnapshotNotFound) {
		t.Errorf("LoadSnapshot() error = %v, want ErrSnapshotNotFound", err)
	}
	if _, err := store.Info(ctx); !errors.Is(err, device.ErrSnapshotNotFound) {
		t.Errorf("Info() error = %v, want ErrSnapshotNotFound", err)
	}
	if err := store.SaveSnapshot(ctx, nil); !errors.Is(err, device.ErrNilRegistry) {
		t.Errorf("SaveSnapshot(nil) error = %v, want ErrNilRegistry", err)
	}
}

// TestIntegration_FlatFileToSnapshot moves a registry through both
// persistence paths and checks nothing is lost on the way.
func TestIntegration_FlatFileToSnapshot(t *testing.T) {
	store := setupSnapshotStore(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "devices.txt")

	r := demoRegistry(t)
	if err := device.Save(r, path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	fromFile, err := device.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := store.SaveSnapshot(ctx, fromFile); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}
	fromDB, err := store.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadSnapshot() error = %v", err)
	}

	got, want := fromDB.Devices(), r.Devices()
	if len(got) != len(want) {
		t.Fatalf("got %d devices, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("device[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}
