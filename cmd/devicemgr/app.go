package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nerrad567/devicemgr/internal/audit"
	"github.com/nerrad567/devicemgr/internal/device"
	"github.com/nerrad567/devicemgr/internal/infrastructure/config"
	"github.com/nerrad567/devicemgr/internal/infrastructure/database"
	"github.com/nerrad567/devicemgr/internal/infrastructure/influxdb"
	"github.com/nerrad567/devicemgr/internal/infrastructure/logging"
	"github.com/nerrad567/devicemgr/internal/infrastructure/mqtt"
	"github.com/nerrad567/devicemgr/internal/notify"
)

const (
	// dataDirPermissions is used when creating the registry file's directory.
	dataDirPermissions = 0750

	// journalSource tags change log entries written by this tool.
	journalSource = "cli"
)

// app carries the state shared by every subcommand.
type app struct {
	stdout io.Writer
	stderr io.Writer

	// Flags
	configPath string
	filePath   string

	cfg *config.Config
	log *logging.Logger

	// observers are attached ahead of the configured MQTT / InfluxDB notifiers.
	observers []device.Observer
}

// setup loads configuration and builds the logger. It runs before every
// subcommand.
func (a *app) setup(cmd *cobra.Command) error {
	var (
		cfg *config.Config
		err error
	)
	// An explicit --config must exist; the default location is optional.
	if cmd.Flags().Changed("config") {
		cfg, err = config.Load(a.configPath)
	} else {
		cfg, err = config.LoadOrDefault(a.configPath)
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if a.filePath != "" {
		cfg.Registry.File = a.filePath
	}
	a.cfg = cfg

	a.log = logging.NewWithWriter(cfg.Logging, version,
		logging.OutputWriter(cfg.Logging.Output, a.stdout, a.stderr))
	a.log.Debug("configuration loaded",
		"path", a.configPath,
		"registry_file", cfg.Registry.File,
		"commit", commit,
		"build_date", date,
	)
	return nil
}

// loadRegistry reads the configured registry file. A missing file yields an
// empty registry.
func (a *app) loadRegistry() (*device.Registry, error) {
	path := a.cfg.Registry.File

	reg, err := device.Load(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		a.log.Info("registry file not found, starting empty", "file", path)
		reg = device.NewRegistry()
	case err != nil:
		return nil, fmt.Errorf("loading registry: %w", err)
	default:
		a.log.Debug("registry loaded", "file", path, "devices", reg.Count())
	}

	reg.SetLogger(a.log)
	return reg, nil
}

// saveRegistry writes reg to the configured file, then delivers changes to
// the journal and notifiers and, when the database is enabled, mirrors reg
// into the snapshot store. Nothing is delivered if the file write fails.
func (a *app) saveRegistry(ctx context.Context, reg *device.Registry, changes []device.Change) error {
	if err := a.writeRegistryFile(reg); err != nil {
		return err
	}
	a.deliver(ctx, changes)

	if !a.cfg.Database.Enabled {
		return nil
	}
	return a.withSnapshotStore(ctx, func(store *device.SQLiteSnapshotStore) error {
		if err := store.SaveSnapshot(ctx, reg); err != nil {
			return fmt.Errorf("mirroring snapshot: %w", err)
		}
		return nil
	})
}

// writeRegistryFile saves reg to the configured file, creating its directory.
func (a *app) writeRegistryFile(reg *device.Registry) error {
	path := a.cfg.Registry.File
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, dataDirPermissions); err != nil {
			return fmt.Errorf("creating registry directory: %w", err)
		}
	}
	if err := device.Save(reg, path); err != nil {
		return fmt.Errorf("saving registry: %w", err)
	}
	a.log.Debug("registry saved", "file", path, "devices", reg.Count())
	return nil
}

// mutate loads the registry, applies fn and saves the result. Nothing is
// saved if fn fails, and the changes fn made are only reported once the
// registry file has been written.
func (a *app) mutate(ctx context.Context, fn func(reg *device.Registry) error) error {
	reg, err := a.loadRegistry()
	if err != nil {
		return err
	}

	changes, err := recordChanges(reg, fn)
	if err != nil {
		return err
	}
	return a.saveRegistry(ctx, reg, changes)
}

// changeBuffer holds registry changes until they can be delivered.
type changeBuffer []device.Change

// DeviceChanged implements device.Observer.
func (b *changeBuffer) DeviceChanged(c device.Change) {
	*b = append(*b, c)
}

// recordChanges runs fn against reg and returns the changes it made, in order.
func recordChanges(reg *device.Registry, fn func(reg *device.Registry) error) ([]device.Change, error) {
	var buf changeBuffer
	reg.SetObserver(&buf)
	defer reg.SetObserver(nil)

	if err := fn(reg); err != nil {
		return nil, err
	}
	return buf, nil
}

// deliver reports saved changes to the app's observers, the change journal
// and the enabled notifiers.
func (a *app) deliver(ctx context.Context, changes []device.Change) {
	if len(changes) == 0 {
		return
	}
	observers, closeAll := a.openObservers(ctx)
	defer closeAll()

	for _, c := range changes {
		observers.DeviceChanged(c)
	}
}

// openObservers connects the change journal and the enabled notifiers and
// returns them with a function that disconnects them. An unavailable
// database, broker or InfluxDB server is logged and skipped.
func (a *app) openObservers(ctx context.Context) (notify.Fanout, func()) {
	observers := append(notify.Fanout{}, a.observers...)
	var closers []func()

	if a.cfg.Database.Enabled {
		db, err := a.openDatabase(ctx)
		if err != nil {
			a.log.Warn("database unavailable, changes will not be journalled", "error", err)
		} else {
			rec := audit.NewRecorder(ctx, audit.NewSQLiteRepository(db.DB), journalSource)
			rec.SetLogger(a.log)
			observers = append(observers, rec)
			closers = append(closers, func() { a.closeDatabase(db) })
		}
	}

	if a.cfg.MQTT.Enabled {
		client, err := mqtt.Connect(a.cfg.MQTT)
		if err != nil {
			a.log.Warn("mqtt unavailable, changes will not be published", "error", err)
		} else {
			client.SetLogger(a.log)
			n := notify.NewMQTTNotifier(client, client.Topics(), client.QoS())
			n.SetLogger(a.log)
			observers = append(observers, n)
			closers = append(closers, func() {
				if failures := n.Failures(); failures > 0 {
					a.log.Warn("some change notifications were not delivered", "failures", failures)
				}
				if err := client.Close(); err != nil {
					a.log.Error("error closing mqtt", "error", err)
				}
			})
			a.log.Debug("mqtt notifier attached", "broker", a.cfg.MQTT.Broker.Host)
		}
	}

	if a.cfg.InfluxDB.Enabled {
		client, err := influxdb.Connect(ctx, a.cfg.InfluxDB)
		if err != nil {
			a.log.Warn("influxdb unavailable, changes will not be recorded", "error", err)
		} else {
			client.SetOnError(func(err error) {
				a.log.Warn("influxdb write failed", "error", err)
			})
			observers = append(observers, notify.NewInfluxRecorder(client))
			closers = append(closers, func() {
				if err := client.Close(); err != nil {
					a.log.Error("error closing influxdb", "error", err)
				}
			})
			a.log.Debug("influxdb recorder attached", "url", a.cfg.InfluxDB.URL)
		}
	}

	return observers, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
}

// withDatabase opens and migrates the snapshot database for the duration of fn.
func (a *app) withDatabase(ctx context.Context, fn func(db *database.DB) error) error {
	db, err := a.openDatabase(ctx)
	if err != nil {
		return err
	}
	defer a.closeDatabase(db)
	return fn(db)
}

// withSnapshotStore runs fn against the snapshot store.
func (a *app) withSnapshotStore(ctx context.Context, fn func(store *device.SQLiteSnapshotStore) error) error {
	return a.withDatabase(ctx, func(db *database.DB) error {
		return fn(device.NewSQLiteSnapshotStore(db.DB))
	})
}

func (a *app) openDatabase(ctx context.Context) (*database.DB, error) {
	db, err := database.Open(ctx, database.Config{
		Path:        a.cfg.Database.Path,
		WALMode:     a.cfg.Database.WALMode,
		BusyTimeout: a.cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		a.closeDatabase(db)
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

func (a *app) closeDatabase(db *database.DB) {
	if err := db.Close(); err != nil {
		a.log.Error("error closing database", "error", err)
	}
}
