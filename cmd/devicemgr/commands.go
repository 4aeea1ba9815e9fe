package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/spf13/cobra"

	"github.com/nerrad567/devicemgr/internal/audit"
	"github.com/nerrad567/devicemgr/internal/device"
	"github.com/nerrad567/devicemgr/internal/infrastructure/database"
	"github.com/nerrad567/devicemgr/internal/infrastructure/mqtt"
)

// errMQTTDisabled is returned by watch when no broker is configured.
var errMQTTDisabled = errors.New("mqtt is disabled in configuration")

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "devicemgr",
		Short: "Manage the home device registry",
		Long: `devicemgr edits an ordered registry of home devices stored in a flat file.

Every editing command loads the registry file, applies one change and saves it
back. A missing registry file is treated as an empty registry.

Examples:
  # Run the reference demonstration
  devicemgr demo

  # Add a light with id 4 and switch it on
  devicemgr add KitchenLight light 4
  devicemgr state 4 on

  # Use a different registry file
  devicemgr -f /tmp/devices.txt list`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", getConfigPath(), "path to YAML configuration file")
	root.PersistentFlags().StringVarP(&a.filePath, "file", "f", "", "registry file (overrides registry.file)")

	root.AddCommand(
		newDemoCmd(a),
		newListCmd(a),
		newAddCmd(a),
		newRemoveCmd(a),
		newStateCmd(a),
		newAttrCmd(a),
		newShowCmd(a),
		newFindCmd(a),
		newSnapshotCmd(a),
		newHistoryCmd(a),
		newWatchCmd(a),
	)
	return root
}

func newDemoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Build a sample registry, save it and reload it",
		Long: `Build a three-device registry in memory, update it, save it to the
registry file and reload it, listing the devices after each step.

The registry file is overwritten.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			reg := device.NewRegistry()
			reg.SetLogger(a.log)
			err := a.buildDemo(cmd.Context(), reg, out)
			reg.Destroy()
			if err != nil {
				return err
			}

			fmt.Fprintln(out, "\nReloading Devices:")
			reloaded, err := device.Load(a.cfg.Registry.File)
			if err != nil {
				return fmt.Errorf("reloading registry: %w", err)
			}
			defer reloaded.Destroy()
			return reloaded.ListAll(out)
		},
	}
}

// buildDemo populates reg with the sample devices, updates two of them and
// saves the result, listing the registry before and after the update.
func (a *app) buildDemo(ctx context.Context, reg *device.Registry, out io.Writer) error {
	samples := []struct {
		name string
		kind device.Kind
		id   int
	}{
		{"LivingRoomLight", device.KindLight, 1},
		{"Thermostat", device.KindThermostat, 2},
		{"FrontDoorCamera", device.KindCamera, 3},
	}

	changes, err := recordChanges(reg, func(reg *device.Registry) error {
		for _, d := range samples {
			if err := reg.Add(d.name, d.kind, d.id); err != nil {
				return err
			}
		}

		fmt.Fprintln(out, "Initial Device List:")
		if err := reg.ListAll(out); err != nil {
			return err
		}

		if err := reg.SetState(1, true); err != nil {
			return err
		}
		if err := reg.SetAttribute(2, 72); err != nil {
			return err
		}

		fmt.Fprintln(out, "\nUpdated Device List:")
		return reg.ListAll(out)
	})
	if err != nil {
		return err
	}
	return a.saveRegistry(ctx, reg, changes)
}

func newListCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every device, newest first",
		Long: `List every device in the registry, newest first.

Examples:
  devicemgr list

  # Machine-readable output
  devicemgr list --json | jq '.[].name'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := a.loadRegistry()
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(reg.Devices())
			}
			return reg.ListAll(cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print devices as a JSON array")
	return cmd
}

func newAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add NAME KIND ID",
		Short: "Add a device as the newest record",
		Long: `Add a device as the newest record.

KIND is light, thermostat or camera (or 0, 1, 2). Names are a single word
and longer than 49 bytes are truncated. Ids need not be unique; lookups by id
find the newest record.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFileName(args[0]); err != nil {
				return err
			}
			kind, err := device.ParseKind(args[1])
			if err != nil {
				return err
			}
			id, err := parseID(args[2])
			if err != nil {
				return err
			}
			return a.mutate(cmd.Context(), func(reg *device.Registry) error {
				return reg.Add(args[0], kind, id)
			})
		},
	}
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "remove ID NAME",
		Aliases: []string{"rm"},
		Short:   "Remove the newest device matching id and name",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.mutate(cmd.Context(), func(reg *device.Registry) error {
				return reg.Remove(id, args[1])
			})
		},
	}
}

func newStateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "state ID on|off",
		Short: "Switch a device on or off",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			on, err := parseOnOff(args[1])
			if err != nil {
				return err
			}
			return a.mutate(cmd.Context(), func(reg *device.Registry) error {
				return reg.SetState(id, on)
			})
		},
	}
}

func newAttrCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "attr ID VALUE",
		Short: "Set a device's attribute (brightness, setpoint, ...)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			value, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid attribute %q: %w", args[1], err)
			}
			return a.mutate(cmd.Context(), func(reg *device.Registry) error {
				return reg.SetAttribute(id, value)
			})
		},
	}
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID NAME",
		Short: "Show one device",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			reg, err := a.loadRegistry()
			if err != nil {
				return err
			}

			name, ok := reg.Name(id, args[1])
			if !ok {
				return fmt.Errorf("%w: id %d name %q", device.ErrDeviceNotFound, id, args[1])
			}
			kind, _ := reg.Kind(id, args[1])
			on, _ := reg.State(id, args[1])
			attr, _ := reg.Attribute(id)

			fmt.Fprintf(cmd.OutOrStdout(), "ID:        %d\nName:      %s\nKind:      %s\nState:     %s\nAttribute: %d\n",
				id, name, kind, device.StateLabel(on), attr)
			return nil
		},
	}
}

func newFindCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "find NAME",
		Short: "Print the id of the newest device with the given name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.loadRegistry()
			if err != nil {
				return err
			}
			id, ok := reg.FindIDByName(args[0])
			if !ok {
				return fmt.Errorf("%w: name %q", device.ErrDeviceNotFound, args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

func newSnapshotCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Copy the registry to and from the SQLite snapshot store",
		Long: `Copy the registry to and from the SQLite snapshot store at database.path.

The snapshot commands work whether or not database.enabled is set; enabling it
additionally mirrors every save into the store.`,
	}

	push := &cobra.Command{
		Use:   "push",
		Short: "Replace the stored snapshot with the registry file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := a.loadRegistry()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return a.withSnapshotStore(ctx, func(store *device.SQLiteSnapshotStore) error {
				if err := store.SaveSnapshot(ctx, reg); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pushed %d devices\n", reg.Count())
				return nil
			})
		},
	}

	pull := &cobra.Command{
		Use:   "pull",
		Short: "Overwrite the registry file with the stored snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return a.withSnapshotStore(ctx, func(store *device.SQLiteSnapshotStore) error {
				reg, err := store.LoadSnapshot(ctx)
				if err != nil {
					return err
				}
				if err := a.writeRegistryFile(reg); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pulled %d devices\n", reg.Count())
				return nil
			})
		},
	}

	info := &cobra.Command{
		Use:   "info",
		Short: "Show the size and age of the stored snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return a.withSnapshotStore(ctx, func(store *device.SQLiteSnapshotStore) error {
				si, err := store.Info(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "devices: %d\nsaved at: %s\n",
					si.Count, si.SavedAt.Format(time.RFC3339))
				return nil
			})
		},
	}

	cmd.AddCommand(push, pull, info)
	return cmd
}

func newHistoryCmd(a *app) *cobra.Command {
	var (
		op     string
		id     int
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show journalled registry changes, newest first",
		Long: `Show the change journal kept in the database at database.path.

Changes are journalled only while database.enabled is set.

Examples:
  devicemgr history
  devicemgr history --id 2 --limit 10
  devicemgr history --op removed --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := audit.Filter{Op: device.Op(op), Limit: limit}
			if cmd.Flags().Changed("id") {
				filter.DeviceID = &id
			}

			ctx := cmd.Context()
			return a.withDatabase(ctx, func(db *database.DB) error {
				res, err := audit.NewSQLiteRepository(db.DB).List(ctx, filter)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(res)
				}
				for _, e := range res.Entries {
					fmt.Fprintf(out, "%s %-13s id=%d name=%s kind=%s state=%s attribute=%d source=%s\n",
						e.CreatedAt.Format(time.RFC3339), e.Op, e.DeviceID, e.DeviceName,
						e.Kind, device.StateLabel(e.On), e.Attribute, e.Source)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&op, "op", "", "only this operation (added, removed, state_set, attribute_set)")
	cmd.Flags().IntVar(&id, "id", 0, "only this device id")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum entries to show (max 200)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result page as JSON")
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print registry change events published over MQTT",
		Long: `Subscribe to the registry change events on the configured MQTT broker and
print each one as "topic payload" until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !a.cfg.MQTT.Enabled {
				return errMQTTDisabled
			}
			client, err := mqtt.Connect(a.cfg.MQTT)
			if err != nil {
				return fmt.Errorf("connecting to mqtt: %w", err)
			}
			client.SetLogger(a.log)
			defer client.Close() //nolint:errcheck // Best effort on shutdown

			broker := a.cfg.MQTT.Broker.Host
			client.SetOnConnectionChange(func(connected bool, cause error) {
				if connected {
					a.log.Info("mqtt connection restored, resuming watch", "broker", broker)
					return
				}
				a.log.Warn("mqtt connection lost, events are missed until it returns",
					"broker", broker, "error", cause)
			})

			var mu sync.Mutex
			out := cmd.OutOrStdout()
			topic := client.Topics().AllEvents()
			err = client.Subscribe(topic, client.QoS(), func(t string, payload []byte) error {
				mu.Lock()
				defer mu.Unlock()
				_, err := fmt.Fprintf(out, "%s %s\n", t, payload)
				return err
			})
			if err != nil {
				return fmt.Errorf("subscribing to %s: %w", topic, err)
			}
			a.log.Info("watching registry events", "topic", topic)

			<-cmd.Context().Done()
			if err := client.Unsubscribe(topic); err != nil && !errors.Is(err, mqtt.ErrNotConnected) {
				a.log.Warn("unsubscribing on shutdown", "topic", topic, "error", err)
			}
			return nil
		},
	}
}

// checkFileName rejects names the registry file cannot hold: its records are
// whitespace-separated, so a name with a space would be dropped on the next load.
func checkFileName(name string) error {
	if strings.ContainsFunc(name, unicode.IsSpace) {
		return fmt.Errorf("%w: %q contains whitespace", device.ErrInvalidName, name)
	}
	return nil
}

// parseID converts a command-line id. Negative ids are rejected by the
// registry itself.
func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", device.ErrInvalidID, s)
	}
	return id, nil
}

// parseOnOff accepts on/off, true/false and 1/0.
func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid state %q: want on or off", s)
	}
}
