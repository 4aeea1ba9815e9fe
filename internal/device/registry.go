package device

import (
	"fmt"
	"io"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Observer is notified after every successful registry mutation.
// Calls are made synchronously on the caller's goroutine.
type Observer interface {
	DeviceChanged(change Change)
}

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc func(change Change)

// DeviceChanged implements Observer.
func (f ObserverFunc) DeviceChanged(change Change) { f(change) }

type noopObserver struct{}

func (noopObserver) DeviceChanged(Change) {}

// Registry is an ordered, in-memory collection of device records.
//
// Index 0 is the logical head and always holds the most recently added
// record. Ids are not unique: lookups by id return the first match from the
// head, i.e. the newest record carrying that id.
//
// A Registry has a single owner and is not safe for concurrent use.
type Registry struct {
	devices  []Device
	logger   Logger
	observer Observer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:   noopLogger{},
		observer: noopObserver{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	r.logger = logger
}

// SetObserver sets the observer notified of registry mutations.
// Passing nil restores the no-op observer.
func (r *Registry) SetObserver(observer Observer) {
	if observer == nil {
		observer = noopObserver{}
	}
	r.observer = observer
}

// Add creates a record and makes it the new head.
//
// The name is truncated to MaxNameLen bytes. No uniqueness check is made:
// an existing record with the same id stays in the registry behind the new one.
func (r *Registry) Add(name string, kind Kind, id int) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := ValidateID(id); err != nil {
		return err
	}
	if err := ValidateKind(kind); err != nil {
		return err
	}

	d := Device{
		ID:   id,
		Name: TruncateName(name),
		Kind: kind,
	}

	// Prepend
	r.devices = append(r.devices, Device{})
	copy(r.devices[1:], r.devices)
	r.devices[0] = d

	r.logger.Debug("device added", "id", d.ID, "name", d.Name, "kind", d.Kind.String())
	r.observer.DeviceChanged(Change{Op: OpAdded, Device: d})
	return nil
}

// Remove deletes the first record matching both id and name.
// The relative order of the remaining records is preserved.
func (r *Registry) Remove(id int, name string) error {
	i := r.indexOf(id, name)
	if i < 0 {
		return fmt.Errorf("%w: id %d name %q", ErrDeviceNotFound, id, name)
	}

	removed := r.devices[i]
	r.devices = append(r.devices[:i], r.devices[i+1:]...)

	r.logger.Debug("device removed", "id", id, "name", name)
	r.observer.DeviceChanged(Change{Op: OpRemoved, Device: removed})
	return nil
}

// Name returns the stored name of the first record matching id and name.
func (r *Registry) Name(id int, name string) (string, bool) {
	i := r.indexOf(id, name)
	if i < 0 {
		return "", false
	}
	return r.devices[i].Name, true
}

// Kind returns the kind of the first record matching id and name.
// When nothing matches it returns (KindLight, false).
func (r *Registry) Kind(id int, name string) (Kind, bool) {
	i := r.indexOf(id, name)
	if i < 0 {
		return KindLight, false
	}
	return r.devices[i].Kind, true
}

// State returns the on/off state of the first record matching id and name.
// When nothing matches it returns (false, false).
func (r *Registry) State(id int, name string) (bool, bool) {
	i := r.indexOf(id, name)
	if i < 0 {
		return false, false
	}
	return r.devices[i].On, true
}

// Attribute returns the attribute of the first record with the given id.
// When nothing matches it returns (0, false).
func (r *Registry) Attribute(id int) (int, bool) {
	i := r.indexOfID(id)
	if i < 0 {
		return 0, false
	}
	return r.devices[i].Attribute, true
}

// Get returns a copy of the first record with the given id.
func (r *Registry) Get(id int) (Device, bool) {
	i := r.indexOfID(id)
	if i < 0 {
		return Device{}, false
	}
	return r.devices[i], true
}

// Count returns the number of stored records.
func (r *Registry) Count() int {
	return len(r.devices)
}

// FindIDByName returns the id of the first record with the given name.
// When nothing matches it returns (-1, false); Add never stores negative ids.
func (r *Registry) FindIDByName(name string) (int, bool) {
	for i := range r.devices {
		if r.devices[i].Name == name {
			return r.devices[i].ID, true
		}
	}
	return -1, false
}

// SetState sets the on/off state of the first record with the given id.
func (r *Registry) SetState(id int, on bool) error {
	i := r.indexOfID(id)
	if i < 0 {
		return fmt.Errorf("%w: id %d", ErrDeviceNotFound, id)
	}

	r.devices[i].On = on

	r.logger.Debug("device state updated", "id", id, "on", on)
	r.observer.DeviceChanged(Change{Op: OpStateSet, Device: r.devices[i]})
	return nil
}

// SetAttribute sets the attribute of the first record with the given id.
// The value is not range-checked.
func (r *Registry) SetAttribute(id int, value int) error {
	i := r.indexOfID(id)
	if i < 0 {
		return fmt.Errorf("%w: id %d", ErrDeviceNotFound, id)
	}

	r.devices[i].Attribute = value

	r.logger.Debug("device attribute updated", "id", id, "attribute", value)
	r.observer.DeviceChanged(Change{Op: OpAttributeSet, Device: r.devices[i]})
	return nil
}

// Devices returns a copy of all records, head first.
func (r *Registry) Devices() []Device {
	out := make([]Device, len(r.devices))
	copy(out, r.devices)
	return out
}

// ListAll writes one human-readable line per record, head first.
func (r *Registry) ListAll(w io.Writer) error {
	for _, d := range r.devices {
		if _, err := fmt.Fprintf(w, "Device ID: %d, Name: %s, Type: %d, State: %s, Attribute: %d\n",
			d.ID, d.Name, int(d.Kind), d.StateLabel(), d.Attribute); err != nil {
			return fmt.Errorf("writing device listing: %w", err)
		}
	}
	return nil
}

// Destroy releases every record. The registry must not be used afterwards.
func (r *Registry) Destroy() {
	n := len(r.devices)
	clear(r.devices)
	r.devices = nil
	r.observer = noopObserver{}
	r.logger.Debug("device registry destroyed", "released", n)
}

// indexOf returns the index of the first record matching id and name, or -1.
func (r *Registry) indexOf(id int, name string) int {
	for i := range r.devices {
		if r.devices[i].ID == id && r.devices[i].Name == name {
			return i
		}
	}
	return -1
}

// indexOfID returns the index of the first record with the given id, or -1.
func (r *Registry) indexOfID(id int) int {
	for i := range r.devices {
		if r.devices[i].ID == id {
			return i
		}
	}
	return -1
}

// NewRegistryFrom builds a registry whose order matches devices (devices[0]
// becomes the head).
//
// Every record goes through Add and then the state and attribute setters, so
// records Add would reject (empty name, negative id, unknown kind) are dropped.
func NewRegistryFrom(devices []Device) *Registry {
	r := NewRegistry()
	// Add prepends, so walk backwards.
	for i := len(devices) - 1; i >= 0; i-- {
		d := devices[i]
		if err := r.Add(d.Name, d.Kind, d.ID); err != nil {
			continue
		}
		// The record just added is the head and therefore the first id match.
		_ = r.SetState(d.ID, d.On)            //nolint:errcheck // record was just added
		_ = r.SetAttribute(d.ID, d.Attribute) //nolint:errcheck // record was just added
	}
	return r
}
