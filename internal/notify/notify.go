package notify

import (
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/devicemgr/internal/device"
)

// Logger is the subset of logging.Logger used by the notifiers.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Event is the JSON body published for every registry change.
type Event struct {
	EventID   string        `json:"event_id"`
	Op        device.Op     `json:"op"`
	Device    device.Device `json:"device"`
	KindName  string        `json:"kind_name"`
	State     string        `json:"state"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewEvent wraps a change with a fresh event id and timestamp.
func NewEvent(c device.Change, now time.Time) Event {
	return Event{
		EventID:   uuid.NewString(),
		Op:        c.Op,
		Device:    c.Device,
		KindName:  c.Device.Kind.String(),
		State:     c.Device.StateLabel(),
		Timestamp: now.UTC(),
	}
}

// Fanout forwards every change to each observer in order.
type Fanout []device.Observer

// DeviceChanged implements device.Observer.
func (f Fanout) DeviceChanged(c device.Change) {
	for _, o := range f {
		if o != nil {
			o.DeviceChanged(c)
		}
	}
}
