package notify

import (
	"time"

	"github.com/nerrad567/devicemgr/internal/device"
	"github.com/nerrad567/devicemgr/internal/infrastructure/influxdb"
)

// StateWriter is the subset of influxdb.Client used by InfluxRecorder.
type StateWriter interface {
	WriteDeviceState(s influxdb.DeviceState)
}

// InfluxRecorder writes one device_state point per registry change.
type InfluxRecorder struct {
	w   StateWriter
	now func() time.Time
}

// NewInfluxRecorder creates a recorder writing through w.
func NewInfluxRecorder(w StateWriter) *InfluxRecorder {
	return &InfluxRecorder{w: w, now: time.Now}
}

// DeviceChanged implements device.Observer.
func (r *InfluxRecorder) DeviceChanged(c device.Change) {
	r.w.WriteDeviceState(influxdb.DeviceState{
		ID:        c.Device.ID,
		Name:      c.Device.Name,
		Kind:      c.Device.Kind.String(),
		On:        c.Device.On,
		Attribute: c.Device.Attribute,
		Op:        string(c.Op),
		Time:      r.now(),
	})
}
