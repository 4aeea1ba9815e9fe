package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementDeviceState is the measurement holding registry change history.
const MeasurementDeviceState = "device_state"

// DeviceState is one observation of a device record.
type DeviceState struct {
	ID        int
	Name      string
	Kind      string
	On        bool
	Attribute int
	Op        string
	Time      time.Time
}

// NewDeviceStatePoint builds the device_state point for s.
//
// Tags: id, name, kind, op. Fields: on (bool), state (0|1), attribute.
// A zero s.Time is replaced with the current time.
func NewDeviceStatePoint(s DeviceState) *write.Point {
	ts := s.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	state := 0
	if s.On {
		state = 1
	}

	return write.NewPoint(
		MeasurementDeviceState,
		map[string]string{
			"id":   strconv.Itoa(s.ID),
			"name": s.Name,
			"kind": s.Kind,
			"op":   s.Op,
		},
		map[string]interface{}{
			"on":        s.On,
			"state":     state,
			"attribute": s.Attribute,
		},
		ts,
	)
}

// WriteDeviceState records a device observation.
//
// The write is non-blocking; data is batched and sent asynchronously.
// Failures are reported through the SetOnError callback.
func (c *Client) WriteDeviceState(s DeviceState) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(NewDeviceStatePoint(s))
}
