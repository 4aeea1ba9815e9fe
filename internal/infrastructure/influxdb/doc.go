// Package influxdb provides InfluxDB connectivity for devicemgr.
//
// It wraps the official influxdb-client-go v2 library. Connect pings the
// server once; after that points are queued and sent in batches, and Close
// sends whatever is still queued.
//
// Every registry change can be recorded as a device_state point:
//
//	device_state,id=2,kind=thermostat,name=Thermostat,op=attribute_set on=false,state=0i,attribute=72i
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteDeviceState(influxdb.DeviceState{ID: 2, Name: "Thermostat", Kind: "thermostat", Attribute: 72})
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// Batch failures are delivered through SetOnError wrapped in ErrWriteFailed.
package influxdb
