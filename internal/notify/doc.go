// Package notify turns registry changes into outbound messages.
//
// Each notifier implements device.Observer and is attached with
// Registry.SetObserver. Several notifiers can be combined with Fanout.
//
//	MQTTNotifier     {prefix}/event/{op} JSON event, retained {prefix}/state/{id}
//	InfluxRecorder   device_state point per change
//
// Delivery is best effort: a failed publish is logged and never rolls back
// the registry mutation that caused it.
package notify
