// Package device provides the in-memory device registry and its persistence.
//
// The Registry is an ordered collection of device records. Each newly added
// record becomes the head, so iteration order is newest first. Ids are
// caller-supplied and deliberately not unique: two records may share an id, or
// even an (id, name) pair, and id-based lookups resolve to the newest one.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────────┐
//	│                         Device Registry                          │
//	│                                                                  │
//	│  ┌──────────────────┐   ┌──────────────────┐   ┌──────────────┐  │
//	│  │     Registry     │   │    Flat file     │   │   Snapshot   │  │
//	│  │  (registry.go)   │──▶│  (flatfile.go)   │   │ (SQLite)     │  │
//	│  │                  │   │                  │   │              │  │
//	│  │ • add / remove   │   │ • Save / Load    │   │ • push/pull  │  │
//	│  │ • getters        │   │ • Encode/Decode  │   │ • order kept │  │
//	│  │ • setters        │   │ • line parser    │   │              │  │
//	│  └────────┬─────────┘   └──────────────────┘   └──────────────┘  │
//	│           │ Observer                                             │
//	└───────────│──────────────────────────────────────────────────────┘
//	            ▼
//	   internal/notify (MQTT, InfluxDB)
//
// # Flat-file format
//
// One record per line, head first, fields separated by single spaces:
//
//	<id> <name> <kind 0|1|2> <state 0|1> <attribute>
//
// Lines that do not have exactly this shape are ignored on load. Names must
// not contain whitespace to survive a round trip.
//
// # Usage
//
//	reg := device.NewRegistry()
//	reg.SetLogger(log)
//
//	if err := reg.Add("LivingRoomLight", device.KindLight, 1); err != nil {
//	    return err
//	}
//	_ = reg.SetState(1, true)
//
//	if err := device.Save(reg, "devices.txt"); err != nil {
//	    return err
//	}
//	reg, err = device.Load("devices.txt")
//
// # Not-found results
//
// The getters return a comma-ok pair. The value half keeps the historical
// defaults (KindLight, false, 0, -1) so a caller ignoring ok sees them, but
// ok is the only way to tell a missing record from a record holding a default.
//
// # Thread Safety
//
// A Registry is owned by a single goroutine and performs no locking.
package device
