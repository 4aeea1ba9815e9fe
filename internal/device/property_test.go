package device

import (
	"bytes"
	"testing"

	"pgregory.net/rapid"
)

func drawDevice(t *rapid.T, label string) Device {
	return Device{
		ID:        rapid.IntRange(0, 20).Draw(t, label+".id"),
		Name:      rapid.StringMatching(`[A-Za-z0-9_]{1,49}`).Draw(t, label+".name"),
		Kind:      Kind(rapid.IntRange(0, 2).Draw(t, label+".kind")),
		On:        rapid.Bool().Draw(t, label+".on"),
		Attribute: rapid.IntRange(-1000, 1000).Draw(t, label+".attribute"),
	}
}

func drawDevices(t *rapid.T) []Device {
	n := rapid.IntRange(0, 15).Draw(t, "n")
	devices := make([]Device, n)
	for i := range devices {
		devices[i] = drawDevice(t, "device")
	}
	return devices
}

// TestProperty_EncodeDecodeRoundTrip checks that any registry of
// whitespace-free names survives the flat-file format unchanged,
// including duplicate ids.
func TestProperty_EncodeDecodeRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		devices := drawDevices(t)
		r := NewRegistryFrom(devices)

		var buf bytes.Buffer
		if err := Encode(&buf, r); err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		decoded, err := Decode(&buf)
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}

		got := decoded.Devices()
		if len(got) != len(devices) {
			t.Fatalf("decoded %d devices, want %d", len(got), len(devices))
		}
		for i := range devices {
			if got[i] != devices[i] {
				t.Fatalf("device[%d] = %+v, want %+v", i, got[i], devices[i])
			}
		}
	})
}

// TestProperty_RegistryMatchesModel drives the registry with random
// operations and compares it against a plain slice model.
func TestProperty_RegistryMatchesModel(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := NewRegistry()
		var model []Device

		firstByID := func(id int) int {
			for i := range model {
				if model[i].ID == id {
					return i
				}
			}
			return -1
		}

		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for step := 0; step < steps; step++ {
			id := rapid.IntRange(0, 5).Draw(t, "id")
			switch rapid.IntRange(0, 3).Draw(t, "op") {
			case 0:
				name := rapid.SampledFrom([]string{"a", "b", "c"}).Draw(t, "name")
				kind := Kind(rapid.IntRange(0, 2).Draw(t, "kind"))
				if err := r.Add(name, kind, id); err != nil {
					t.Fatalf("Add() error = %v", err)
				}
				model = append([]Device{{ID: id, Name: name, Kind: kind}}, model...)
			case 1:
				name := rapid.SampledFrom([]string{"a", "b", "c"}).Draw(t, "name")
				err := r.Remove(id, name)
				idx := -1
				for i := range model {
					if model[i].ID == id && model[i].Name == name {
						idx = i
						break
					}
				}
				if (err == nil) != (idx >= 0) {
					t.Fatalf("Remove(%d, %q) error = %v, model index %d", id, name, err, idx)
				}
				if idx >= 0 {
					model = append(model[:idx], model[idx+1:]...)
				}
			case 2:
				on := rapid.Bool().Draw(t, "on")
				err := r.SetState(id, on)
				idx := firstByID(id)
				if (err == nil) != (idx >= 0) {
					t.Fatalf("SetState(%d) error = %v, model index %d", id, err, idx)
				}
				if idx >= 0 {
					model[idx].On = on
				}
			case 3:
				v := rapid.Int().Draw(t, "value")
				err := r.SetAttribute(id, v)
				idx := firstByID(id)
				if (err == nil) != (idx >= 0) {
					t.Fatalf("SetAttribute(%d) error = %v, model index %d", id, err, idx)
				}
				if idx >= 0 {
					model[idx].Attribute = v
				}
			}

			if r.Count() != len(model) {
				t.Fatalf("Count() = %d, model has %d", r.Count(), len(model))
			}
		}

		got := r.Devices()
		for i := range model {
			if got[i] != model[i] {
				t.Fatalf("device[%d] = %+v, model %+v", i, got[i], model[i])
			}
		}
	})
}
