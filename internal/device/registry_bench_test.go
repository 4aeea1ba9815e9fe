package device

import (
	"bytes"
	"fmt"
	"io"
	"testing"
)

// setupBenchRegistry creates a registry pre-populated with n devices.
func setupBenchRegistry(b *testing.B, n int) *Registry {
	b.Helper()
	r := NewRegistry()
	for i := 0; i < n; i++ {
		if err := r.Add(fmt.Sprintf("Device_%d", i), Kind(i%3), i); err != nil {
			b.Fatalf("adding device %d: %v", i, err)
		}
	}
	return r
}

func BenchmarkRegistryAdd(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		r := NewRegistry()
		for j := 0; j < 100; j++ {
			r.Add("Device", KindLight, j) //nolint:errcheck // benchmark
		}
	}
}

func BenchmarkRegistryAttribute(b *testing.B) {
	r := setupBenchRegistry(b, 100)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.Attribute(50) //nolint:errcheck // benchmark
	}
}

func BenchmarkRegistrySetState(b *testing.B) {
	r := setupBenchRegistry(b, 100)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.SetState(50, i%2 == 0) //nolint:errcheck // benchmark
	}
}

func BenchmarkRegistryListAll(b *testing.B) {
	r := setupBenchRegistry(b, 100)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.ListAll(io.Discard) //nolint:errcheck // benchmark
	}
}

func BenchmarkEncodeDecode(b *testing.B) {
	r := setupBenchRegistry(b, 100)
	var buf bytes.Buffer

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.Reset()
		Encode(&buf, r) //nolint:errcheck // benchmark
		Decode(&buf)    //nolint:errcheck // benchmark
	}
}
