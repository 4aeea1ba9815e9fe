package device

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "devices.txt")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	r := NewRegistry()
	mustAdd(t, r, "A", KindLight, 1)
	mustAdd(t, r, "B", KindThermostat, 2)
	_ = r.SetState(1, true)
	_ = r.SetAttribute(2, 72)

	path := filepath.Join(t.TempDir(), "devices.txt")
	if err := Save(r, path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading saved file: %v", err)
	}
	if want := "2 B 1 0 72\n1 A 0 1 0\n"; string(raw) != want {
		t.Errorf("file content = %q, want %q", raw, want)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	got, want := loaded.Devices(), r.Devices()
	if len(got) != len(want) {
		t.Fatalf("loaded %d devices, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("device[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

// Every record Add accepts must survive a save and load.
func TestSaveLoad_AcceptedRecordsSurvive(t *testing.T) {
	r := NewRegistry()
	for k := -1; k <= 4; k++ {
		_ = r.Add(fmt.Sprintf("Dev%d", k+1), Kind(k), k+1)
	}
	if r.Count() != len(AllKinds()) {
		t.Fatalf("Count() = %d, want %d (only defined kinds accepted)", r.Count(), len(AllKinds()))
	}

	path := filepath.Join(t.TempDir(), "devices.txt")
	if err := Save(r, path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Count() != r.Count() {
		t.Errorf("round trip kept %d of %d records", loaded.Count(), r.Count())
	}
}

func TestSave_FilePermissions(t *testing.T) {
	r := NewRegistry()
	mustAdd(t, r, "A", KindLight, 1)

	path := filepath.Join(t.TempDir(), "devices.txt")
	if err := Save(r, path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != filePermissions {
		t.Errorf("permissions = %o, want %o", perm, filePermissions)
	}
}

func TestSave_KeepsExistingPermissions(t *testing.T) {
	path := writeFile(t, "9 Old 0 0 0\n")
	if err := os.Chmod(path, 0640); err != nil {
		t.Fatalf("Chmod() error = %v", err)
	}

	r := NewRegistry()
	mustAdd(t, r, "New", KindLight, 1)
	if err := Save(r, path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0640 {
		t.Errorf("permissions = %o, want 640", perm)
	}
}

func TestSave_FollowsSymlink(t *testing.T) {
	target := writeFile(t, "9 Old 0 0 0\n")
	link := filepath.Join(t.TempDir(), "devices.txt")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	r := NewRegistry()
	mustAdd(t, r, "New", KindCamera, 1)
	if err := Save(r, link); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Lstat(link)
	if err != nil {
		t.Fatalf("Lstat() error = %v", err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		t.Error("Save() replaced the symlink with a regular file")
	}
	raw, _ := os.ReadFile(target)
	if string(raw) != "1 New 2 0 0\n" {
		t.Errorf("link target content = %q, want the new record", raw)
	}
}

func TestSave_ReadOnlyDestination(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can write read-only files")
	}
	path := writeFile(t, "9 Old 0 0 0\n")
	if err := os.Chmod(path, 0400); err != nil {
		t.Fatalf("Chmod() error = %v", err)
	}

	r := NewRegistry()
	mustAdd(t, r, "New", KindLight, 1)
	if err := Save(r, path); !errors.Is(err, fs.ErrPermission) {
		t.Errorf("Save() error = %v, want fs.ErrPermission", err)
	}

	raw, _ := os.ReadFile(path)
	if string(raw) != "9 Old 0 0 0\n" {
		t.Errorf("read-only file content = %q, want it untouched", raw)
	}
}

func TestSave_DanglingSymlink(t *testing.T) {
	dir := t.TempDir()
	link := filepath.Join(dir, "devices.txt")
	if err := os.Symlink(filepath.Join(dir, "missing", "devices.txt"), link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	r := NewRegistry()
	mustAdd(t, r, "New", KindLight, 1)
	if err := Save(r, link); err == nil {
		t.Fatal("Save() through a dangling symlink should fail")
	}
	if info, err := os.Lstat(link); err != nil || info.Mode()&os.ModeSymlink == 0 {
		t.Errorf("dangling symlink was replaced (err = %v)", err)
	}
}

func TestSave_OverwritesExisting(t *testing.T) {
	path := writeFile(t, "9 Old 0 0 0\n9 Older 0 0 0\n")

	r := NewRegistry()
	mustAdd(t, r, "New", KindCamera, 1)
	if err := Save(r, path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	raw, _ := os.ReadFile(path)
	if string(raw) != "1 New 2 0 0\n" {
		t.Errorf("file content = %q, want only the new record", raw)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("directory holds %d entries, want 1 (temp file left behind?)", len(entries))
	}
}

func TestSave_EmptyRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.txt")
	if err := Save(NewRegistry(), path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Count() != 0 {
		t.Errorf("Count() = %d, want 0", loaded.Count())
	}
}

func TestSave_Errors(t *testing.T) {
	dir := t.TempDir()

	t.Run("empty path", func(t *testing.T) {
		if err := Save(NewRegistry(), ""); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("Save() error = %v, want ErrInvalidPath", err)
		}
	})

	t.Run("nil registry", func(t *testing.T) {
		path := filepath.Join(dir, "nil.txt")
		if err := Save(nil, path); !errors.Is(err, ErrNilRegistry) {
			t.Errorf("Save() error = %v, want ErrNilRegistry", err)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Error("Save(nil) created a file")
		}
	})

	t.Run("missing directory", func(t *testing.T) {
		path := filepath.Join(dir, "no", "such", "dir", "devices.txt")
		if err := Save(NewRegistry(), path); err == nil {
			t.Error("Save() error = nil, want error")
		}
	})
}

func TestLoad_NonexistentFile(t *testing.T) {
	r, err := Load(filepath.Join(t.TempDir(), "missing.txt"))
	if err == nil {
		t.Fatal("Load() error = nil, want error")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load() error = %v, want wrapped os.ErrNotExist", err)
	}
	if r != nil {
		t.Errorf("Load() registry = %v, want nil", r)
	}
}

func TestLoad_SkipsMalformedLines(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantIDs []int
	}{
		{
			name:    "only malformed lines",
			content: "garbage\nnot a record at all\n",
			wantIDs: []int{},
		},
		{
			name:    "empty file",
			content: "",
			wantIDs: []int{},
		},
		{
			name:    "negative id dropped",
			content: "-1 Neg 0 0 0\n1 A 0 0 0\n",
			wantIDs: []int{1},
		},
		{
			name:    "malformed line between valid ones",
			content: "1 A 0 0 0\nbroken line\n2 B 1 1 5\n",
			wantIDs: []int{1, 2},
		},
		{
			name:    "name over limit skipped",
			content: "1 " + strings.Repeat("n", MaxNameLen+1) + " 0 0 0\n2 B 0 0 0\n",
			wantIDs: []int{2},
		},
		{
			name:    "name at limit kept",
			content: "1 " + strings.Repeat("n", MaxNameLen) + " 0 0 0\n",
			wantIDs: []int{1},
		},
		{
			name:    "kind out of range skipped",
			content: "1 A 3 0 0\n2 B 2 0 0\n",
			wantIDs: []int{2},
		},
		{
			name:    "state other than 0 or 1 skipped",
			content: "1 A 0 2 0\n2 B 0 1 0\n",
			wantIDs: []int{2},
		},
		{
			name:    "too many fields skipped",
			content: "1 Two Words 0 0 0\n",
			wantIDs: []int{},
		},
		{
			name:    "non-numeric attribute skipped",
			content: "1 A 0 0 x\n",
			wantIDs: []int{},
		},
		{
			name:    "last line without newline",
			content: "1 A 0 0 0\n2 B 0 0 0",
			wantIDs: []int{1, 2},
		},
		{
			name:    "CRLF line endings",
			content: "1 A 0 0 0\r\n2 B 0 0 0\r\n",
			wantIDs: []int{1, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Load(writeFile(t, tt.content))
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if got := ids(r); !equalInts(got, tt.wantIDs) {
				t.Errorf("ids = %v, want %v", got, tt.wantIDs)
			}
		})
	}
}

func TestLoad_DuplicateIDsKeepTheirOwnState(t *testing.T) {
	r, err := Load(writeFile(t, "5 New 2 1 9\n5 Old 0 0 3\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := []Device{
		{ID: 5, Name: "New", Kind: KindCamera, On: true, Attribute: 9},
		{ID: 5, Name: "Old", Kind: KindLight, On: false, Attribute: 3},
	}
	got := r.Devices()
	if len(got) != len(want) {
		t.Fatalf("Devices() = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("device[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestEncodeDecode(t *testing.T) {
	r := testRegistry(t)
	_ = r.SetAttribute(2, -5)

	var buf bytes.Buffer
	if err := Encode(&buf, r); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	decoded, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got, want := ids(decoded), []int{3, 2, 1}; !equalInts(got, want) {
		t.Errorf("ids = %v, want %v", got, want)
	}
	if attr, _ := decoded.Attribute(2); attr != -5 {
		t.Errorf("Attribute(2) = %d, want -5", attr)
	}

	if err := Encode(&buf, nil); !errors.Is(err, ErrNilRegistry) {
		t.Errorf("Encode(nil) error = %v, want ErrNilRegistry", err)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestDecode_ReadError(t *testing.T) {
	r, err := Decode(failingReader{})
	if err == nil {
		t.Fatal("Decode() error = nil, want error")
	}
	if r != nil {
		t.Errorf("Decode() registry = %v, want nil", r)
	}
}

func TestParseRecord(t *testing.T) {
	tests := []struct {
		line   string
		want   Device
		wantOK bool
	}{
		{line: "1 Lamp 0 1 80\n", want: Device{ID: 1, Name: "Lamp", Kind: KindLight, On: true, Attribute: 80}, wantOK: true},
		{line: "  7\tCam  2 0 -3  ", want: Device{ID: 7, Name: "Cam", Kind: KindCamera, Attribute: -3}, wantOK: true},
		{line: "-4 Neg 0 0 0", want: Device{ID: -4, Name: "Neg"}, wantOK: true},
		{line: "x Lamp 0 0 0"},
		{line: "1 Lamp 0 0"},
		{line: "1 Lamp light 0 0"},
		{line: "1 Lamp 0 on 0"},
		{line: ""},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.line), func(t *testing.T) {
			got, ok := ParseRecord(tt.line)
			if ok != tt.wantOK {
				t.Fatalf("ParseRecord(%q) ok = %v, want %v", tt.line, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("ParseRecord(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}

func TestFormatRecord(t *testing.T) {
	d := Device{ID: 3, Name: "FrontDoorCamera", Kind: KindCamera, On: true, Attribute: 1}
	if got, want := FormatRecord(d), "3 FrontDoorCamera 2 1 1\n"; got != want {
		t.Errorf("FormatRecord() = %q, want %q", got, want)
	}
}
