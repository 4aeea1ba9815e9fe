package device

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Flat-file format constants.
const (
	// recordFields is the number of whitespace-separated fields per line:
	// id name kind state attribute
	recordFields = 5

	// filePermissions is the permission mode for saved registry files.
	filePermissions = 0600
)

// Save writes the registry to path, one record per line, head first.
//
// The file is written to a temporary sibling and renamed into place, so a
// failed save never leaves a partially written file behind. If path is a
// symlink, the file it points to is replaced and the link is kept. An
// existing file keeps its permission bits and must be writable; a new file
// is created with mode 0600.
//
// Returns:
//   - ErrInvalidPath if path is empty
//   - ErrNilRegistry if r is nil
//   - a wrapped I/O error if the destination cannot be written
func Save(r *Registry, path string) (err error) {
	if path == "" {
		return ErrInvalidPath
	}
	if r == nil {
		return ErrNilRegistry
	}

	target, mode, err := resolveDestination(path)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating registry file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()        //nolint:errcheck // Best effort cleanup on error path
			os.Remove(tmpName) //nolint:errcheck // Best effort cleanup on error path
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err = Encode(bw, r); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return fmt.Errorf("writing registry file: %w", err)
	}
	if err = tmp.Chmod(mode); err != nil {
		return fmt.Errorf("setting registry file permissions: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing registry file: %w", err)
	}
	if err = os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("replacing registry file: %w", err)
	}
	return nil
}

// resolveDestination returns the file Save replaces and the mode to give it.
func resolveDestination(path string) (string, os.FileMode, error) {
	target, err := filepath.EvalSymlinks(path)
	if errors.Is(err, fs.ErrNotExist) {
		if _, lerr := os.Lstat(path); lerr == nil {
			return "", 0, fmt.Errorf("registry file %s is a dangling symlink: %w", path, err)
		}
		return path, filePermissions, nil
	}
	if err != nil {
		return "", 0, fmt.Errorf("resolving registry file: %w", err)
	}

	info, err := os.Stat(target)
	if err != nil {
		return "", 0, fmt.Errorf("checking registry file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", 0, fmt.Errorf("registry file %s is not a regular file", target)
	}
	// The rename only needs a writable directory; refuse a file its owner
	// made read-only.
	f, err := os.OpenFile(target, os.O_WRONLY, 0)
	if err != nil {
		return "", 0, fmt.Errorf("registry file is not writable: %w", err)
	}
	f.Close() //nolint:errcheck // opened only to check access
	return target, info.Mode().Perm(), nil
}

// Load reads a registry previously written by Save.
//
// Only a file that cannot be opened or read yields an error (and a nil
// registry). Lines that do not have the exact record shape are skipped, so a
// file of nothing but malformed lines loads as an empty registry.
func Load(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening registry file: %w", err)
	}
	defer f.Close()

	r, err := Decode(f)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Encode writes every record of r to w in the flat-file format.
func Encode(w io.Writer, r *Registry) error {
	if r == nil {
		return ErrNilRegistry
	}
	for _, d := range r.devices {
		if _, err := io.WriteString(w, FormatRecord(d)); err != nil {
			return fmt.Errorf("writing registry record: %w", err)
		}
	}
	return nil
}

// FormatRecord renders a single record as one newline-terminated line.
func FormatRecord(d Device) string {
	return fmt.Sprintf("%d %s %d %d %d\n", d.ID, d.Name, int(d.Kind), boolToInt(d.On), d.Attribute)
}

// Decode reads flat-file records from rd into a new registry.
//
// The first record read becomes the head, so Decode(Encode(r)) reproduces the
// order of r. Each accepted record goes through Add and then the state and
// attribute setters, so records Add would reject (a negative id) are dropped.
func Decode(rd io.Reader) (*Registry, error) {
	var records []Device

	br := bufio.NewReader(rd)
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			if d, ok := ParseRecord(line); ok {
				records = append(records, d)
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading registry file: %w", err)
		}
	}

	return NewRegistryFrom(records), nil
}

// ParseRecord parses one flat-file line.
// It reports false unless the line is exactly
// "<int> <name of at most MaxNameLen bytes> <0|1|2> <0|1> <int>".
func ParseRecord(line string) (Device, bool) {
	fields := strings.Fields(line)
	if len(fields) != recordFields {
		return Device{}, false
	}

	id, err := strconv.Atoi(fields[0])
	if err != nil {
		return Device{}, false
	}

	name := fields[1]
	if len(name) > MaxNameLen {
		return Device{}, false
	}

	kind, err := strconv.Atoi(fields[2])
	if err != nil || !Kind(kind).Valid() {
		return Device{}, false
	}

	var on bool
	switch fields[3] {
	case "0":
	case "1":
		on = true
	default:
		return Device{}, false
	}

	attribute, err := strconv.Atoi(fields[4])
	if err != nil {
		return Device{}, false
	}

	return Device{
		ID:        id,
		Name:      name,
		Kind:      Kind(kind),
		On:        on,
		Attribute: attribute,
	}, true
}
