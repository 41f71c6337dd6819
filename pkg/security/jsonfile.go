package security

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// jsonFile is a JSON document written atomically and re-read when its mtime
// moves. An empty path disables persistence.
type jsonFile struct {
	path    string
	kind    string
	modTime time.Time
}

func newJSONFile(path, kind string) *jsonFile {
	return &jsonFile{path: path, kind: kind}
}

// changed reports whether the file was modified since the last read or write
func (f *jsonFile) changed() bool {
	if f.path == "" {
		return false
	}
	info, err := os.Stat(f.path)
	return err == nil && info.ModTime().After(f.modTime)
}

// read decodes the file into v. A missing file is not an error; found is false.
func (f *jsonFile) read(v interface{}) (found bool, err error) {
	if f.path == "" {
		return false, nil
	}
	info, err := os.Stat(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat %s file: %w", f.kind, err)
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return false, fmt.Errorf("failed to read %s file: %w", f.kind, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to parse %s file: %w", f.kind, err)
	}
	f.modTime = info.ModTime()
	return true, nil
}

func (f *jsonFile) write(v interface{}) error {
	if f.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", f.kind, err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s file: %w", f.kind, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("failed to write %s file: %w", f.kind, err)
	}
	if info, err := os.Stat(f.path); err == nil {
		f.modTime = info.ModTime()
	}
	return nil
}
