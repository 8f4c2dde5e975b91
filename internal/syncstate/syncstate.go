// Package syncstate persists the timestamp of the last successful time sync.
package syncstate

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Store reads and records the last successful sync. A zero time means
// "never synced". The store is single-writer: only the sync policy updates
// it, once, after a successful fix.
type Store interface {
	LastSync() (time.Time, error)
	SetLastSync(t time.Time) error
}

// fileState is the on-disk shape, kept as Unix seconds so a truncated or
// hand-edited file stays easy to reason about.
type fileState struct {
	LastSyncUnix int64 `json:"last_sync_unix"`
}

// FileStore keeps the state in a small JSON file under the state directory.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore at dir/sync.json.
func NewFileStore(dir string) *FileStore {
	return &FileStore{path: filepath.Join(dir, "sync.json")}
}

// LastSync returns the recorded sync time. A missing file is not an error:
// it is the first-run "never synced" state.
func (s *FileStore) LastSync() (time.Time, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}

	var st fileState
	if err := json.Unmarshal(data, &st); err != nil {
		return time.Time{}, err
	}
	if st.LastSyncUnix <= 0 {
		return time.Time{}, nil
	}
	return time.Unix(st.LastSyncUnix, 0), nil
}

// SetLastSync records t atomically (temp file + rename, same discipline as
// the config store).
func (s *FileStore) SetLastSync(t time.Time) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(fileState{LastSyncUnix: t.Unix()}, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".sync-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, s.path)
}

// Memory is an in-memory Store for tests and render-only runs.
type Memory struct {
	t time.Time
}

func NewMemory(t time.Time) *Memory { return &Memory{t: t} }

func (m *Memory) LastSync() (time.Time, error) { return m.t, nil }

func (m *Memory) SetLastSync(t time.Time) error {
	m.t = t
	return nil
}
