package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// fileLayout maps a collection to its file name and the envelope key the
// array is stored under, e.g. channels.json = {"channels": [...]}.
var fileLayout = map[Collection]struct {
	name string
	key  string
}{
	Media:    {name: "database.json", key: "media"},
	Channels: {name: "channels.json", key: "channels"},
	Schedule: {name: "schedule.json", key: "schedules"},
}

// FileStore keeps each collection in its own JSON file under a directory.
type FileStore struct {
	dir string
}

// NewFileStore returns a FileStore rooted at dir, creating dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Path returns the file backing c.
func (s *FileStore) Path(c Collection) string {
	return filepath.Join(s.dir, fileLayout[c].name)
}

// Read implements Store.Read.
func (s *FileStore) Read(_ context.Context, c Collection) (json.RawMessage, error) {
	if err := checkCollection(c); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path(c))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrMissing
		}
		return nil, fmt.Errorf("read %s: %w", c, err)
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, c, err)
	}
	raw, ok := envelope[fileLayout[c].key]
	if !ok || !isArray(raw) {
		return nil, fmt.Errorf("%w: %s: no %q array", ErrInvalid, c, fileLayout[c].key)
	}
	return raw, nil
}

// Write implements Store.Write. The file is replaced atomically through a
// temporary file in the same directory.
func (s *FileStore) Write(_ context.Context, c Collection, snapshot json.RawMessage) error {
	if err := checkCollection(c); err != nil {
		return err
	}
	if !isArray(snapshot) {
		return fmt.Errorf("write %s: %w", c, ErrInvalid)
	}

	data, err := json.MarshalIndent(map[string]json.RawMessage{fileLayout[c].key: snapshot}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", c, err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+fileLayout[c].name+".*")
	if err != nil {
		return fmt.Errorf("write %s: %w", c, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", c, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", c, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", c, err)
	}
	if err := os.Rename(tmpName, s.Path(c)); err != nil {
		return fmt.Errorf("replace %s: %w", c, err)
	}
	return nil
}

// Ensure implements Store.Ensure.
func (s *FileStore) Ensure(ctx context.Context, c Collection, def json.RawMessage) (bool, error) {
	return ensureWith(ctx, s, c, def)
}
