package artifact

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
)

// DirStore writes each artifact to <root>/<sessionID>/<name>.
type DirStore struct {
	root string
}

// NewDirStore returns a store rooted at dir. The directory is created on
// the first Save.
func NewDirStore(dir string) *DirStore {
	return &DirStore{root: dir}
}

// Root returns the store's root directory.
func (d *DirStore) Root() string { return d.root }

// Path returns the file path an artifact is stored at.
func (d *DirStore) Path(sessionID, name string) string {
	return filepath.Join(d.root, sessionID, name)
}

// Save writes data through a temporary file and a rename, so readers never
// observe a partially written artifact.
func (d *DirStore) Save(sessionID, name string, data []byte) error {
	if err := checkName(sessionID, name); err != nil {
		return err
	}

	dir := filepath.Join(d.root, sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+name+".*")
	if err != nil {
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return err
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}

	return os.Rename(tmp.Name(), filepath.Join(dir, name))
}

// Get reads an artifact or returns ErrNotFound.
func (d *DirStore) Get(sessionID, name string) ([]byte, error) {
	if err := checkName(sessionID, name); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(d.Path(sessionID, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}

	return data, err
}

// List returns the sorted artifact names of the session. Temporary files
// from in-flight saves are skipped.
func (d *DirStore) List(sessionID string) ([]string, error) {
	if err := checkName(sessionID, "x"); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(filepath.Join(d.root, sessionID))
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}

	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))

	for _, e := range entries {
		if e.IsDir() || e.Name()[0] == '.' {
			continue
		}

		names = append(names, e.Name())
	}

	slices.Sort(names)

	return names, nil
}

// Delete removes an artifact or returns ErrNotFound.
func (d *DirStore) Delete(sessionID, name string) error {
	if err := checkName(sessionID, name); err != nil {
		return err
	}

	err := os.Remove(d.Path(sessionID, name))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}

	return err
}

var _ Store = (*DirStore)(nil)
