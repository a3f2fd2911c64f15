package batch

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/CrispStrobe/filen-go/internal/filex"
)

// StateStore persists batch states as JSON files in one directory. A file
// lock next to each state file keeps two invocations of the same batch from
// clobbering each other's saves.
type StateStore struct {
	dir string
}

func NewStateStore(dir string) *StateStore {
	return &StateStore{dir: dir}
}

// Path returns where the state of a batch id lives.
func (s *StateStore) Path(id string) string {
	return filepath.Join(s.dir, "batch_state_"+id+".json")
}

func (s *StateStore) lockPath(id string) string {
	return s.Path(id) + ".lock"
}

// Load reads a batch state. A missing file is not an error; it returns
// (nil, nil) and means the batch has not run before.
func (s *StateStore) Load(id string) (*State, error) {
	data, err := os.ReadFile(s.Path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("batch: read state %s: %w", id, err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("batch: decode state %s: %w", id, err)
	}
	return &st, nil
}

// Save writes a batch state under its file lock. State files may hold
// upload keys, so they are not group or world readable.
func (s *StateStore) Save(id string, st *State) error {
	if err := filex.EnsurePrivateDir(s.dir); err != nil {
		return err
	}
	lock := flock.New(s.lockPath(id))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("batch: lock state %s: %w", id, err)
	}
	defer lock.Unlock()

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("batch: encode state %s: %w", id, err)
	}
	if err := os.WriteFile(s.Path(id), data, 0o600); err != nil {
		return fmt.Errorf("batch: write state %s: %w", id, err)
	}
	return nil
}

// Delete removes a batch's state and lock files. Deleting a batch that was
// never saved is fine.
func (s *StateStore) Delete(id string) error {
	if err := os.Remove(s.Path(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("batch: delete state %s: %w", id, err)
	}
	if err := os.Remove(s.lockPath(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("batch: delete state lock %s: %w", id, err)
	}
	return nil
}
