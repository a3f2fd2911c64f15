// Package creds persists the authenticated session between command
// invocations: email, api key, decrypted master keys, and the drive root.
// The file is owner-readable only; whoever can read it can read the drive.
package creds

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/CrispStrobe/filen-go/internal/common"
	"github.com/CrispStrobe/filen-go/internal/filex"
	"github.com/CrispStrobe/filen-go/internal/models"
)

// storedCredentials is the on-disk JSON shape. MasterKeys holds the key
// ring joined with "|", oldest first.
type storedCredentials struct {
	Email          string `json:"email"`
	APIKey         string `json:"apiKey"`
	MasterKeys     string `json:"masterKeys"`
	BaseFolderUUID string `json:"baseFolderUUID"`
	UserID         int64  `json:"userId"`
}

// Store reads and writes one credentials file.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the credentials file location.
func (s *Store) Path() string {
	return s.path
}

// Save writes the identity, creating the parent directory if needed. The
// file mode keeps the master keys private to the user.
func (s *Store) Save(id *models.Identity) error {
	if err := filex.EnsureParentDir(s.path); err != nil {
		return fmt.Errorf("creds: %w", err)
	}

	sc := storedCredentials{
		Email:          id.Email,
		APIKey:         id.APIKey,
		MasterKeys:     strings.Join(id.MasterKeys, "|"),
		BaseFolderUUID: id.BaseFolderUUID,
		UserID:         id.UserID,
	}
	data, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("creds: encode: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("creds: write %s: %w", s.path, err)
	}
	return nil
}

// Load returns the stored identity. A missing or incomplete file means the
// user is not logged in.
func (s *Store) Load() (*models.Identity, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, common.ErrAuthMissing
		}
		return nil, fmt.Errorf("creds: read %s: %w", s.path, err)
	}

	var sc storedCredentials
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("creds: decode %s: %w", s.path, err)
	}
	if sc.APIKey == "" {
		return nil, common.ErrAuthMissing
	}

	id := &models.Identity{
		Email:          sc.Email,
		APIKey:         sc.APIKey,
		BaseFolderUUID: sc.BaseFolderUUID,
		UserID:         sc.UserID,
	}
	for _, k := range strings.Split(sc.MasterKeys, "|") {
		if k != "" {
			id.MasterKeys = append(id.MasterKeys, k)
		}
	}
	return id, nil
}

// Delete removes the credentials file. Deleting a file that does not exist
// is not an error; logout is idempotent.
func (s *Store) Delete() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("creds: delete %s: %w", s.path, err)
	}
	return nil
}
