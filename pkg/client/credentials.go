package client

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// credentialKey is the fixed name the operator-supplied key is stored
// under, kept separate from the server's environment configuration.
const credentialKey = "gemini_user_api_key"

// ErrNoCredential is returned when no operator key has been stored.
var ErrNoCredential = errors.New("no stored credential")

// CredentialStore persists the operator-supplied model API key between
// runs. The key lives in a small JSON file under the user config dir so a
// rejected key can be purged without touching anything else there.
type CredentialStore struct {
	path string
}

// NewCredentialStore builds a store rooted at the user config directory.
func NewCredentialStore() (*CredentialStore, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return nil, err
	}
	return &CredentialStore{path: filepath.Join(base, "markwise", "credentials.json")}, nil
}

// NewCredentialStoreAt builds a store backed by an explicit file path.
func NewCredentialStoreAt(path string) *CredentialStore {
	return &CredentialStore{path: path}
}

// Load returns the stored key, or ErrNoCredential when none is saved.
func (s *CredentialStore) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNoCredential
		}
		return "", err
	}

	var values map[string]string
	if err := json.Unmarshal(data, &values); err != nil {
		return "", ErrNoCredential
	}
	key := strings.TrimSpace(values[credentialKey])
	if key == "" {
		return "", ErrNoCredential
	}
	return key, nil
}

// Save stores the key, creating the config directory if needed.
func (s *CredentialStore) Save(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("empty credential")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	data, err := json.Marshal(map[string]string{credentialKey: key})
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

// Purge removes the stored key. Missing files are not an error.
func (s *CredentialStore) Purge() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
