package stores

import (
	"context"
	"errors"

	"github.com/zalando/go-keyring"

	"github.com/systmms/confseal/pkg/secretstore"
)

// defaultKeyringService is the OS keychain service name payloads are filed
// under.
const defaultKeyringService = "confseal"

// KeyringStore persists payloads in the OS keychain (macOS Keychain, Linux
// Secret Service, Windows Credential Manager) via go-keyring. Suited to
// single-operator local development; the coordinate string is the keychain
// account name.
type KeyringStore struct {
	name    string
	service string
}

// NewKeyringStore creates a keyring store. service defaults to "confseal"
// when empty.
func NewKeyringStore(name, service string) *KeyringStore {
	if service == "" {
		service = defaultKeyringService
	}
	return &KeyringStore{name: name, service: service}
}

// Write stores the payload under the coordinate.
func (s *KeyringStore) Write(ctx context.Context, coordinate string, value string) error {
	if err := keyring.Set(s.service, coordinate, value); err != nil {
		return secretstore.WriteError{Backend: s.name, Key: coordinate, Err: err}
	}
	return nil
}

// Read returns the payload stored under the coordinate.
func (s *KeyringStore) Read(ctx context.Context, coordinate string) (string, error) {
	value, err := keyring.Get(s.service, coordinate)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", secretstore.NotFoundError{Backend: s.name, Key: coordinate}
		}
		return "", err
	}
	return value, nil
}

// Delete removes the payload under the coordinate; absent entries are not
// an error.
func (s *KeyringStore) Delete(ctx context.Context, coordinate string) error {
	err := keyring.Delete(s.service, coordinate)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return nil
}

// NewKeyringStoreFactory creates a keyring store factory.
func NewKeyringStoreFactory(name string, config map[string]interface{}) (secretstore.Store, error) {
	service := ""
	if s, ok := config["service"].(string); ok {
		service = s
	}
	return NewKeyringStore(name, service), nil
}
