// Package credential keeps account passwords in the OS keyring.
package credential

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/99designs/keyring"
)

const serviceName = "mailsetup"

// ErrNotFound is returned when no credential is stored under a key.
var ErrNotFound = errors.New("credential: not found")

// Store reads and writes secrets by key.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// Keyring is a Store backed by the system keyring, falling back to an
// encrypted file under the config directory.
type Keyring struct {
	open func() (keyring.Keyring, error)
}

// NewKeyring returns the system keyring store.
func NewKeyring() *Keyring {
	return &Keyring{open: openKeyring}
}

// newWithRing wraps an already opened keyring.
func newWithRing(ring keyring.Keyring) *Keyring {
	return &Keyring{open: func() (keyring.Keyring, error) { return ring, nil }}
}

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	dir := "~/.config/mailsetup/credentials"
	if home, err := os.UserHomeDir(); err == nil {
		dir = filepath.Join(home, ".config", "mailsetup", "credentials")
	}
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  dir,
		FilePasswordFunc:         keyring.FixedStringPrompt("mailsetup-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves a credential value by key.
func (k *Keyring) Get(key string) (string, error) {
	ring, err := k.open()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", fmt.Errorf("getting credential %q: %w", key, ErrNotFound)
		}
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key.
func (k *Keyring) Set(key string, value string) error {
	ring, err := k.open()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: serviceName + " " + key,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key. Deleting a missing key is not an
// error.
func (k *Keyring) Delete(key string) error {
	ring, err := k.open()
	if err != nil {
		return err
	}

	if err := ring.Remove(key); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}
