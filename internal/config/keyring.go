package config

import (
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringService names this tool's entry in the OS credential store.
const KeyringService = "jetty-access-control"

// KeyringManager stores per-connector secrets in the OS keychain
// (macOS Keychain, Windows Credential Manager, Linux Secret Service).
type KeyringManager struct{}

// NewKeyringManager returns a ready-to-use keyring manager.
func NewKeyringManager() *KeyringManager { return &KeyringManager{} }

func keyringItem(namespace, key string) string {
	return fmt.Sprintf("%s/%s", namespace, key)
}

// IsAvailable probes whether a usable OS keychain backend is present.
func (k *KeyringManager) IsAvailable() bool {
	_, err := keyring.Get(KeyringService, "__probe__")
	return err == nil || err == keyring.ErrNotFound
}

// Get retrieves a single credential key for a connector namespace.
func (k *KeyringManager) Get(namespace, key string) (string, error) {
	return keyring.Get(KeyringService, keyringItem(namespace, key))
}

// Set stores a single credential key for a connector namespace.
func (k *KeyringManager) Set(namespace, key, value string) error {
	return keyring.Set(KeyringService, keyringItem(namespace, key), value)
}

// Delete removes a stored credential key.
func (k *KeyringManager) Delete(namespace, key string) error {
	return keyring.Delete(KeyringService, keyringItem(namespace, key))
}
