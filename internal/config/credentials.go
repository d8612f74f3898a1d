// connectors.yaml lives in the user's home directory, never the
// project directory (spec §6): {namespace: {key: value, ...}}. Values
// resolve through a priority chain: environment variable, OS keyring,
// the file itself, then (if interactive) a prompt.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jettylabs/jetty-access-control/internal/errors"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// CredentialsPathEnvVar is the one credentials-path override named in
// spec §6 ("one credentials-path override locates connectors.yaml").
const CredentialsPathEnvVar = "JETTY_CREDENTIALS_PATH"

// Credentials is the parsed form of connectors.yaml: one free-form
// key/value map per connector namespace.
type Credentials map[string]map[string]string

// CredentialManager resolves and persists per-namespace connector
// secrets.
type CredentialManager struct {
	path    string
	keyring *KeyringManager
}

// NewCredentialManager locates connectors.yaml via JETTY_CREDENTIALS_PATH
// or ~/.jetty/connectors.yaml.
func NewCredentialManager() *CredentialManager {
	return &CredentialManager{
		path:    DefaultCredentialsPath(),
		keyring: NewKeyringManager(),
	}
}

// DefaultCredentialsPath resolves connectors.yaml's location.
func DefaultCredentialsPath() string {
	if p := os.Getenv(CredentialsPathEnvVar); p != "" {
		return p
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".jetty", "connectors.yaml")
}

// Get resolves a single credential for (namespace, key) via the
// priority chain: env var JETTY_<NAMESPACE>_<KEY>, OS keyring, the
// connectors.yaml file, then an interactive prompt as a last resort.
func (cm *CredentialManager) Get(namespace, key string, optional bool) (string, error) {
	envVar := fmt.Sprintf("JETTY_%s_%s", strings.ToUpper(namespace), strings.ToUpper(key))
	if v := os.Getenv(envVar); v != "" {
		return v, nil
	}

	if cm.keyring.IsAvailable() {
		if v, err := cm.keyring.Get(namespace, key); err == nil && v != "" {
			return v, nil
		}
	}

	creds, err := cm.load()
	if err == nil {
		if ns, ok := creds[namespace]; ok {
			if v, ok := ns[key]; ok && v != "" {
				return v, nil
			}
		}
	}

	if optional {
		return "", nil
	}

	if isInteractive() {
		return cm.prompt(namespace, key)
	}

	return "", errors.ConfigError(
		"credential %s/%s not found; set %s, store it via `jetty configure`, or add it to %s",
		namespace, key, envVar, cm.path)
}

// Set stores a credential, preferring the OS keyring and falling back
// to connectors.yaml.
func (cm *CredentialManager) Set(namespace, key, value string) error {
	if cm.keyring.IsAvailable() {
		if err := cm.keyring.Set(namespace, key, value); err == nil {
			return nil
		}
	}
	creds, err := cm.load()
	if err != nil {
		creds = Credentials{}
	}
	if creds[namespace] == nil {
		creds[namespace] = map[string]string{}
	}
	creds[namespace][key] = value
	return cm.save(creds)
}

func (cm *CredentialManager) load() (Credentials, error) {
	data, err := os.ReadFile(cm.path)
	if err != nil {
		return nil, err
	}
	var creds Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, err
	}
	return creds, nil
}

func (cm *CredentialManager) save(creds Credentials) error {
	if dir := filepath.Dir(cm.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	data, err := yaml.Marshal(creds)
	if err != nil {
		return err
	}
	return os.WriteFile(cm.path, data, 0o600)
}

func (cm *CredentialManager) prompt(namespace, key string) (string, error) {
	fmt.Printf("Enter value for %s/%s: ", namespace, key)
	value, err := readSecurely()
	if err != nil {
		return "", err
	}
	if value == "" {
		return "", errors.ConfigError("%s/%s is required", namespace, key)
	}
	if err := cm.Set(namespace, key, value); err == nil {
		fmt.Println("saved")
	}
	return value, nil
}

func readSecurely() (string, error) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(bytes)), nil
	}
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func isInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
