// Package credential stores secrets in the system keyring. Environment
// variables override keyring entries.
package credential

import (
	"fmt"
	"os"

	"github.com/99designs/keyring"
)

const serviceName = "cyclic"

// Keyring entry names.
const (
	KeyAnthropicAPI  = "anthropic-api-key"
	KeyIMAPPassword  = "imap-password"
	KeyRedisPassword = "redis-password"
	KeyPostgresDSN   = "postgres-dsn"
)

// envOverrides maps keyring entries to the environment variables that
// take precedence over them.
var envOverrides = map[string]string{
	KeyAnthropicAPI:  "ANTHROPIC_API_KEY",
	KeyIMAPPassword:  "CYCLIC_IMAP_PASSWORD",
	KeyRedisPassword: "CYCLIC_REDIS_PASSWORD",
	KeyPostgresDSN:   "CYCLIC_DATABASE_DSN",
}

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/cyclic/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("cyclic-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Lookup returns the secret for key, preferring its environment
// variable. A secret that is set nowhere yields "" and no error.
func Lookup(key string) string {
	return lookup(key, os.Getenv, Get)
}

func lookup(key string, getenv func(string) string, get func(string) (string, error)) string {
	if env, ok := envOverrides[key]; ok {
		if v := getenv(env); v != "" {
			return v
		}
	}
	v, err := get(key)
	if err != nil {
		return ""
	}
	return v
}

// Get retrieves a credential value by key from the system keyring.
func Get(key string) (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key in the system keyring.
func Set(key string, value string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: "cyclic " + key,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key from the system keyring.
func Delete(key string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	if err := ring.Remove(key); err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}

// Known reports whether key is one of the entries the application reads.
func Known(key string) bool {
	_, ok := envOverrides[key]
	return ok
}
