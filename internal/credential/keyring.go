// Package credential keeps showbot's secrets in the system keyring.
package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"

	"github.com/nhle/showbot/internal/model"
)

const serviceName = "showbot"

// Keyring keys.
const (
	KeyCohumanAPIKey       = "cohuman-api-key"
	KeyCohumanAPISecret    = "cohuman-api-secret"
	KeyCohumanAccessToken  = "cohuman-access-token"
	KeyCohumanAccessSecret = "cohuman-access-secret"
	KeyIncomingSecret      = "incoming-email-secret"
	KeyOutgoingSecret      = "outgoing-email-secret"
)

// Vault reads and writes secrets by key.
type Vault interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("credential not found")

// Keyring is a Vault backed by the OS keychain, Secret Service, pass or an
// encrypted file, whichever is available.
type Keyring struct {
	ring keyring.Keyring
}

// Open returns a configured keyring.
func Open() (*Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/showbot/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("showbot-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return &Keyring{ring: ring}, nil
}

// Get retrieves a credential value by key.
func (k *Keyring) Get(key string) (string, error) {
	item, err := k.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("getting credential %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key.
func (k *Keyring) Set(key string, value string) error {
	err := k.ring.Set(keyring.Item{
		Key:  key,
		Data: []byte(value),
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key. Deleting a missing key is not an error.
func (k *Keyring) Delete(key string) error {
	err := k.ring.Remove(key)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}

// Fill copies secrets from v into the empty secret fields of cfg.
// Values already present (from file or environment) win. It returns the
// keys that were filled.
func Fill(v Vault, cfg *model.AppConfig) []string {
	targets := []struct {
		key   string
		field *string
	}{
		{KeyCohumanAPIKey, &cfg.Cohuman.APIKey},
		{KeyCohumanAPISecret, &cfg.Cohuman.APISecret},
		{KeyCohumanAccessToken, &cfg.Cohuman.AccessToken},
		{KeyCohumanAccessSecret, &cfg.Cohuman.AccessSecret},
		{KeyIncomingSecret, &cfg.Mail.Incoming.Secret},
		{KeyOutgoingSecret, &cfg.Mail.Outgoing.Secret},
	}

	var filled []string
	for _, t := range targets {
		if *t.field != "" {
			continue
		}
		value, err := v.Get(t.key)
		if err != nil || value == "" {
			continue
		}
		*t.field = value
		filled = append(filled, t.key)
	}
	return filled
}

// MemoryVault is an in-process Vault for tests and for environments with no
// usable keyring.
type MemoryVault map[string]string

func (m MemoryVault) Get(key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", fmt.Errorf("getting credential %q: %w", key, ErrNotFound)
	}
	return v, nil
}

func (m MemoryVault) Set(key, value string) error {
	m[key] = value
	return nil
}

func (m MemoryVault) Delete(key string) error {
	delete(m, key)
	return nil
}
