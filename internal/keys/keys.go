// Package keys keeps the Gemini API key in the OS keyring for the terminal
// client.
package keys

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	service = "bibleai"
	account = "gemini-api-key"
)

var (
	// ErrNotFound is returned when no key is stored.
	ErrNotFound = errors.New("api key not found in keyring")
	// ErrUnavailable wraps keyring backend failures.
	ErrUnavailable = errors.New("OS keyring is not available")
)

// Get returns the stored key.
func Get() (string, error) {
	v, err := keyring.Get(service, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return v, nil
}

// Set stores key, replacing any previous value.
func Set(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("api key cannot be empty")
	}
	if err := keyring.Set(service, account, key); err != nil {
		return fmt.Errorf("store api key: %w", err)
	}
	return nil
}

// Delete removes the stored key.
func Delete() error {
	err := keyring.Delete(service, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete api key: %w", err)
	}
	return nil
}

// Resolve prefers env (the GEMINI_API_KEY value) and falls back to the
// keyring. A missing or unreachable keyring yields "" without error.
func Resolve(env string) string {
	if env = strings.TrimSpace(env); env != "" {
		return env
	}
	v, err := Get()
	if err != nil {
		return ""
	}
	return v
}
