// Package credential stores the SMTP secret in the operating system keyring.
package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "pdfmail"

// ErrNotFound is returned when no secret is stored for an account.
var ErrNotFound = errors.New("credential not found")

// Store reads and writes secrets keyed by sender address.
type Store struct {
	ring keyring.Keyring
}

// NewStore wraps an already opened keyring.
func NewStore(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// Open returns a Store backed by the first available system keyring.
func Open() (*Store, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/pdfmail/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("pdfmail-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewStore(ring), nil
}

// Get retrieves the secret stored for account.
func (s *Store) Get(account string) (string, error) {
	item, err := s.ring.Get(account)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, account)
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", account, err)
	}
	return string(item.Data), nil
}

// Set stores secret for account, replacing any previous value.
func (s *Store) Set(account, secret string) error {
	if err := s.ring.Set(keyring.Item{
		Key:         account,
		Data:        []byte(secret),
		Label:       "pdfmail SMTP password",
		Description: "SMTP password for " + account,
	}); err != nil {
		return fmt.Errorf("setting credential %q: %w", account, err)
	}
	return nil
}

// Delete removes the secret stored for account.
func (s *Store) Delete(account string) error {
	err := s.ring.Remove(account)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, account)
	}
	if err != nil {
		return fmt.Errorf("deleting credential %q: %w", account, err)
	}
	return nil
}

// Lookup opens the system keyring and returns the secret for account.
// It matches the shape config.LoadOptions.PasswordLookup expects.
func Lookup(account string) (string, error) {
	s, err := Open()
	if err != nil {
		return "", err
	}
	return s.Get(account)
}
