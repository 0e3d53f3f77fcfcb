// Package pin guards mutating actions with per-account PINs. Hashes live in
// the shared snapshot under the pins key, so every device verifies against
// the same table.
package pin

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/tallyvault/tallyvault/internal/ledger"
)

var (
	// ErrMismatch indicates the supplied PIN does not match the stored hash.
	ErrMismatch = errors.New("invalid PIN")

	// ErrNotSet indicates no PIN is registered for the account.
	ErrNotSet = errors.New("no PIN set for account")

	// ErrTooShort rejects PINs under four digits at registration.
	ErrTooShort = errors.New("PIN must be at least 4 digits")
)

// Verifier checks and registers PINs against the ledger store's hash table.
type Verifier struct {
	store *ledger.Store
}

// NewVerifier builds a verifier over the shared store.
func NewVerifier(store *ledger.Store) *Verifier {
	return &Verifier{store: store}
}

// Hash validates a PIN and returns its bcrypt hash without storing it, so
// callers can defer the table write until their other checks have passed.
func (v *Verifier) Hash(pin string) (string, error) {
	if len(pin) < 4 {
		return "", ErrTooShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Register hashes and stores the PIN for an account.
func (v *Verifier) Register(accountID, pin string) error {
	hash, err := v.Hash(pin)
	if err != nil {
		return err
	}
	v.store.SetPIN(accountID, hash)
	return nil
}

// Verify compares the supplied PIN against the stored hash. It never
// mutates state; a mismatch is a plain business rejection.
func (v *Verifier) Verify(accountID, pin string) error {
	hash, ok := v.store.PINHash(accountID)
	if !ok {
		return ErrNotSet
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) != nil {
		return ErrMismatch
	}
	return nil
}
