// Package password hashes and verifies user passwords with bcrypt.
package password

import (
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// MinLength is the shortest password accepted when creating users.
const MinLength = 8

// ErrTooShort is returned by Hash for passwords under MinLength.
var ErrTooShort = errors.New("password too short")

// Hash returns the bcrypt hash of plain.
func Hash(plain string) (string, error) {
	if len(plain) < MinLength {
		return "", ErrTooShort
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Compare returns nil when plain matches hash.
func Compare(hash, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}

var (
	dummyOnce sync.Once
	dummyHash []byte
)

// CompareDummy spends the same bcrypt work as Compare against a hash that
// never matches. Login calls it for unknown emails so response time does not
// reveal which accounts exist.
func CompareDummy(plain string) {
	dummyOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("rivo-no-such-user"), bcrypt.DefaultCost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(plain))
}
