package backend

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the bcrypt cost used by HashPassword.
const DefaultBcryptCost = 10

// MaxPasswordLength is the longest password bcrypt hashes without truncation.
const MaxPasswordLength = 72

// ErrPasswordTooLong is returned when a password exceeds MaxPasswordLength.
var ErrPasswordTooLong = errors.New("password must be at most 72 bytes")

// User is a configured account for the embedded backends.
type User struct {
	// Username is the FTP login name.
	Username string `mapstructure:"username" yaml:"username" validate:"required"`

	// PasswordHash is a bcrypt hash of the password.
	PasswordHash string `mapstructure:"password_hash" yaml:"password_hash" validate:"required"`
}

// UserTable verifies credentials for backends without their own user database
// (memory and badger).
//
// Thread safety:
// Immutable after construction; safe for concurrent use.
type UserTable struct {
	users map[string]string
}

// NewUserTable builds a table from configured users. Duplicate usernames are rejected.
func NewUserTable(users []User) (*UserTable, error) {
	t := &UserTable{users: make(map[string]string, len(users))}
	for _, u := range users {
		if u.Username == "" {
			return nil, fmt.Errorf("user with empty username")
		}
		if _, dup := t.users[u.Username]; dup {
			return nil, fmt.Errorf("duplicate user %q", u.Username)
		}
		t.users[u.Username] = u.PasswordHash
	}
	return t, nil
}

// Verify checks username and password. Unknown users and wrong passwords both
// yield ErrAuthFailed.
func (t *UserTable) Verify(username, password string) error {
	hash, ok := t.users[username]
	if !ok {
		// Compare against a fixed hash anyway so unknown users cost the same.
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
		return ErrAuthFailed
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrAuthFailed
	}
	return nil
}

// Len returns the number of configured users.
func (t *UserTable) Len() int {
	return len(t.users)
}

// HashPassword returns a bcrypt hash suitable for User.PasswordHash.
func HashPassword(password string) (string, error) {
	return HashPasswordWithCost(password, DefaultBcryptCost)
}

// HashPasswordWithCost is HashPassword with an explicit bcrypt cost. Tests use
// bcrypt.MinCost to stay fast.
func HashPasswordWithCost(password string, cost int) (string, error) {
	if len(password) > MaxPasswordLength {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

var dummyHash = sync.OnceValue(func() []byte {
	hash, _ := bcrypt.GenerateFromPassword([]byte("docftp"), DefaultBcryptCost)
	return hash
})
