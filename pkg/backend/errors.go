package backend

import (
	"errors"
	"strings"
)

var (
	// ErrAuthFailed indicates the supplied credentials were rejected.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrNotFound indicates the database, collection or document does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the entity being created already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidName indicates a name that the backend cannot represent.
	ErrInvalidName = errors.New("invalid name")
)

// StoreError represents a domain error from a backend operation.
//
// Op names the operation ("fetch", "store", ...) and Path the entity it targeted,
// rendered as db/collection/id. Err is one of the sentinel errors above or an
// infrastructure error from the underlying driver.
type StoreError struct {
	Op   string
	Path string
	Err  error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Path != "" {
		return e.Op + " " + e.Path + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

// Unwrap allows errors.Is against the sentinel errors.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError builds a StoreError for the entity identified by parts.
func NewStoreError(op string, err error, parts ...string) *StoreError {
	return &StoreError{Op: op, Path: JoinPath(parts...), Err: err}
}

// JoinPath renders entity names as db/collection/id, skipping empty parts.
func JoinPath(parts ...string) string {
	nonEmpty := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "/")
}

// ValidateName rejects names that cannot appear as a single path component.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\x00") {
		return ErrInvalidName
	}
	return nil
}
