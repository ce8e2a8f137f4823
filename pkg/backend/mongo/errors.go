package mongo

import "errors"

var (
	errDocumentTooLarge = errors.New("document exceeds maximum size")
	errIDMismatch       = errors.New("document _id does not match its name")
)
