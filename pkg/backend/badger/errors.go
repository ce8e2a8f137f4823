package badger

import "errors"

var errDocumentTooLarge = errors.New("document exceeds maximum size")
