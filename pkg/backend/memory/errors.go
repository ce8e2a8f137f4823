package memory

import "errors"

var errDocumentTooLarge = errors.New("document exceeds maximum size")
