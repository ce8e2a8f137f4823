package s3

import "errors"

var errDocumentTooLarge = errors.New("document exceeds maximum size")
