package backend

import (
	"bytes"
	"encoding/json"
)

// IsStructured reports whether data is in the backends' structured document
// notation: a single JSON object.
func IsStructured(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	return json.Valid(trimmed)
}

// CanonicalDocument returns the stored form of a structured document: the JSON
// object with insignificant whitespace removed. Key order and values are kept as
// sent, so a payload that is already compact is returned unchanged.
func CanonicalDocument(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, bytes.TrimSpace(data)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ContentKind distinguishes structured documents from opaque payloads.
type ContentKind byte

const (
	KindDocument ContentKind = 'D'
	KindBinary   ContentKind = 'B'
)

// String returns a human-readable kind.
func (k ContentKind) String() string {
	switch k {
	case KindDocument:
		return "document"
	case KindBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// Classify decides how a STOR payload is kept: structured documents are
// canonicalized, anything else is returned verbatim as binary.
func Classify(data []byte) (ContentKind, []byte) {
	if IsStructured(data) {
		if canonical, err := CanonicalDocument(data); err == nil {
			return KindDocument, canonical
		}
	}
	return KindBinary, data
}
