package badger

import "strings"

// Key Namespace
// =============
//
// Data Type        Prefix  Key Format                      Value
// =================================================================
// Collection       "c:"    c:<db>\x00<coll>                empty
// Document         "d:"    d:<db>\x00<coll>\x00<id>        kind byte + payload
//
// Names never contain NUL (see backend.ValidateName), so \x00 separates
// components unambiguously and a prefix scan over "c:<db>\x00" lists exactly
// the collections of one database.
//
// Databases have no key of their own: a database exists while at least one
// collection key references it.

const (
	prefixCollection = "c:"
	prefixDocument   = "d:"
	sep              = "\x00"
)

func keyCollection(db, coll string) []byte {
	return []byte(prefixCollection + db + sep + coll)
}

func keyCollectionPrefix(db string) []byte {
	return []byte(prefixCollection + db + sep)
}

func keyDocument(db, coll, id string) []byte {
	return []byte(prefixDocument + db + sep + coll + sep + id)
}

func keyDocumentPrefix(db, coll string) []byte {
	return []byte(prefixDocument + db + sep + coll + sep)
}

// splitCollectionKey returns the database and collection of a "c:" key.
func splitCollectionKey(key []byte) (db, coll string, ok bool) {
	rest, found := strings.CutPrefix(string(key), prefixCollection)
	if !found {
		return "", "", false
	}
	return strings.Cut(rest, sep)
}

// encodeValue prefixes the payload with its content kind.
func encodeValue(kind byte, data []byte) []byte {
	v := make([]byte, 0, len(data)+1)
	v = append(v, kind)
	return append(v, data...)
}
