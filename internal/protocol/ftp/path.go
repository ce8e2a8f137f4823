package ftp

import (
	"errors"
	"path"
	"strings"
)

// maxDepth is the number of path components the hierarchy supports:
// database and collection.
const maxDepth = 2

var (
	// ErrPathTooDeep is returned for paths below the collection level.
	ErrPathTooDeep = errors.New("path is deeper than database/collection")

	// ErrNotInCollection is returned when a document reference does not
	// resolve to a position inside a collection.
	ErrNotInCollection = errors.New("document path is not inside a collection")
)

// Resolve maps a raw path argument to a (database, collection) pair.
//
// Absolute paths are used as given, relative ones are joined to cwd. The result
// is normalized with POSIX semantics, so "." and ".." and repeated separators
// collapse; ".." above the root stays at the root. Empty results mean "above
// that level": ("", "") is the root and (db, "") a database.
//
// No backend is consulted; the named entities need not exist.
func Resolve(cwd, raw string) (database, collection string, err error) {
	parts := splitPath(joinPath(cwd, raw))
	if len(parts) > maxDepth {
		return "", "", ErrPathTooDeep
	}

	switch len(parts) {
	case 2:
		return parts[0], parts[1], nil
	case 1:
		return parts[0], "", nil
	default:
		return "", "", nil
	}
}

// WorkingDirectory renders a (database, collection) pair as a virtual path.
func WorkingDirectory(database, collection string) string {
	switch {
	case database == "":
		return "/"
	case collection == "":
		return "/" + database
	default:
		return "/" + database + "/" + collection
	}
}

// ResolveDocument maps a RETR/STOR argument to a document.
//
// A bare identifier names a document in the current collection; a path names a
// document whose parent is a collection, e.g. "/shop/orders/o-1" or
// "../customers/c-7".
func ResolveDocument(cwd, raw string) (database, collection, id string, err error) {
	if raw == "" {
		return "", "", "", ErrNotInCollection
	}

	parts := splitPath(joinPath(cwd, raw))
	switch {
	case len(parts) > maxDepth+1:
		return "", "", "", ErrPathTooDeep
	case len(parts) < maxDepth+1:
		return "", "", "", ErrNotInCollection
	}
	return parts[0], parts[1], parts[2], nil
}

func joinPath(cwd, raw string) string {
	if path.IsAbs(raw) {
		return path.Clean(raw)
	}
	if cwd == "" {
		cwd = "/"
	}
	return path.Join(cwd, raw)
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
