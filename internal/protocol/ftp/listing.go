package ftp

import (
	"strconv"
	"strings"

	"github.com/marmos91/docftp/pkg/backend"
)

const (
	directoryPrefix = "drwxrwxr-x 1 0 0 4096 "
	filePrefix      = "-rw-rw-r-- 1 0 0 "
)

// formatDirectories renders databases or collections as directory entries.
func formatDirectories(names []string) string {
	lines := make([]string, len(names))
	for i, name := range names {
		lines[i] = directoryPrefix + name
	}
	return strings.Join(lines, "\r\n")
}

// formatFiles renders documents as file entries with their backend size.
func formatFiles(docs []backend.DocumentInfo) string {
	lines := make([]string, len(docs))
	for i, doc := range docs {
		lines[i] = filePrefix + strconv.FormatInt(doc.Size, 10) + " " + doc.ID
	}
	return strings.Join(lines, "\r\n")
}
