package ftp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/marmos91/docftp/internal/logger"
	"github.com/marmos91/docftp/pkg/backend"
)

// ErrUploadTooLarge aborts a STOR exceeding SessionConfig.MaxUploadSize.
var ErrUploadTooLarge = errors.New("upload exceeds maximum size")

// handleLIST lists the working directory, or the path given as argument.
// Leading option words such as "-la" are ignored.
func handleLIST(ctx context.Context, s *Session, args []string) error {
	raw := listTarget(args)

	db, coll, err := Resolve(s.WorkingDirectory(), raw)
	if err != nil {
		return s.reply(550, "Path too deep: only /database/collection is supported.")
	}

	return s.withDataConnection(ctx, "LIST", func(ctx context.Context, conn net.Conn) (int64, error) {
		listing, err := s.listing(ctx, db, coll)
		if err != nil {
			return 0, err
		}
		n, err := io.WriteString(conn, listing)
		return int64(n), err
	})
}

func listTarget(args []string) string {
	if len(args) == 0 {
		return ""
	}
	var target []string
	for _, field := range strings.Fields(args[0]) {
		if strings.HasPrefix(field, "-") {
			continue
		}
		target = append(target, field)
	}
	return strings.Join(target, " ")
}

// listing renders the children of (db, coll).
func (s *Session) listing(ctx context.Context, db, coll string) (string, error) {
	switch {
	case db == "":
		names, err := s.handle.ListDatabases(ctx)
		if err != nil {
			return "", err
		}
		return formatDirectories(names), nil
	case coll == "":
		names, err := s.handle.ListCollections(ctx, db)
		if err != nil {
			return "", err
		}
		return formatDirectories(names), nil
	default:
		docs, err := s.handle.ListDocuments(ctx, db, coll)
		if err != nil {
			return "", err
		}
		return formatFiles(docs), nil
	}
}

// handleRETR sends a document's content: the structured serialization for
// documents, the stored bytes verbatim for binary content.
func handleRETR(ctx context.Context, s *Session, args []string) error {
	db, coll, id, err := ResolveDocument(s.WorkingDirectory(), args[0])
	if err != nil {
		return s.reply(550, documentPathError(err))
	}

	return s.withDataConnection(ctx, "RETR", func(ctx context.Context, conn net.Conn) (int64, error) {
		data, err := s.handle.FetchContent(ctx, db, coll, id)
		if err != nil {
			return 0, err
		}
		return io.Copy(conn, bytes.NewReader(data))
	})
}

// handleSTOR reads the upload until the client closes the data connection and
// upserts it. Payloads in structured notation become structured documents;
// anything else is stored as opaque bytes.
func handleSTOR(ctx context.Context, s *Session, args []string) error {
	db, coll, id, err := ResolveDocument(s.WorkingDirectory(), args[0])
	if err != nil {
		return s.reply(550, documentPathError(err))
	}

	return s.withDataConnection(ctx, "STOR", func(ctx context.Context, conn net.Conn) (int64, error) {
		data, err := s.readUpload(conn)
		if err != nil {
			return int64(len(data)), err
		}

		if err := s.handle.StoreContent(ctx, db, coll, id, data); err != nil {
			return int64(len(data)), err
		}

		logger.Debug("FTP session %s: stored %d bytes as %s", s.ID, len(data), backend.JoinPath(db, coll, id))
		return int64(len(data)), nil
	})
}

func (s *Session) readUpload(r io.Reader) ([]byte, error) {
	limit := s.config.MaxUploadSize
	if limit <= 0 {
		return io.ReadAll(r)
	}

	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return data, err
	}
	if int64(len(data)) > limit {
		return data[:limit], fmt.Errorf("%w (%d bytes)", ErrUploadTooLarge, limit)
	}
	return data, nil
}

func documentPathError(err error) string {
	if errors.Is(err, ErrPathTooDeep) {
		return "Path too deep: only /database/collection/document is supported."
	}
	return "Not inside a collection: change into /database/collection first."
}
