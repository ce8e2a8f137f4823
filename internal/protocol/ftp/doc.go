// Package ftp implements the FTP control protocol on top of a backend.Backend.
//
// # Architecture Overview
//
//   - Framing (framer.go): CRLF line framing of the control stream
//   - Paths (path.go): virtual paths <-> (database, collection)
//   - Session (session.go): per-connection state machine and replies
//   - Dispatch (commands.go): ordered regex command table
//   - Handlers (handlers.go, transfer.go): command semantics
//   - Data connections (dataconn.go): active-mode transfer lifecycle
//
// The virtual filesystem is two levels deep: the root lists databases, a
// database lists its collections and a collection lists its documents as files.
//
// # Thread Safety
//
// A Session is owned by the goroutine serving its control connection. Commands
// run strictly sequentially and nothing in this package shares mutable state
// across sessions.
//
// The accept loop, deadlines and metrics live in pkg/adapter/ftp.
package ftp
