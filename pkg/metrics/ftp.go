package metrics

import "time"

// FTPMetrics provides observability for the FTP adapter.
//
// The adapter records connection lifecycle and per-command outcomes; sessions
// report data transfers through RecordTransfer, which matches the transfer
// recorder hook of the protocol package.
//
// Example usage:
//
//	adapter := ftp.New(config, prometheus.NewFTPMetrics())
//
//	// Without metrics (no-op)
//	adapter := ftp.New(config, nil)
type FTPMetrics interface {
	// RecordCommand records a dispatched control command.
	//
	// Parameters:
	//   - command: Verb that handled the line ("LIST", "STOR", "UNKNOWN", ...)
	//   - duration: Time spent in the handler, data transfer included
	//   - err: Error returned by the handler, nil if the command completed
	RecordCommand(command string, duration time.Duration, err error)

	// RecordTransfer records a data connection transfer.
	//
	// Parameters:
	//   - command: "LIST", "RETR" or "STOR"
	//   - bytes: Payload bytes moved over the data connection
	//   - duration: Time from dial completion to data connection close
	//   - err: Transfer failure, nil if successful
	RecordTransfer(command string, bytes int64, duration time.Duration, err error)

	// RecordAuthentication records a PASS outcome.
	RecordAuthentication(success bool)

	// RecordRateLimited counts commands delayed by the per-connection limiter.
	RecordRateLimited()

	// SetActiveConnections updates the current connection count.
	SetActiveConnections(count int32)

	// RecordConnectionAccepted increments the accepted connections counter.
	RecordConnectionAccepted()

	// RecordConnectionClosed increments the closed connections counter.
	RecordConnectionClosed()

	// RecordConnectionForceClosed counts connections closed by the shutdown
	// timeout rather than by the client.
	RecordConnectionForceClosed()
}

// NewNoopFTPMetrics returns an FTPMetrics that discards everything.
func NewNoopFTPMetrics() FTPMetrics {
	return noopFTPMetrics{}
}

type noopFTPMetrics struct{}

func (noopFTPMetrics) RecordCommand(command string, duration time.Duration, err error) {}
func (noopFTPMetrics) RecordTransfer(command string, bytes int64, duration time.Duration, err error) {
}
func (noopFTPMetrics) RecordAuthentication(success bool) {}
func (noopFTPMetrics) RecordRateLimited()                {}
func (noopFTPMetrics) SetActiveConnections(count int32)  {}
func (noopFTPMetrics) RecordConnectionAccepted()         {}
func (noopFTPMetrics) RecordConnectionClosed()           {}
func (noopFTPMetrics) RecordConnectionForceClosed()      {}
