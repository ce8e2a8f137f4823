package metrics

import "time"

// BackendMetrics provides observability for backend operations.
//
// Implementations label every observation with the backend type they were
// created for ("memory", "badger", "s3", "mongo").
type BackendMetrics interface {
	// RecordOperation records a completed backend call.
	//
	// Parameters:
	//   - operation: Operation name ("Authenticate", "ListDocuments", ...)
	//   - duration: Time taken by the call
	//   - err: Error if the call failed, nil if successful
	RecordOperation(operation string, duration time.Duration, err error)

	// RecordBytes records payload bytes fetched or stored.
	//
	// Parameters:
	//   - direction: "fetch" or "store"
	//   - bytes: Payload size
	RecordBytes(direction string, bytes int64)
}

// NewNoopBackendMetrics returns a BackendMetrics that discards everything.
func NewNoopBackendMetrics() BackendMetrics {
	return noopBackendMetrics{}
}

type noopBackendMetrics struct{}

func (noopBackendMetrics) RecordOperation(operation string, duration time.Duration, err error) {}
func (noopBackendMetrics) RecordBytes(direction string, bytes int64)                          {}
