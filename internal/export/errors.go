package export

import "errors"

var (
	// ErrExporterClosed is returned when a job is submitted after Shutdown.
	ErrExporterClosed = errors.New("transcript exporter closed")
	// ErrStorageUnavailable indicates no object store is configured.
	ErrStorageUnavailable = errors.New("transcript storage unavailable")
)
