// Package common defines the sentinel errors shared by the storage, cache and
// service layers of the soundboard. Callers should use errors.Is to match
// these values; lower layers wrap them with context via fmt.Errorf("...: %w").
package common

import "errors"

var (
	// Object store errors.
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrStorageFull        = errors.New("storage medium full")
	ErrUnknownPartition   = errors.New("unknown partition")
	ErrMissingKey         = errors.New("document has no value at key path")
	ErrClosed             = errors.New("store is closed")

	// Schema migration errors.
	ErrBlocked          = errors.New("schema upgrade blocked by another open handle")
	ErrVersionDowngrade = errors.New("requested schema version is older than stored version")
	ErrUnknownVersion   = errors.New("no migration step for requested schema version")

	// Repository-level errors.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	ErrCorrupted     = errors.New("stored payload failed checksum verification")

	// Cache / network errors. ErrNetworkFailure never reaches callers of the
	// thumbnail cache; it is logged and folded into an absent result.
	ErrNetworkFailure = errors.New("network failure")
)
