package blobts

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/bobg/blobts/vcs"
)

var (
	// ErrKeyCollision means no free filename was found
	// within the configured number of collision retries.
	ErrKeyCollision = errors.New("key collision")

	// ErrSyncFailed is matched (via errors.Is) by a *SyncError.
	ErrSyncFailed = errors.New("synchronization failed")

	// ErrTimeInvalid means a requested time cannot be used as a key.
	ErrTimeInvalid = errors.New("invalid time")
)

// PreconditionError means the working directory cannot back a store.
type PreconditionError = vcs.PreconditionError

// ConfigError means a store was constructed with invalid options.
// It wraps errors such as codec.ErrUnknownCompression and codec.ErrInvalidKey.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration: %s", e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// SyncError means blobs were committed locally
// but could not be pushed to the remote within the retry limit.
// The local commit has been rolled back, so none of the blobs were stored.
type SyncError struct {
	Attempts int
	Err      error // the last error encountered
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("%s after %d attempt(s): %s", ErrSyncFailed, e.Attempts, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

func (e *SyncError) Is(target error) bool { return target == ErrSyncFailed }
