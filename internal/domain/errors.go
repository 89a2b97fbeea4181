package domain

import "errors"

var (
	// ErrNotFound signals a missing context record.
	ErrNotFound = errors.New("context not found")
	// ErrAlreadyExists signals a duplicate record id.
	ErrAlreadyExists = errors.New("context already exists")
	// ErrValidation signals a malformed filter, patch or record.
	ErrValidation = errors.New("validation failed")
	// ErrCapacityExceeded signals a full bounded store with eviction disabled.
	ErrCapacityExceeded = errors.New("store capacity exceeded")
	// ErrBackendUnavailable signals a transient failure reaching the durable store.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrIndexInconsistency signals an index entry whose target record is missing.
	// Repaired opportunistically and never surfaced to callers as data.
	ErrIndexInconsistency = errors.New("index inconsistency")
)
