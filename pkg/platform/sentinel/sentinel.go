package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, locks, and adapters return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: row/object does not exist in the store
// - ErrVersionConflict: optimistic version check failed, a concurrent writer won
// - ErrConflict: unique constraint or duplicate write
//
// For validation errors (bad input, illegal transitions), use
// pkg/domain-errors directly.
var (
	ErrNotFound        = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")
	ErrConflict        = errors.New("conflict")
)
