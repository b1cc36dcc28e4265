package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, leases and AI adapters return
// these (optionally wrapped) so services can decide between failing a run and
// degrading gracefully:
// - ErrNotFound: the row, profile or adapter does not exist
// - ErrConflict: a uniqueness rule or a concurrent writer got there first
// - ErrInvalidState: the data violates an invariant the caller relies on
// - ErrUnavailable: an optional capability (pg_trgm, pgvector, an embedding
//   endpoint) is missing or unreachable
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
