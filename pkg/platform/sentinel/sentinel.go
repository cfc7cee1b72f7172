package sentinel

import "errors"

// Infrastructure facts returned (optionally wrapped) by stores. Services
// translate them into domain errors:
//   - ErrNotFound: the account or activity row does not exist
//   - ErrConflict: a unique key is already taken
//   - ErrInvalidState: the counter cannot move in the requested direction
//   - ErrUnavailable: the backing store is unreachable
//
// Validation failures belong in pkg/domain-errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
