package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) and services translate them into domain errors:
//   - ErrNotFound: record or document does not exist
//   - ErrConflict: a uniqueness constraint (fingerprint, identifier) was hit
//   - ErrAlreadyUsed: a one-shot transition (document link) already happened
//   - ErrUnavailable: backing service temporarily unreachable
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrAlreadyUsed = errors.New("already used")
	ErrUnavailable = errors.New("unavailable")
)
