package vectorstore

import "errors"

// ErrRebuildInconsistent means a surviving chunk's vector could not be obtained
// during a delete rebuild. The store is left in its pre-delete state.
var ErrRebuildInconsistent = errors.New("index rebuild inconsistent: surviving vector unavailable")

// ValidationError reports a malformed embedding or query. It is surfaced to the
// caller and never retried internally.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}
