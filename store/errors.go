package store

import "errors"

// Store-level errors, per section 4.B's "fails with StoreError on I/O".
// These are distinct from the omemoerr taxonomy: omemoerr classifies
// failures from the caller's point of view (NotInitialized, NoBundle,
// ...), while these classify the backing store's own failure modes.
// Higher-level packages translate a not-found here into the appropriate
// omemoerr sentinel for their operation.
var (
	ErrNotInitialized = errors.New("store: identity not provisioned")
	ErrNotFound       = errors.New("store: no such record")
)
