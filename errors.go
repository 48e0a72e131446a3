package pdq

import "errors"

var (
	// Construction errors.
	ErrNilConfig     = errors.New("pdq: nil configuration")
	ErrInvalidConfig = errors.New("pdq: invalid configuration")

	// Subscription errors.
	ErrNilHandler  = errors.New("pdq: nil handler")
	ErrQueueClosed = errors.New("pdq: queue closed")

	// Unknown-id conditions. Never surfaced by the façade — operations
	// on unknown IDs are logged no-ops — these name the cause on those
	// warning paths.
	ErrSubscriberNotFound = errors.New("pdq: subscriber not found")
	ErrMessageNotFound    = errors.New("pdq: message not found")
)
