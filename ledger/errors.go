package ledger

import "errors"

// Every operation fails atomically: a returned error means no ledger state
// changed and no event was emitted.
var (
	// Authorization failures.
	ErrNotOwner    = errors.New("caller is not the owner")
	ErrNotProvider = errors.New("caller is not an authorized provider")

	// Availability failures.
	ErrPaused = errors.New("ledger is paused")

	// Rate limit failures.
	ErrCooldownActive = errors.New("cooldown active")

	// Lifecycle failures.
	ErrBatchAlreadyActive = errors.New("batch already active")
	ErrBatchNotActive     = errors.New("batch not active")
	ErrBatchStillActive   = errors.New("batch still active")
	ErrInvalidBatchID     = errors.New("invalid batch id")
	ErrNothingToDecrypt   = errors.New("batch has no submissions to decrypt")

	// Integrity failures.
	ErrCiphertextNotInitialized = errors.New("ciphertext not initialized")
	ErrUnknownRequest           = errors.New("unknown decryption request")
	ErrReplayAttempt            = errors.New("decryption request already processed")
	ErrStateMismatch            = errors.New("ledger state changed since decryption was requested")
	ErrInvalidProof             = errors.New("invalid decryption proof")
	ErrMalformedCleartexts      = errors.New("malformed cleartext payload")
)

// Category groups ledger errors for callers that map failures onto transport
// status codes or metrics labels.
type Category string

const (
	CategoryAuthorization Category = "authorization"
	CategoryAvailability  Category = "availability"
	CategoryRateLimit     Category = "rate_limit"
	CategoryLifecycle     Category = "lifecycle"
	CategoryIntegrity     Category = "integrity"
	CategoryUnknown       Category = "unknown"
)

// Categorize returns the failure category for a ledger error.
func Categorize(err error) Category {
	switch {
	case errors.Is(err, ErrNotOwner), errors.Is(err, ErrNotProvider):
		return CategoryAuthorization
	case errors.Is(err, ErrPaused):
		return CategoryAvailability
	case errors.Is(err, ErrCooldownActive):
		return CategoryRateLimit
	case errors.Is(err, ErrBatchAlreadyActive), errors.Is(err, ErrBatchNotActive),
		errors.Is(err, ErrBatchStillActive), errors.Is(err, ErrInvalidBatchID),
		errors.Is(err, ErrNothingToDecrypt):
		return CategoryLifecycle
	case errors.Is(err, ErrCiphertextNotInitialized), errors.Is(err, ErrUnknownRequest),
		errors.Is(err, ErrReplayAttempt), errors.Is(err, ErrStateMismatch),
		errors.Is(err, ErrInvalidProof), errors.Is(err, ErrMalformedCleartexts):
		return CategoryIntegrity
	default:
		return CategoryUnknown
	}
}
