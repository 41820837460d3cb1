package handlers

// Stable, machine-readable error codes. Clients branch on these, not on the
// message text.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeNotOnboarded    = "not_onboarded"
	ErrCodeBusy            = "busy"
	ErrCodeTooLong         = "prompt_too_long"
	ErrCodeQuizUnavailable = "quiz_unavailable"
	ErrCodeQuizState       = "quiz_state"
	ErrCodeStreamFailed    = "stream_failed"
)
