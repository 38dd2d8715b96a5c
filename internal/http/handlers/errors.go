package handlers

// Error codes carried in ErrorResponse.Code. Clients branch on these, never
// on Message.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInternal         = "internal_error"

	// ErrCodeInvalidPattern means the pattern or flags do not compile.
	ErrCodeInvalidPattern = "invalid_pattern"
	// ErrCodeValidation means a required field is missing or out of range.
	ErrCodeValidation = "validation_failed"
	// ErrCodeStorage means the rule store failed; the request may be retried.
	ErrCodeStorage = "storage_error"
	// ErrCodeBadSignature rejects Slack requests whose signature or timestamp
	// does not verify.
	ErrCodeBadSignature = "bad_signature"
)
