package handlers

// Stable machine-readable error codes carried in ErrorResponse.Code. Clients
// branch on these rather than on message text, so renaming one is a breaking
// API change.
const (
	// Mirrors of HTTP status semantics.
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInternal         = "internal_error"

	// Domain outcomes the status alone cannot express.
	ErrCodeAnswerFailed   = "answer_failed"
	ErrCodeCreateFailed   = "create_failed"
	ErrCodeListFailed     = "list_failed"
	ErrCodeAccountPending = "account_pending"
	ErrCodeAccountBlocked = "account_blocked"
)
