package portal

import "errors"

// Sentinel errors returned by the SDK. Callers branch with errors.Is.
var (
	// ErrUnauthenticated means no credential is present or the backend
	// rejected it; the session has been invalidated and the caller should
	// prompt for login rather than retry.
	ErrUnauthenticated = errors.New("portal: unauthenticated")

	// ErrNotConnected means the push channel is down. The operation was not
	// attempted; caller state (typed text) is untouched and safe to retry.
	ErrNotConnected = errors.New("portal: push channel not connected")

	// ErrNoThread means no support thread is selected.
	ErrNoThread = errors.New("portal: no active support thread")

	// ErrSendInFlight means an assistant send is already outstanding;
	// callers should disable the send control until the first one resolves.
	ErrSendInFlight = errors.New("portal: send already in flight")

	// ErrEmptyMessage means the text was empty or whitespace-only.
	ErrEmptyMessage = errors.New("portal: empty message")
)
