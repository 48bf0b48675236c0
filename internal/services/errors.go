// Package services defines the business logic for authentication, AI
// conversations, and support threads. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes is performed at the
// handler layer.
package services

import "errors"

// Authentication errors.
var (
	// ErrInvalidCredentials is returned when the email/password pair does
	// not match a known account.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrEmailTaken is returned when registering with an email that already
	// has an account.
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidRole is returned when a requested role is not one of the
	// portal roles.
	ErrInvalidRole = errors.New("invalid role")

	// ErrAccountPending is returned at login while a staff account awaits
	// approval.
	ErrAccountPending = errors.New("account pending approval")

	// ErrAccountBlocked is returned when the account has been blocked.
	ErrAccountBlocked = errors.New("account blocked")

	// ErrUserNotFound indicates the referenced user no longer exists.
	ErrUserNotFound = errors.New("user not found")

	// ErrNotAllowed is returned when the caller's role may not manage the
	// targeted account.
	ErrNotAllowed = errors.New("not allowed to manage this account")
)

// AI conversation errors.
var (
	// ErrEmptyPrompt is returned when a send contains an empty or
	// whitespace-only prompt.
	ErrEmptyPrompt = errors.New("prompt is empty")

	// ErrTooLong is returned when a prompt exceeds the configured limit.
	ErrTooLong = errors.New("prompt too long")

	// ErrConversationNotFound indicates the conversation does not exist or
	// belongs to another user.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrPairNotFound indicates the prompt/reply pair does not exist or is
	// not accessible to the current user.
	ErrPairNotFound = errors.New("pair not found")

	// ErrNotAPrompt is returned when a pair delete targets an assistant
	// message instead of a user prompt.
	ErrNotAPrompt = errors.New("only user prompts address a pair")

	// ErrInvalidDate is returned when a history date is not YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date, use YYYY-MM-DD")
)

// Support thread errors.
var (
	// ErrThreadNotFound indicates the support thread does not exist.
	ErrThreadNotFound = errors.New("thread not found")

	// ErrNotThreadMember is returned when a user who is neither the student
	// nor the consultant of a thread touches it.
	ErrNotThreadMember = errors.New("not a member of this thread")

	// ErrNoConsultant is returned when no approved, unblocked consultant is
	// available to anchor a student thread.
	ErrNoConsultant = errors.New("no consultant available")

	// ErrConsultantThread is returned when a consultant calls the
	// student-side ensure-thread operation.
	ErrConsultantThread = errors.New("consultants access threads from their panel")

	// ErrNotConsultant is returned when a non-consultant lists threads.
	ErrNotConsultant = errors.New("consultant role required")

	// ErrEmptyMessage is returned when a support message has no text.
	ErrEmptyMessage = errors.New("message is empty")
)
