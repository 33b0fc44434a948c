package domain

import "errors"

// Sentinel errors, grouped by how the HTTP layer reports them. Every
// rejected unit of work rolls back; none of these leave partial state.
var (
	// Validation: malformed or missing input, never committed.
	ErrInvalidType    = errors.New("unrecognized transaction type")
	ErrInvalidAmount  = errors.New("amount must be greater than zero")
	ErrInvalidStatus  = errors.New("unrecognized transaction status")
	ErrInvalidDetails = errors.New("invalid transaction details")

	// Conflict: the write collided with existing state.
	ErrDuplicateReference = errors.New("reference id already exists")
	ErrTransactionFinal   = errors.New("transaction is no longer pending")
	ErrTokenReused        = errors.New("token already has a session")

	// Not found.
	ErrUserNotFound        = errors.New("user not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrSessionNotFound     = errors.New("session not found")

	// Business rule.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// Auth.
	ErrInvalidToken    = errors.New("invalid or expired token")
	ErrInvalidPin      = errors.New("transaction pin is incorrect")
	ErrTokenMismatch   = errors.New("token does not belong to this user")
	ErrSessionExpired  = errors.New("session has expired")
	ErrSessionInactive = errors.New("session is inactive")
	ErrUserInactive    = errors.New("user account is deactivated")
	ErrForbidden       = errors.New("role not permitted for this route")
)
