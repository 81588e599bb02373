package core

import "errors"

// Error codes carried in error replies.
const (
	ErrCodeUnauthorized   = "unauthorized"
	ErrCodeBadRequest     = "bad_request"
	ErrCodeObjectNotFound = "object_not_found"
)

var (
	// ErrDuplicateAccount is returned when registering an existing username.
	ErrDuplicateAccount = errors.New("account already registered")
	// ErrInvalidCredential is returned for unknown username or wrong password.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrAccountAlreadyActive is returned when the account is logged in elsewhere.
	ErrAccountAlreadyActive = errors.New("account already active")
	// ErrInvalidUsername is returned when the username fails validation.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrObjectNotFound is returned when an object id is not in the scene.
	ErrObjectNotFound = errors.New("object not found")
)

