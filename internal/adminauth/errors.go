package adminauth

import "errors"

var (
	// ErrInvalidCredentials covers unknown handles and wrong passwords alike;
	// callers must not be able to tell the two apart.
	ErrInvalidCredentials = errors.New("adminauth: invalid credentials")

	// ErrAccountLocked is returned while the lockout window is in effect.
	ErrAccountLocked = errors.New("adminauth: account locked")

	// ErrAccountDisabled is returned for administratively deactivated operators.
	ErrAccountDisabled = errors.New("adminauth: account disabled")

	// ErrInvalidToken collapses every token failure (missing, malformed,
	// expired, wrong kind, bad signature, revoked) into one outcome.
	ErrInvalidToken = errors.New("adminauth: invalid token")

	// ErrForbidden means authenticated but lacking the required permission.
	ErrForbidden = errors.New("adminauth: forbidden")

	// ErrValidation marks malformed request input.
	ErrValidation = errors.New("adminauth: validation failed")

	ErrNotFound = errors.New("adminauth: not found")
	ErrConflict = errors.New("adminauth: already exists")
)
