package auth

import "errors"

var (
	// ErrInvalidCredentials covers both unknown usernames and password
	// mismatches so callers cannot enumerate accounts.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	ErrDuplicateUsername     = errors.New("auth: username already exists")
	ErrDuplicateOrganization = errors.New("auth: organization already exists")
	ErrOrganizationNotFound  = errors.New("auth: organization not found")
	ErrIdentityNotFound      = errors.New("auth: identity not found")

	ErrTokenInvalid = errors.New("auth: invalid token")
	ErrTokenExpired = errors.New("auth: token expired")

	ErrInsufficientRole         = errors.New("auth: insufficient role")
	ErrOrganizationAccessDenied = errors.New("auth: organization access denied")

	ErrInvalidInput = errors.New("auth: invalid input")
)
