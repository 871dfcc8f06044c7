package service

import "errors"

// Sentinel errors for business rule violations. Handlers map these to HTTP
// status codes; everything else is treated as an internal error.
var (
	ErrNotFound         = errors.New("resource not found")
	ErrPermissionDenied = errors.New("permission denied")

	// Disclosure gate
	ErrDealNotPublished        = errors.New("deal is not published")
	ErrInsufficientAccessLevel = errors.New("insufficient access level")
	ErrNdaRequired             = errors.New("active NDA acceptance required")

	// Access escalation workflow
	ErrInvalidEscalation = errors.New("requested level must be strictly above the current level")
	ErrDuplicatePending  = errors.New("a pending request for this level already exists")
	ErrAlreadyDecided    = errors.New("request has already been decided")

	// NDA extension tokens
	ErrTokenInvalid     = errors.New("extension token is invalid")
	ErrTokenAlreadyUsed = errors.New("extension token has already been used")
	ErrTokenExpired     = errors.New("extension token has expired")

	// Deal workflow
	ErrInvalidPhaseTransition = errors.New("invalid phase transition")
	ErrConcurrentModification = errors.New("resource was modified concurrently")
)
