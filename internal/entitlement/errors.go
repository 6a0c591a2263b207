package entitlement

import "errors"

// Expected, caller-facing outcomes. These are returned as values and matched
// with errors.Is; anything else coming out of the service is a storage fault.
var (
	ErrNotRegistered       = errors.New("account not registered")
	ErrDisabled            = errors.New("account disabled")
	ErrExpired             = errors.New("account access expired")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrInvalidPrice        = errors.New("price must be a positive number of credits")
	ErrSearchFailed        = errors.New("search failed")
)
