package services

import "errors"

// Sentinel errors returned by the service layer. Handlers map these to
// HTTP statuses; anything else is treated as a storage failure.
var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("access denied")
	ErrSelfShare = errors.New("cannot share with yourself")
)
