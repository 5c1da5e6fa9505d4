package model

import "errors"

var (
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrAccessDenied           = errors.New("access denied")
	ErrInvalidTerms           = errors.New("invalid contract terms")
)
