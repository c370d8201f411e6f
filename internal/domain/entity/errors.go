package entity

import "errors"

// Standard domain errors
var (
	ErrRateLimitExceeded = errors.New("rate limit exceeded: too many requests")
	ErrInvalidRequest    = errors.New("invalid request parameters")
	ErrEmptyCollection   = errors.New("record collection is empty")
	ErrModelUnavailable  = errors.New("generation model unavailable")
	ErrUnknownKind       = errors.New("unknown record kind")
)
