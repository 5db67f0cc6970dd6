package domain

import "errors"

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrStaleEvent       = errors.New("stale event")
	ErrSummaryNotFound  = errors.New("day summary not found")
	ErrUnknownFence     = errors.New("unknown fence")
	ErrUnknownSource    = errors.New("unknown source")
)
