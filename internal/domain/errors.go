package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrBatchFatal      = errors.New("batch fatal")
	ErrBatchCancelled  = errors.New("batch cancelled")
	ErrProviderFailure = errors.New("provider failure")
	ErrMalformedItem   = errors.New("malformed item")
	ErrTransient       = errors.New("transient failure")
)
