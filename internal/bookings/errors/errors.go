package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrResourceNotFound = errors.New("resource not found")

	ErrAlreadyCancelled = errors.New("booking is already cancelled")
)
