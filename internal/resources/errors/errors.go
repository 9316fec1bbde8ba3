package errors

import "errors"

var (
	ErrNotFound    = errors.New("resource not found")
	ErrDuplicateID = errors.New("resource id already exists")
)
