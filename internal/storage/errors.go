package storage

import "errors"

// Common storage errors
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("attempt already exists")
	ErrInvalidStatus = errors.New("invalid attempt status")
)
