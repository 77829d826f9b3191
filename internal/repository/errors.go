package repository

import "errors"

var (
	ErrNotFound          = errors.New("entity not found")
	ErrInvalidField      = errors.New("field is not part of the offer schema")
	ErrInvalidTransition = errors.New("status transition is not allowed")
	ErrConflict          = errors.New("operation conflicts with the offer's publication state")
	ErrUpdateFailed      = errors.New("update failed")
	ErrConnectionFailed  = errors.New("database connection failed")
)
