package services

import "errors"

// Errors a store reports for constraint outcomes the services translate.
var (
	// ErrDuplicate means a uniqueness constraint rejected the write.
	ErrDuplicate = errors.New("duplicate key")
	// ErrSealed means the submission was already completed.
	ErrSealed = errors.New("submission already sealed")
	// ErrInUse means the row is still referenced and cannot be deleted.
	ErrInUse = errors.New("row still referenced")
)
