package storage

import "errors"

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when creating a record whose id already exists
	ErrDuplicate = errors.New("duplicate record")
)
