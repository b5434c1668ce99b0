package store

import "errors"

var (
	ErrNotFound          = errors.New("record not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrConflict          = errors.New("record changed concurrently")
	ErrDuplicate         = errors.New("record already exists")
)
