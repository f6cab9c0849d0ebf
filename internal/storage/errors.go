package storage

import (
	"errors"
	"fmt"
)

// Audit store errors. Stores are append-only: a request, mint or event is recorded once.
var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicateKey = errors.New("record already exists")
	ErrInvalidInput = errors.New("invalid record")
)

// DuplicateKey reports which unique field rejected an insert. It matches ErrDuplicateKey.
func DuplicateKey(field, value string) error {
	return fmt.Errorf("%w: %s %s", ErrDuplicateKey, field, value)
}
