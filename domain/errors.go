package domain

import "github.com/pkg/errors"

// Error taxonomy shared by the store, the federation core and the web layer.
// Callers compare with errors.Is after unwrapping via pkg/errors.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("already exists")
	ErrForbidden   = errors.New("forbidden")
	ErrUnsupported = errors.New("unsupported type")
	ErrMalformed   = errors.New("malformed payload")
)
