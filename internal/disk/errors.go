package disk

import "errors"

// Error taxonomy shared by the engine and the services built on it.
// Handlers map these onto transport status codes; everything else is
// reported as an internal error.
var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("name already exists")
	ErrExpired    = errors.New("share link expired")
	ErrValidation = errors.New("invalid input")
)
