package storage

import "errors"

var (
	// ErrNotFound indicates the requested document doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrClosed indicates an operation on a closed backend.
	ErrClosed = errors.New("storage backend is closed")

	// ErrLexicalUnsupported indicates the backend cannot perform
	// text-only search.
	ErrLexicalUnsupported = errors.New("backend does not support lexical search")
)
