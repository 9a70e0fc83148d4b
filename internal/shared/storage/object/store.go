package object

import (
	"context"
	"errors"
	"io"
)

// ErrInvalidKey is returned for keys that would escape the store namespace.
var ErrInvalidKey = errors.New("invalid storage key")

// ObjectStore defines the contract for writing and reading binary objects by key.
type ObjectStore interface {
	// Put writes r at key, replacing any existing object, and returns the bytes written.
	Put(ctx context.Context, key string, contentType string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}
