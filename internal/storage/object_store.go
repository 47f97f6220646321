package storage

import (
	"context"
	"errors"
	"io"
)

var ErrObjectNotFound = errors.New("object not found")

type Object struct {
	Name string
	Size int64
}

type ObjectIterator func(yield func(obj Object, err error) bool)

// ObjectStore is scoped to a single bucket. Keys are slash separated.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, data io.Reader) error

	GetObject(ctx context.Context, key string) ([]byte, error)

	ListObjects(ctx context.Context, prefix string) ([]Object, error)

	// DeleteObjects removes every object whose key starts with prefix.
	DeleteObjects(ctx context.Context, prefix string) error
}
