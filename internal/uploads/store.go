// Package uploads persists the files posted to the board under a fixed
// upload root. The board itself only keeps the stored name.
package uploads

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrNotFound is returned by Open when no file is stored under a name.
	ErrNotFound = errors.New("upload not found")

	// ErrInvalidName is returned when a name is not in sanitized form.
	ErrInvalidName = errors.New("invalid upload name")
)

// Stored describes a completed write.
type Stored struct {
	Name string
	Size int64
}

// Object is an open stored file. Callers must close Body.
type Object struct {
	Body    io.ReadCloser
	Size    int64
	ModTime time.Time
}

// Store is implemented by every upload backend.
//
// Put must only return a nil error once the full content is durable under
// name; a previous file with the same name is replaced.
type Store interface {
	Put(ctx context.Context, name string, r io.Reader) (Stored, error)
	Open(ctx context.Context, name string) (*Object, error)
	Ping(ctx context.Context) error
}
