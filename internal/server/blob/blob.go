// Package blob stores object content. Keys are generated by the store and
// never reused; metadata about what a key holds lives in Postgres.
package blob

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// Store is the blob capability behind StoredObjects.
type Store interface {
	// Put writes r under a fresh key and returns the key and the number of
	// bytes stored. On error nothing is left behind.
	Put(ctx context.Context, r io.Reader) (key string, size int64, err error)
	// Open streams the content for key; a missing key yields common.ErrorNotFound.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// newStorageKey is a seam for tests.
var newStorageKey = func() string {
	d := time.Now().UTC()
	return fmt.Sprintf("objects/%d/%02d/%02d/%v", d.Year(), d.Month(), d.Day(), uuid.New())
}

// ctxReader stops a copy as soon as ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
