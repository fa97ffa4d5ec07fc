package storage

import (
	"context"
	"io"
)

// BlobStore holds job documents: the uploaded source and one translated
// output per target language.
type BlobStore interface {
	Save(ctx context.Context, key string, r io.Reader, size int64) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}
