package adapter

import (
	"context"
	"io"
)

// MediaFile is one uploaded part waiting to be stored.
type MediaFile struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// MediaStore is an opaque object store addressed by public URL.
type MediaStore interface {
	Upload(ctx context.Context, f MediaFile) (url string, err error)
	Delete(ctx context.Context, url string) error
}
