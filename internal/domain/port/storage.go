package port

import (
	"context"
	"io"
)

// ArtifactStore holds encoded GIF byte streams. Keys for superseded
// artifacts must be released with Remove to avoid unbounded growth across
// repeated generate/re-extract cycles.
type ArtifactStore interface {
	PutGIF(ctx context.Context, key string, data []byte) (url string, err error)
	FetchGIF(ctx context.Context, key string) (io.ReadCloser, int64, error)
	Remove(ctx context.Context, key string) error
}
