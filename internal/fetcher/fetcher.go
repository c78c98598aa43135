// Package fetcher loads survey workbooks from local paths, S3 objects and
// HTTP(S) URLs and converts their sheets into survey grids.
package fetcher

import (
	"context"
	"io"
)

// Fetcher downloads a remote object.
type Fetcher interface {
	// Download fetches the source and returns its body. Callers close it.
	Download(ctx context.Context, source string) (io.ReadCloser, error)
}
