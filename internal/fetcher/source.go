package fetcher

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// maxWorkbookBytes caps remote downloads.
const maxWorkbookBytes = 64 << 20

// Loader opens workbooks from a local path, an s3:// URI or an http(s) URL.
type Loader struct {
	s3   Fetcher
	http Fetcher
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithS3 enables s3:// sources.
func WithS3(f Fetcher) LoaderOption {
	return func(l *Loader) { l.s3 = f }
}

// WithHTTP enables http:// and https:// sources.
func WithHTTP(f Fetcher) LoaderOption {
	return func(l *Loader) { l.http = f }
}

// NewLoader creates a Loader. Without options only local paths work.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Open loads the workbook at source.
func (l *Loader) Open(ctx context.Context, source string) (*Workbook, error) {
	var remote Fetcher
	switch {
	case strings.HasPrefix(source, "s3://"):
		remote = l.s3
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		remote = l.http
	default:
		return OpenWorkbook(source)
	}
	if remote == nil {
		return nil, eris.Errorf("fetcher: no fetcher configured for %s", source)
	}

	body, err := remote.Download(ctx, source)
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(body, maxWorkbookBytes+1))
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: read %s", source)
	}
	if len(data) > maxWorkbookBytes {
		return nil, eris.Errorf("fetcher: %s exceeds %d bytes", source, maxWorkbookBytes)
	}

	zap.L().Debug("workbook downloaded", zap.String("source", source), zap.Int("bytes", len(data)))
	return OpenWorkbookBytes(source, data)
}

// IsWorkbook reports whether name looks like an .xlsx file. Lock files left
// by spreadsheet editors are skipped.
func IsWorkbook(name string) bool {
	base := path.Base(name)
	return strings.EqualFold(path.Ext(base), ".xlsx") && !strings.HasPrefix(base, "~$")
}
