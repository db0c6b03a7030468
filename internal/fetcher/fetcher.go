// Package fetcher downloads registry and EPC sheets over HTTP or FTP and
// decodes CSV, XLSX, JSON and ZIP payloads into header plus rows.
package fetcher

import (
	"context"
	"io"

	"github.com/rotisserie/eris"
)

// Fetcher downloads a remote sheet.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// Table is a decoded text sheet. Rows may be shorter or longer than Header.
type Table struct {
	Header []string
	Rows   [][]string
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// ReadAll downloads url with f, reading at most maxBytes. A non-positive
// maxBytes means no limit.
func ReadAll(ctx context.Context, f Fetcher, url string, maxBytes int64) ([]byte, error) {
	body, err := f.Download(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck

	var r io.Reader = body
	if maxBytes > 0 {
		r = io.LimitReader(body, maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: read %s", url)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, eris.Errorf("fetcher: %s exceeds %d bytes", url, maxBytes)
	}
	return data, nil
}
