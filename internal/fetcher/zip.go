package fetcher

import (
	"archive/zip"
	"bytes"
	"io"
	"path"
	"strings"

	"github.com/rotisserie/eris"
)

// ZIPMember is one file pulled out of an archive.
type ZIPMember struct {
	Name string
	Data []byte
}

// ExtractZIPSheet returns the single sheet (.csv, .xlsx or .json) inside an
// in-memory archive. Directories and macOS resource forks are ignored.
// maxBytes bounds the uncompressed size; non-positive means no limit.
func ExtractZIPSheet(data []byte, maxBytes int64) (*ZIPMember, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, eris.Wrap(err, "zip: open archive")
	}

	var sheets []*zip.File
	for _, f := range r.File {
		if f.FileInfo().IsDir() || strings.HasPrefix(f.Name, "__MACOSX/") {
			continue
		}
		switch strings.ToLower(path.Ext(f.Name)) {
		case ".csv", ".xlsx", ".json":
			sheets = append(sheets, f)
		}
	}

	if len(sheets) != 1 {
		return nil, eris.Errorf("zip: expected exactly 1 sheet, got %d", len(sheets))
	}
	return readZIPEntry(sheets[0], maxBytes)
}

func readZIPEntry(f *zip.File, maxBytes int64) (*ZIPMember, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, eris.Wrap(err, "zip: open entry")
	}
	defer rc.Close() //nolint:errcheck

	var r io.Reader = rc
	if maxBytes > 0 {
		r = io.LimitReader(rc, maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "zip: read entry")
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, eris.Errorf("zip: entry %q exceeds %d bytes", f.Name, maxBytes)
	}
	return &ZIPMember{Name: path.Base(f.Name), Data: data}, nil
}
