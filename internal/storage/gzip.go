// Package storage holds the archive and sink backends the crawler writes to.
// Archive backends gzip every object they store.
package storage

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
)

// Gzip compresses everything read from r.
func Gzip(r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := io.Copy(zw, r); err != nil {
		_ = zw.Close()
		return nil, fmt.Errorf("gzip copy: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

// Gunzip decompresses a gzip payload.
func Gunzip(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip reader: %w", err)
	}
	defer zr.Close() //nolint:errcheck // reader close only releases state
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("gunzip: %w", err)
	}
	return out, nil
}
