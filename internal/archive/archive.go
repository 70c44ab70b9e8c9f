// Package archive packs a single byte buffer into a one-entry zip archive
// and unpacks it again. Parts are shipped to the chat backends as zips so
// that a legacy uncompressed part (written before this archiving was added)
// can still be told apart from a freshly archived one by its magic bytes.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// zipMagic is the four-byte local file header signature every zip archive
// starts with (PK\x03\x04).
var zipMagic = []byte{0x50, 0x4B, 0x03, 0x04}

func init() {
	// Levels 1-9 use klauspost/compress's faster deflate implementation in
	// place of the stdlib one; level 0 is handled separately as zip.Store.
	zip.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.DefaultCompression)
	})
}

// Pack produces a single-entry zip archive named entryName containing data.
// level 0 stores data uncompressed; levels 1-9 use deflate (the exact level
// is not separately tunable through archive/zip's Deflate method, so any
// level in [1,9] uses the registered deflate writer above).
func Pack(data []byte, entryName string, level int) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	method := uint16(zip.Deflate)
	if level == 0 {
		method = zip.Store
	}

	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:   entryName,
		Method: method,
	})
	if err != nil {
		return nil, fmt.Errorf("archive: create entry %q: %w", entryName, err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("archive: write entry %q: %w", entryName, err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("archive: finalize: %w", err)
	}
	return buf.Bytes(), nil
}

// UnpackOrRaw returns the bytes of the first entry of a zip archive, or the
// input unchanged if it does not start with the zip magic. A malformed
// archive after the magic check is a hard error, not silently treated as
// raw bytes.
func UnpackOrRaw(data []byte) ([]byte, error) {
	if len(data) < 4 || !bytes.Equal(data[:4], zipMagic) {
		return data, nil
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("archive: open zip: %w", err)
	}
	if len(zr.File) == 0 {
		return nil, fmt.Errorf("archive: zip has no entries")
	}

	rc, err := zr.File[0].Open()
	if err != nil {
		return nil, fmt.Errorf("archive: open entry: %w", err)
	}
	defer rc.Close()

	out, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("archive: read entry: %w", err)
	}
	return out, nil
}
