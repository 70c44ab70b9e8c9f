// Package thumbnail renders a cached 256x256 preview for an image file by
// decoding only the first slice of its reassembled byte stream. Ported
// from original_source/api.rs::generate_thumbnail (which used the `image`
// crate); here golang.org/x/image/draw provides the resize.
package thumbnail

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"

	"github.com/ThanhGoodBoy/splitvault/internal/apierr"
)

// maxDecodeBytes caps how much of the source stream is read before giving
// up on decoding a thumbnail (original_source/api.rs: 10MiB).
const maxDecodeBytes = 10 * 1024 * 1024

// size is the fixed output dimension; the longer edge is scaled to this
// and the shorter edge keeps the source aspect ratio.
const size = 256

// Generate decodes up to maxDecodeBytes of r, resizes it to fit within a
// size x size box preserving aspect ratio, and returns JPEG-encoded bytes.
func Generate(r io.Reader) ([]byte, error) {
	limited := io.LimitReader(r, maxDecodeBytes)
	src, _, err := image.Decode(limited)
	if err != nil {
		return nil, apierr.UnsupportedMedia("thumbnail: unsupported or undecodable image: %v", err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil, apierr.UnsupportedMedia("thumbnail: zero-sized image")
	}

	dstW, dstH := size, size
	if w > h {
		dstH = size * h / w
	} else if h > w {
		dstW = size * w / h
	}
	if dstW < 1 {
		dstW = 1
	}
	if dstH < 1 {
		dstH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 85}); err != nil {
		return nil, apierr.Internal(err, "thumbnail: encode jpeg")
	}
	return buf.Bytes(), nil
}

// CachePath returns the on-disk path a thumbnail for fileID is stored at
// under dir.
func CachePath(dir string, fileID int64) string {
	return filepath.Join(dir, fmt.Sprintf("%d.jpg", fileID))
}

// LoadCached returns the cached thumbnail bytes for fileID, or
// (nil, false) if none exists yet.
func LoadCached(dir string, fileID int64) ([]byte, bool) {
	data, err := os.ReadFile(CachePath(dir, fileID))
	if err != nil {
		return nil, false
	}
	return data, true
}

// Store writes data to the on-disk cache for fileID, creating dir if
// necessary.
func Store(dir string, fileID int64, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apierr.Internal(err, "thumbnail: create cache dir")
	}
	if err := os.WriteFile(CachePath(dir, fileID), data, 0o644); err != nil {
		return apierr.Internal(err, "thumbnail: write cache file")
	}
	return nil
}
