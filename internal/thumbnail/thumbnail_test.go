package thumbnail

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/require"
)

func sourceJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestGenerateSquareImageProducesFullSize(t *testing.T) {
	src := sourceJPEG(t, 512, 512)
	out, err := Generate(bytes.NewReader(src))
	require.NoError(t, err)

	decoded, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	require.Equal(t, 256, decoded.Bounds().Dx())
	require.Equal(t, 256, decoded.Bounds().Dy())
}

func TestGeneratePreservesAspectRatio(t *testing.T) {
	src := sourceJPEG(t, 1000, 500)
	out, err := Generate(bytes.NewReader(src))
	require.NoError(t, err)

	decoded, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	require.Equal(t, 256, decoded.Bounds().Dx())
	require.Equal(t, 128, decoded.Bounds().Dy())
}

func TestGenerateRejectsUndecodableInput(t *testing.T) {
	_, err := Generate(bytes.NewReader([]byte("not an image")))
	require.Error(t, err)
}

func TestStoreAndLoadCached(t *testing.T) {
	dir := t.TempDir()
	data := []byte("fake jpeg bytes")
	require.NoError(t, Store(dir, 7, data))

	loaded, ok := LoadCached(dir, 7)
	require.True(t, ok)
	require.Equal(t, data, loaded)

	_, ok = LoadCached(dir, 999)
	require.False(t, ok)
}
