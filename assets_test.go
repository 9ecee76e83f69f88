package astral

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func testPattern(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 50), G: uint8(y * 50), B: 128, A: 255})
		}
	}
	return img
}

func TestDecodeImageRGBA_PNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testPattern(4, 3)))

	width, height, texels, err := decodeImageRGBA(&buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), width)
	assert.Equal(t, uint32(3), height)
	require.Len(t, texels, 4*3*4)

	// Texel (1, 2): R=50, G=100, B=128, A=255, tightly packed RGBA8.
	base := (2*4 + 1) * 4
	assert.Equal(t, []byte{50, 100, 128, 255}, texels[base:base+4])
}

func TestDecodeImageRGBA_BMP(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, testPattern(2, 2)))

	width, height, texels, err := decodeImageRGBA(&buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), width)
	assert.Equal(t, uint32(2), height)
	assert.Len(t, texels, 2*2*4)
}

func TestDecodeImageRGBA_Garbage(t *testing.T) {
	_, _, _, err := decodeImageRGBA(bytes.NewReader([]byte("not an image")))
	require.Error(t, err)
}
