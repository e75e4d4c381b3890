package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestTransformFillCropsToExactGeometry(t *testing.T) {
	src := testImage(t, 800, 400)

	result, err := Transform(bytes.NewReader(src), FitFill, 300, 200)
	require.NoError(t, err)

	assert.Equal(t, 300, result.Width)
	assert.Equal(t, 200, result.Height)

	decoded, format, err := image.Decode(bytes.NewReader(result.Data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 300, decoded.Bounds().Dx())
	assert.Equal(t, 200, decoded.Bounds().Dy())
}

func TestTransformWithinPreservesAspect(t *testing.T) {
	src := testImage(t, 4000, 1000)

	result, err := Transform(bytes.NewReader(src), FitWithin, 1920, 1080)
	require.NoError(t, err)

	// 4:1 aspect ratio, constrained by width.
	assert.Equal(t, 1920, result.Width)
	assert.Equal(t, 480, result.Height)
}

func TestTransformWithinLeavesSmallImages(t *testing.T) {
	src := testImage(t, 640, 480)

	result, err := Transform(bytes.NewReader(src), FitWithin, 1920, 1080)
	require.NoError(t, err)

	assert.Equal(t, 640, result.Width)
	assert.Equal(t, 480, result.Height)
}

func TestTransformAcceptsJPEGInput(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 600, 600))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))

	result, err := Transform(&buf, FitFill, 300, 200)
	require.NoError(t, err)
	assert.Equal(t, 300, result.Width)
	assert.Equal(t, 200, result.Height)
}

func TestTransformRejectsGarbage(t *testing.T) {
	_, err := Transform(strings.NewReader("not an image"), FitFill, 300, 200)
	assert.Error(t, err)
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "fill", FitFill.String())
	assert.Equal(t, "fit", FitWithin.String())
}
