package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestCropToContent(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 80))
	white := color.RGBA{255, 255, 255, 255}
	black := color.RGBA{0, 0, 0, 255}
	for y := 0; y < 80; y++ {
		for x := 0; x < 100; x++ {
			img.Set(x, y, white)
		}
	}
	// content block at (10,20)-(29,39)
	for y := 20; y < 40; y++ {
		for x := 10; x < 30; x++ {
			img.Set(x, y, black)
		}
	}

	cropped, err := CropToContent(encodePNG(t, img))
	require.NoError(t, err)

	decoded, _, err := image.Decode(bytes.NewReader(cropped))
	require.NoError(t, err)
	assert.Equal(t, 20, decoded.Bounds().Dx())
	assert.Equal(t, 20, decoded.Bounds().Dy())

	r, g, b, _ := decoded.At(0, 0).RGBA()
	assert.Zero(t, r)
	assert.Zero(t, g)
	assert.Zero(t, b)
}

func TestCropToContentAllWhite(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 40, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.RGBA{255, 255, 255, 255})
		}
	}
	data := encodePNG(t, img)

	cropped, err := CropToContent(data)
	require.NoError(t, err)
	assert.Equal(t, data, cropped)
}

func TestCropToContentSinglePixel(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			img.Set(x, y, color.RGBA{255, 255, 255, 255})
		}
	}
	img.Set(5, 5, color.RGBA{200, 10, 10, 255})

	cropped, err := CropToContent(encodePNG(t, img))
	require.NoError(t, err)

	decoded, _, err := image.Decode(bytes.NewReader(cropped))
	require.NoError(t, err)
	assert.Equal(t, 1, decoded.Bounds().Dx())
	assert.Equal(t, 1, decoded.Bounds().Dy())
}

func TestCropToContentBadData(t *testing.T) {
	_, err := CropToContent([]byte("not a png"))
	assert.Error(t, err)
}
