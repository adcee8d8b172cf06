package render

import (
	"bytes"
	"image"
	"image/png"

	"github.com/pkg/errors"
)

// CropToContent trims the uniform white margin around the rendered
// document. The bounding box is found by inverting the image and taking
// the smallest rectangle containing every non-zero pixel. An all-white
// image is returned unchanged.
func CropToContent(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "decode screenshot")
	}

	bbox, ok := contentBounds(img)
	if !ok {
		return data, nil
	}

	cropped := image.NewRGBA(image.Rect(0, 0, bbox.Dx(), bbox.Dy()))
	for y := bbox.Min.Y; y < bbox.Max.Y; y++ {
		for x := bbox.Min.X; x < bbox.Max.X; x++ {
			cropped.Set(x-bbox.Min.X, y-bbox.Min.Y, img.At(x, y))
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, cropped); err != nil {
		return nil, errors.Wrap(err, "encode cropped image")
	}
	return buf.Bytes(), nil
}

func contentBounds(img image.Image) (image.Rectangle, bool) {
	bounds := img.Bounds()
	minX, minY := bounds.Max.X, bounds.Max.Y
	maxX, maxY := bounds.Min.X, bounds.Min.Y
	found := false

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			if r != 0xffff || g != 0xffff || b != 0xffff {
				found = true
				if x < minX {
					minX = x
				}
				if x > maxX {
					maxX = x
				}
				if y < minY {
					minY = y
				}
				if y > maxY {
					maxY = y
				}
			}
		}
	}
	if !found {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), true
}
