package media

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
)

// CropRect is a crop selection in percent of the image dimensions.
type CropRect struct {
	X     float64 `json:"x" validate:"gte=0,lte=100"`
	Y     float64 `json:"y" validate:"gte=0,lte=100"`
	Width float64 `json:"width" validate:"gt=0,lte=100"`
}

// DefaultCrop is the centered square covering 80% of the image.
var DefaultCrop = CropRect{X: 10, Y: 10, Width: 80}

const croppedQuality = 85

// CropSquare cuts a square out of data and re-encodes it as JPEG. The side is
// rect.Width percent of the shorter image dimension; X and Y are percentages of the
// width and height. The square is clamped to the image bounds.
func CropSquare(data []byte, rect CropRect) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	b := src.Bounds()
	short := min(b.Dx(), b.Dy())
	side := int(float64(short) * rect.Width / 100)
	if side <= 0 {
		return nil, fmt.Errorf("media: crop width %.1f%% is empty", rect.Width)
	}
	x := b.Min.X + int(float64(b.Dx())*rect.X/100)
	y := b.Min.Y + int(float64(b.Dy())*rect.Y/100)
	x = min(max(x, b.Min.X), b.Max.X-side)
	y = min(max(y, b.Min.Y), b.Max.Y-side)
	area := image.Rect(x, y, x+side, y+side)

	dst := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(dst, dst.Bounds(), src, area.Min, draw.Src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: croppedQuality}); err != nil {
		return nil, fmt.Errorf("media: failed to encode cropped image: %w", err)
	}
	return buf.Bytes(), nil
}
