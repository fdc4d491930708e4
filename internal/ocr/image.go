package ocr

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"

	// Decoders for the formats browsers commonly hand over as image/*.
	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrEmptyImage is returned when there are no bytes to decode.
var ErrEmptyImage = errors.New("empty image")

// Normalize decodes an uploaded image into a pixel buffer and re-encodes it
// as PNG, so every engine sees a single lossless format regardless of what
// the user uploaded. The decoded format name is returned alongside.
func Normalize(data []byte) ([]byte, string, error) {
	if len(data) == 0 {
		return nil, "", ErrEmptyImage
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, format, fmt.Errorf("decode image: %w", ErrEmptyImage)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, format, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), format, nil
}
