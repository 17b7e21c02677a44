// Package encode turns captured canvases into PNG data URLs.
package encode

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
)

// Prefix is the exact head of every data URL delivered to a host.
const Prefix = "data:image/png;base64,"

var errEmptyImage = errors.New("image has no pixels")

// PNG encodes img as PNG bytes.
func PNG(img image.Image) ([]byte, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, errEmptyImage
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// DataURL encodes img as a base64 PNG data URL. Identical pixels always
// produce an identical string.
func DataURL(img image.Image) (string, error) {
	b, err := PNG(img)
	if err != nil {
		return "", err
	}
	return FromPNG(b), nil
}

// FromPNG wraps already encoded PNG bytes in a data URL.
func FromPNG(b []byte) string {
	return Prefix + base64.StdEncoding.EncodeToString(b)
}
