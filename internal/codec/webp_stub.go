//go:build !govips || !cgo

package codec

import (
	"fmt"
	"image"
)

const webpEncoder = false

func encodeWebP(image.Image, int) ([]byte, error) {
	return nil, fmt.Errorf("%w: webp export requires govips build tag", ErrUnsupportedFormat)
}
