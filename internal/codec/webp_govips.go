//go:build govips && cgo

package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/davidbyttow/govips/v2/vips"
)

const webpEncoder = true

// encodeWebP stages img as png and lets libvips export it. libvips must
// already be started, which render.New does when hardware is preferred.
func encodeWebP(img image.Image, quality int) ([]byte, error) {
	var staged bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.NoCompression}
	if err := enc.Encode(&staged, img); err != nil {
		return nil, fmt.Errorf("stage webp export: %w", err)
	}

	ref, err := vips.NewImageFromBuffer(staged.Bytes())
	if err != nil {
		return nil, fmt.Errorf("load webp export: %w", err)
	}
	defer ref.Close()

	params := vips.NewWebpExportParams()
	if quality > 0 && quality <= 100 {
		params.Quality = quality
	}
	data, _, err := ref.ExportWebp(params)
	if err != nil {
		return nil, fmt.Errorf("encode webp: %w", err)
	}
	return data, nil
}
