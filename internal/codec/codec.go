// Package codec decodes source files into buffers and encodes rendered
// buffers. Decoded buffers are in display-pixel orientation.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"strings"

	_ "image/gif"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
	FormatWebP = "webp"

	DefaultJPEGQuality = 80
)

var ErrUnsupportedFormat = errors.New("unsupported output format")

// NormalizeFormat maps user input and decoder names onto an output format.
// Anything unknown encodes as png.
func NormalizeFormat(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpg", "jpeg":
		return FormatJPEG
	case "webp":
		return FormatWebP
	default:
		return FormatPNG
	}
}

// ParseFormat accepts only the output format names the encoder knows,
// unlike NormalizeFormat which falls back to png.
func ParseFormat(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "webp":
		return FormatWebP, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// CanEncode reports whether this build can write format. webp needs the
// govips build.
func CanEncode(format string) bool {
	f, err := ParseFormat(format)
	if err != nil {
		return false
	}
	return f != FormatWebP || webpEncoder
}

// FormatFromPath picks the output format from a file extension.
func FormatFromPath(path string) string {
	return NormalizeFormat(strings.TrimPrefix(filepath.Ext(path), "."))
}

// Extension is the file extension written for format.
func Extension(format string) string {
	switch NormalizeFormat(format) {
	case FormatJPEG:
		return ".jpg"
	case FormatWebP:
		return ".webp"
	default:
		return ".png"
	}
}

// Decode reads any registered format and reports the decoder name.
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("decode source image: %w", err)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, "", errors.New("source image has invalid dimensions")
	}
	return img, format, nil
}

func DecodeBytes(data []byte) (image.Image, string, error) {
	return Decode(bytes.NewReader(data))
}

// Encode writes img in format. quality applies to lossy formats; values
// outside 1..100 use the format default.
func Encode(w io.Writer, img image.Image, format string, quality int) error {
	switch NormalizeFormat(format) {
	case FormatJPEG:
		if quality <= 0 || quality > 100 {
			quality = DefaultJPEGQuality
		}
		if err := jpeg.Encode(w, img, &jpeg.Options{Quality: quality}); err != nil {
			return fmt.Errorf("encode jpeg: %w", err)
		}
	case FormatPNG:
		encoder := png.Encoder{CompressionLevel: png.DefaultCompression}
		if err := encoder.Encode(w, img); err != nil {
			return fmt.Errorf("encode png: %w", err)
		}
	case FormatWebP:
		data, err := encodeWebP(img, quality)
		if err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("write webp: %w", err)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	return nil
}

func EncodeBytes(img image.Image, format string, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, format, quality); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
