// Package imageconv decodes uploaded or downloaded images and re-encodes them
// into the formats the provider accepts.
package imageconv

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"net/http"
	"os"

	"github.com/kolesa-team/go-webp/decoder"
	"github.com/kolesa-team/go-webp/webp"
)

// Format is a sniffed image encoding.
type Format string

const (
	FormatPNG     Format = "png"
	FormatJPEG    Format = "jpeg"
	FormatGIF     Format = "gif"
	FormatWEBP    Format = "webp"
	FormatUnknown Format = ""
)

// MaxEditDimension bounds the longest side of images sent for editing.
const MaxEditDimension = 2048

// ErrUnsupported is returned for payloads that are not a decodable image.
var ErrUnsupported = errors.New("imageconv: unsupported image format")

// Detect sniffs the encoding from the leading bytes.
func Detect(data []byte) Format {
	if isWEBP(data) {
		return FormatWEBP
	}
	switch http.DetectContentType(data) {
	case "image/png":
		return FormatPNG
	case "image/jpeg":
		return FormatJPEG
	case "image/gif":
		return FormatGIF
	default:
		return FormatUnknown
	}
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	if f == FormatUnknown {
		return "application/octet-stream"
	}
	return "image/" + string(f)
}

// Extension returns the file extension for f including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatJPEG:
		return ".jpg"
	case FormatUnknown:
		return ""
	default:
		return "." + string(f)
	}
}

// NormalizeUpload keeps PNG and JPEG payloads as they are and converts every
// other decodable format to PNG.
func NormalizeUpload(data []byte) ([]byte, Format, error) {
	switch f := Detect(data); f {
	case FormatPNG, FormatJPEG:
		return data, f, nil
	case FormatUnknown:
		return nil, FormatUnknown, ErrUnsupported
	default:
		out, err := ToPNG(data)
		if err != nil {
			return nil, FormatUnknown, err
		}
		return out, FormatPNG, nil
	}
}

// ToPNG decodes any supported format and encodes it as PNG.
func ToPNG(data []byte) ([]byte, error) {
	img, err := decodeImage(data)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := png.Encode(&out, img); err != nil {
		return nil, fmt.Errorf("imageconv: encode png: %w", err)
	}
	return out.Bytes(), nil
}

// ToRGBAPNG produces a PNG that always carries an alpha channel, downscaled so
// neither side exceeds MaxEditDimension.
func ToRGBAPNG(data []byte) ([]byte, error) {
	img, err := decodeImage(data)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("imageconv: empty image")
	}
	if w > MaxEditDimension || h > MaxEditDimension {
		if w >= h {
			w, h = MaxEditDimension, max(1, h*MaxEditDimension/w)
		} else {
			w, h = max(1, w*MaxEditDimension/h), MaxEditDimension
		}
		img = resizeNearest(img, w, h)
		b = img.Bounds()
	}

	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	// png.Encode writes opaque images without an alpha channel.
	if dst.Opaque() {
		c := dst.NRGBAAt(0, 0)
		c.A = 0xfe
		dst.SetNRGBA(0, 0, c)
	}

	var out bytes.Buffer
	if err := png.Encode(&out, dst); err != nil {
		return nil, fmt.Errorf("imageconv: encode png: %w", err)
	}
	return out.Bytes(), nil
}

// NormalizeFile reads src and writes its RGBA PNG rendition to dst.
func NormalizeFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("imageconv: read source: %w", err)
	}
	out, err := ToRGBAPNG(data)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dst, out, 0o600); err != nil {
		return fmt.Errorf("imageconv: write output: %w", err)
	}
	return nil
}

func decodeImage(data []byte) (image.Image, error) {
	if isWEBP(data) {
		img, err := webp.Decode(bytes.NewReader(data), &decoder.Options{})
		if err != nil {
			return nil, fmt.Errorf("imageconv: decode webp: %w", err)
		}
		return img, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, ErrUnsupported
		}
		return nil, fmt.Errorf("imageconv: decode: %w", err)
	}
	return img, nil
}

func isWEBP(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	return string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP"
}

func resizeNearest(src image.Image, width, height int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	b := src.Bounds()
	srcW, srcH := b.Dx(), b.Dy()
	for y := 0; y < height; y++ {
		srcY := b.Min.Y + (y*srcH)/height
		for x := 0; x < width; x++ {
			srcX := b.Min.X + (x*srcW)/width
			dst.Set(x, y, color.NRGBAModel.Convert(src.At(srcX, srcY)))
		}
	}
	return dst
}
