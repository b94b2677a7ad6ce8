package image

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
)

// StaticGenerator renders a solid swatch derived from the prompt. It stands in
// for the OpenAI provider when no API key is configured so the batch flow
// stays usable in development.
type StaticGenerator struct{}

func NewStaticGenerator() *StaticGenerator {
	return &StaticGenerator{}
}

const staticSwatchSize = 64

func (StaticGenerator) Generate(ctx context.Context, req ProviderRequest) (Result, error) {
	return swatch(ctx, req.Model+"|"+req.Prompt, req.Background == "transparent")
}

func (StaticGenerator) Edit(ctx context.Context, req ProviderRequest) (Result, error) {
	return swatch(ctx, "edit|"+req.ImagePath+"|"+req.Prompt, req.Background == "transparent")
}

func swatch(ctx context.Context, seed string, transparent bool) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	sum := sha256.Sum256([]byte(seed))
	alpha := uint8(0xff)
	if transparent {
		alpha = 0x80
	}
	fill := color.NRGBA{R: sum[0], G: sum[1], B: sum[2], A: alpha}
	img := image.NewNRGBA(image.Rect(0, 0, staticSwatchSize, staticSwatchSize))
	for y := 0; y < staticSwatchSize; y++ {
		for x := 0; x < staticSwatchSize; x++ {
			img.SetNRGBA(x, y, fill)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Result{}, fmt.Errorf("static generator: encode: %w", err)
	}
	return Result{B64: base64.StdEncoding.EncodeToString(buf.Bytes())}, nil
}

var _ Generator = (*StaticGenerator)(nil)
