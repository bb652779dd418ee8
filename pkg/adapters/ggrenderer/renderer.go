// Package ggrenderer provides frame image helpers using the gg library.
package ggrenderer

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"

	"github.com/user/vidloop/pkg/pipeline"
	"github.com/user/vidloop/pkg/ports"
)

const (
	captionPadding = 4.0
	captionHeight  = 16.0
)

// Renderer implements ports.Renderer.
type Renderer struct {
	scaler draw.Scaler
}

// New creates a Renderer whose resampling kernel follows the quality tier:
// low quality trades sharpness for speed.
func New(q pipeline.QualityTier) *Renderer {
	var s draw.Scaler = draw.CatmullRom
	if q == pipeline.QualityLow {
		s = draw.ApproxBiLinear
	}
	return &Renderer{scaler: s}
}

// EncodeImage encodes an image to the specified format.
func (r *Renderer) EncodeImage(img image.Image, format ports.ImageFormat, quality int) ([]byte, error) {
	var buf bytes.Buffer

	switch format {
	case ports.FormatJPEG:
		if quality <= 0 {
			quality = jpeg.DefaultQuality
		}
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("encode JPEG: %w", err)
		}
	case ports.FormatPNG:
		enc := png.Encoder{CompressionLevel: png.BestSpeed}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode PNG: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format: %d", format)
	}

	return buf.Bytes(), nil
}

// ResizeImage resizes an image to the specified dimensions. An image that
// already has the requested size is returned unchanged.
func (r *Renderer) ResizeImage(img image.Image, width, height int) image.Image {
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	r.scaler.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// Annotate draws caption on a translucent strip in the bottom-left corner of
// a copy of img.
func (r *Renderer) Annotate(img image.Image, caption string) image.Image {
	dc := gg.NewContextForImage(img)
	w, _ := dc.MeasureString(caption)
	h := float64(dc.Height())

	dc.SetColor(color.RGBA{A: 160})
	dc.DrawRectangle(0, h-captionHeight-captionPadding, w+2*captionPadding, captionHeight+captionPadding)
	dc.Fill()

	dc.SetColor(color.White)
	dc.DrawStringAnchored(caption, captionPadding, h-captionPadding-captionHeight/2, 0, 0.5)
	return dc.Image()
}

// Ensure Renderer implements ports.Renderer
var _ ports.Renderer = (*Renderer)(nil)
