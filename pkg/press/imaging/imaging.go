// Package imaging provides the image transforms used for cover image
// derivatives: decode, resize to a variant's geometry, re-encode as JPEG.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"io"

	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const jpegQuality = 80

// Mode selects how a source image is fitted to the target geometry.
type Mode int

const (
	// FitFill scales preserving aspect ratio to cover the target box, then
	// center-crops to exactly width x height.
	FitFill Mode = iota
	// FitWithin shrinks preserving aspect ratio so the image fits inside the
	// target box. Images already within the box are left at their size.
	FitWithin
)

func (m Mode) String() string {
	if m == FitFill {
		return "fill"
	}
	return "fit"
}

// Result describes a transformed image.
type Result struct {
	Data   []byte
	Width  int
	Height int
}

// Transform decodes src, resizes it according to mode and the target
// geometry, and encodes the result as JPEG.
func Transform(src io.Reader, mode Mode, width, height int) (*Result, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	out := Resize(img, mode, width, height)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}

	b := out.Bounds()
	return &Result{Data: buf.Bytes(), Width: b.Dx(), Height: b.Dy()}, nil
}

// Resize scales img to the target geometry according to mode.
func Resize(img image.Image, mode Mode, width, height int) image.Image {
	switch mode {
	case FitFill:
		return resizeFill(img, width, height)
	default:
		return resizeWithin(img, width, height)
	}
}

func resizeFill(img image.Image, width, height int) image.Image {
	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()

	// Scale so the shorter relative dimension covers the box.
	scale := float64(width) / float64(srcW)
	if s := float64(height) / float64(srcH); s > scale {
		scale = s
	}
	scaledW := int(float64(srcW)*scale + 0.5)
	scaledH := int(float64(srcH)*scale + 0.5)
	if scaledW < width {
		scaledW = width
	}
	if scaledH < height {
		scaledH = height
	}

	scaled := image.NewRGBA(image.Rect(0, 0, scaledW, scaledH))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, bounds, draw.Over, nil)

	// Center-crop to the exact geometry.
	x0 := (scaledW - width) / 2
	y0 := (scaledH - height) / 2
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), scaled, image.Pt(x0, y0), draw.Src)
	return dst
}

func resizeWithin(img image.Image, width, height int) image.Image {
	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if srcW <= width && srcH <= height {
		return img
	}

	scale := float64(width) / float64(srcW)
	if s := float64(height) / float64(srcH); s < scale {
		scale = s
	}
	dstW := int(float64(srcW)*scale + 0.5)
	dstH := int(float64(srcH)*scale + 0.5)
	if dstW < 1 {
		dstW = 1
	}
	if dstH < 1 {
		dstH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
