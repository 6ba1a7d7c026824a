package l6canvas

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Geometry describes the output canvas. Content is fitted so its larger side
// is at most ContentSize, then centred on a CanvasSize square.
type Geometry struct {
	CanvasSize  int
	ContentSize int
	Padding     int
}

// Validate checks 0 < ContentSize <= CanvasSize and Padding >= 0.
func (g Geometry) Validate() error {
	if g.CanvasSize <= 0 {
		return fmt.Errorf("canvas size must be positive, got %d", g.CanvasSize)
	}
	if g.ContentSize <= 0 || g.ContentSize > g.CanvasSize {
		return fmt.Errorf("content size %d must be in (0, %d]", g.ContentSize, g.CanvasSize)
	}
	if g.Padding < 0 {
		return fmt.Errorf("padding must be non-negative, got %d", g.Padding)
	}
	return nil
}

// AlphaBounds returns the tight bounds of pixels with non-zero alpha, in
// img's coordinate space. ok is false when every pixel is transparent.
func AlphaBounds(img *image.NRGBA) (r image.Rectangle, ok bool) {
	b := img.Rect
	minX, minY := b.Max.X, b.Max.Y
	maxX, maxY := b.Min.X-1, b.Min.Y-1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.Pix[row+(x-b.Min.X)*4+3] == 0 {
				continue
			}
			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)
		}
	}
	if maxX < minX {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), true
}

// Normalize places the opaque content of img on a transparent
// CanvasSize x CanvasSize canvas.
//
// The content bounds are padded by Padding on each side and clamped to img.
// Content larger than ContentSize is downscaled with a Lanczos filter,
// preserving aspect ratio; smaller content keeps its size. The result is
// pasted at ((C-w)/2, (C-h)/2). When img has no opaque pixel the canvas is
// returned empty and ok is false.
//
// The geometry must be valid; see Geometry.Validate.
func Normalize(img *image.NRGBA, g Geometry) (out *image.NRGBA, ok bool) {
	canvas := imaging.New(g.CanvasSize, g.CanvasSize, color.NRGBA{})

	content, ok := AlphaBounds(img)
	if !ok {
		return canvas, false
	}
	crop := imaging.Crop(img, content.Inset(-g.Padding).Intersect(img.Rect))
	fitted := imaging.Fit(crop, g.ContentSize, g.ContentSize, imaging.Lanczos)

	w, h := fitted.Rect.Dx(), fitted.Rect.Dy()
	pos := image.Pt((g.CanvasSize-w)/2, (g.CanvasSize-h)/2)
	// The canvas is fully transparent, so a straight paste equals source-over
	// compositing and keeps fully transparent samples exact.
	return imaging.Paste(canvas, fitted, pos), true
}
