package sheet

import (
	"fmt"
	"image"
)

// Box is an axis-aligned bounding box with inclusive integer bounds and the
// number of foreground pixels it covers.
//
// Area is a pixel count, not the rectangle area; it only equals
// Width()*Height() for solid rectangles.
type Box struct {
	X1, Y1 int
	X2, Y2 int
	Area   int
}

// NewBox returns a Box after checking its invariants:
// x1 <= x2, y1 <= y2 and 1 <= area <= width*height.
func NewBox(x1, y1, x2, y2, area int) (Box, error) {
	if x1 > x2 || y1 > y2 {
		return Box{}, fmt.Errorf("%w: bounds (%d,%d)-(%d,%d)", ErrInvalidBox, x1, y1, x2, y2)
	}
	b := Box{X1: x1, Y1: y1, X2: x2, Y2: y2, Area: area}
	if area < 1 || area > b.Width()*b.Height() {
		return Box{}, fmt.Errorf("%w: area %d outside [1, %d]", ErrInvalidBox, area, b.Width()*b.Height())
	}
	return b, nil
}

// Width returns the inclusive width in pixels.
func (b Box) Width() int { return b.X2 - b.X1 + 1 }

// Height returns the inclusive height in pixels.
func (b Box) Height() int { return b.Y2 - b.Y1 + 1 }

// Expand returns the box grown by gap pixels on every side. The area is
// carried over unchanged and the result is not clamped to any image.
func (b Box) Expand(gap int) Box {
	return Box{X1: b.X1 - gap, Y1: b.Y1 - gap, X2: b.X2 + gap, Y2: b.Y2 + gap, Area: b.Area}
}

// Intersects reports whether the inclusive bounds of b and o overlap.
func (b Box) Intersects(o Box) bool {
	return !(o.X2 < b.X1 || o.X1 > b.X2 || o.Y2 < b.Y1 || o.Y1 > b.Y2)
}

// Union returns the coordinate-wise union of both bounds with summed area.
func (b Box) Union(o Box) Box {
	return Box{
		X1:   min(b.X1, o.X1),
		Y1:   min(b.Y1, o.Y1),
		X2:   max(b.X2, o.X2),
		Y2:   max(b.Y2, o.Y2),
		Area: b.Area + o.Area,
	}
}

// Contains reports whether the pixel (x, y) lies inside the bounds.
func (b Box) Contains(x, y int) bool {
	return x >= b.X1 && x <= b.X2 && y >= b.Y1 && y <= b.Y2
}

// Rect converts the inclusive bounds to a half-open image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2+1, b.Y2+1)
}

func (b Box) String() string {
	return fmt.Sprintf("(%d,%d)-(%d,%d) %dx%d area=%d", b.X1, b.Y1, b.X2, b.Y2, b.Width(), b.Height(), b.Area)
}

// PixelGrid is a read-only RGBA sample buffer for the whole sheet.
// Pix holds 4 bytes per pixel (R, G, B, A, non-premultiplied) in row-major
// order; len(Pix) == Width*Height*4.
type PixelGrid struct {
	Width, Height int
	Pix           []uint8
}

// Validate checks that the grid is non-empty and that Pix holds exactly
// Width*Height*4 samples. Failures wrap ErrInputDecode.
func (g *PixelGrid) Validate() error {
	if g == nil {
		return fmt.Errorf("%w: nil pixel grid", ErrInputDecode)
	}
	if g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("%w: empty %dx%d pixel grid", ErrInputDecode, g.Width, g.Height)
	}
	if len(g.Pix) != g.Width*g.Height*4 {
		return fmt.Errorf("%w: %dx%d pixel grid has %d samples, want %d",
			ErrInputDecode, g.Width, g.Height, len(g.Pix), g.Width*g.Height*4)
	}
	return nil
}

// At returns the four samples of pixel (x, y). The caller must stay in bounds.
func (g *PixelGrid) At(x, y int) (r, gr, b, a uint8) {
	i := (y*g.Width + x) * 4
	return g.Pix[i], g.Pix[i+1], g.Pix[i+2], g.Pix[i+3]
}

// Crop copies the inclusive box region into a new NRGBA image anchored at
// the origin. Every copied pixel is fully opaque: the sheet is treated as an
// RGB source and transparency is only introduced by background stripping.
func (g *PixelGrid) Crop(b Box) *image.NRGBA {
	x1, y1 := max(b.X1, 0), max(b.Y1, 0)
	x2, y2 := min(b.X2, g.Width-1), min(b.Y2, g.Height-1)
	if x1 > x2 || y1 > y2 {
		return image.NewNRGBA(image.Rect(0, 0, 0, 0))
	}
	w, h := x2-x1+1, y2-y1+1
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		src := ((y1+y)*g.Width + x1) * 4
		dst := y * out.Stride
		copy(out.Pix[dst:dst+w*4], g.Pix[src:src+w*4])
		for x := range w {
			out.Pix[dst+x*4+3] = 0xff
		}
	}
	return out
}

// ObjectRecord is one surviving box after filtering and ordering. Index is
// 1-based and assigned exactly once.
type ObjectRecord struct {
	Index int
	Box   Box
}

// Asset is a normalized, fixed-size transparent image for one object.
// It is not mutated after the pipeline returns it.
type Asset struct {
	Index int
	Box   Box
	Image *image.NRGBA
}

// Filename returns the persisted name "{prefix}_{index:02d}.png".
func (a Asset) Filename(prefix string) string {
	return fmt.Sprintf("%s_%02d.png", prefix, a.Index)
}
