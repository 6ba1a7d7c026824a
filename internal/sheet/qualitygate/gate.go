// Package qualitygate checks that a normalized asset hit-tests correctly when
// drawn contain-fit into a view rectangle: clicks on opaque pixels must land
// on the asset and clicks on transparent pixels must fall through.
package qualitygate

import (
	"errors"
	"fmt"
	"image"
	"math"
)

// Defaults used by the slicer's -gate option.
const (
	DefaultAlphaThreshold = 40
	DefaultSamples        = 20
	DefaultViewSize       = 68.0
)

// ErrTooSmall is returned for images that cannot be mapped; both sides must
// be at least 2 pixels.
var ErrTooSmall = errors.New("qualitygate: image smaller than 2x2")

// Rect is a rectangle in view (world) coordinates.
type Rect struct {
	Left, Top, Width, Height float64
}

// ContainRect returns where an imgW x imgH image is drawn when fitted inside
// view with its aspect ratio preserved and centred on the free axis.
func ContainRect(view Rect, imgW, imgH int) Rect {
	imageAspect := float64(imgW) / float64(imgH)
	viewAspect := view.Width / view.Height
	if imageAspect > viewAspect {
		h := view.Width / imageAspect
		return Rect{Left: view.Left, Top: view.Top + (view.Height-h)/2, Width: view.Width, Height: h}
	}
	w := view.Height * imageAspect
	return Rect{Left: view.Left + (view.Width-w)/2, Top: view.Top, Width: w, Height: view.Height}
}

// Mapper converts between view coordinates and pixel coordinates of one
// contain-fitted image.
type Mapper struct {
	draw Rect
	w, h int
}

// NewMapper builds a Mapper for an imgW x imgH image in view.
func NewMapper(view Rect, imgW, imgH int) (Mapper, error) {
	if imgW < 2 || imgH < 2 {
		return Mapper{}, ErrTooSmall
	}
	if !(view.Width > 0) || !(view.Height > 0) {
		return Mapper{}, fmt.Errorf("qualitygate: view must have positive size, got %gx%g", view.Width, view.Height)
	}
	return Mapper{draw: ContainRect(view, imgW, imgH), w: imgW, h: imgH}, nil
}

// DrawRect returns the contain-fitted rectangle.
func (m Mapper) DrawRect() Rect { return m.draw }

// WorldToPixel maps a view point to the nearest pixel. ok is false when the
// point lies outside the drawn image.
func (m Mapper) WorldToPixel(wx, wy float64) (px, py int, ok bool) {
	d := m.draw
	if wx < d.Left || wx > d.Left+d.Width || wy < d.Top || wy > d.Top+d.Height {
		return 0, 0, false
	}
	lx := (wx - d.Left) / d.Width
	ly := (wy - d.Top) / d.Height
	if lx < 0 || lx > 1 || ly < 0 || ly > 1 {
		return 0, 0, false
	}
	px = clamp(int(math.RoundToEven(lx*float64(m.w-1))), 0, m.w-1)
	py = clamp(int(math.RoundToEven(ly*float64(m.h-1))), 0, m.h-1)
	return px, py, true
}

// PixelToWorld maps a pixel centre to view coordinates.
func (m Mapper) PixelToWorld(px, py int) (wx, wy float64) {
	d := m.draw
	wx = d.Left + float64(px)/float64(m.w-1)*d.Width
	wy = d.Top + float64(py)/float64(m.h-1)*d.Height
	return wx, wy
}

// HitTest reports whether the view point lands on a pixel with alpha above
// threshold.
func HitTest(img *image.NRGBA, m Mapper, wx, wy float64, threshold uint8) bool {
	px, py, ok := m.WorldToPixel(wx, wy)
	if !ok {
		return false
	}
	return alphaAt(img, px, py) > threshold
}

// SamplePoints scans img on a grid with a step of max(1, size/40) per axis
// and returns up to n pixels that are opaque (alpha above threshold) or
// transparent, depending on wantOpaque.
func SamplePoints(img *image.NRGBA, threshold uint8, wantOpaque bool, n int) []image.Point {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	stepX, stepY := max(1, w/40), max(1, h/40)
	var pts []image.Point
	for y := 0; y < h; y += stepY {
		for x := 0; x < w; x += stepX {
			if (alphaAt(img, x, y) > threshold) != wantOpaque {
				continue
			}
			pts = append(pts, image.Pt(x, y))
			if len(pts) == n {
				return pts
			}
		}
	}
	return pts
}

// Options configures Check.
type Options struct {
	View           Rect
	AlphaThreshold uint8
	Samples        int
}

// DefaultOptions returns a 68x68 view, alpha threshold 40 and 20 samples.
func DefaultOptions() Options {
	return Options{
		View:           Rect{Width: DefaultViewSize, Height: DefaultViewSize},
		AlphaThreshold: DefaultAlphaThreshold,
		Samples:        DefaultSamples,
	}
}

// Report is the outcome of Check.
type Report struct {
	OpaqueSamples      int    `json:"opaque_samples"`
	OpaqueHits         int    `json:"opaque_hits"`
	TransparentSamples int    `json:"transparent_samples"`
	TransparentHits    int    `json:"transparent_hits"`
	Passed             bool   `json:"passed"`
	Reason             string `json:"reason,omitempty"`
}

func (r Report) String() string {
	s := fmt.Sprintf("opaque %d/%d transparent %d/%d", r.OpaqueHits, r.OpaqueSamples, r.TransparentHits, r.TransparentSamples)
	if r.Reason != "" {
		s += " (" + r.Reason + ")"
	}
	return s
}

// Check samples opaque and transparent pixels, maps each to view coordinates
// and hit-tests it back. The gate passes when there are enough samples of
// both kinds, every opaque sample hits and no transparent sample does.
func Check(img *image.NRGBA, opts Options) (Report, error) {
	if opts.Samples < 1 {
		return Report{}, fmt.Errorf("qualitygate: samples must be positive, got %d", opts.Samples)
	}
	m, err := NewMapper(opts.View, img.Rect.Dx(), img.Rect.Dy())
	if err != nil {
		return Report{}, err
	}

	opaque := SamplePoints(img, opts.AlphaThreshold, true, opts.Samples)
	transparent := SamplePoints(img, opts.AlphaThreshold, false, opts.Samples)
	rep := Report{OpaqueSamples: len(opaque), TransparentSamples: len(transparent)}

	hits := func(pts []image.Point) int {
		n := 0
		for _, p := range pts {
			x, y := m.PixelToWorld(p.X, p.Y)
			if HitTest(img, m, x, y, opts.AlphaThreshold) {
				n++
			}
		}
		return n
	}
	rep.OpaqueHits = hits(opaque)
	rep.TransparentHits = hits(transparent)

	switch {
	case len(opaque) < opts.Samples || len(transparent) < opts.Samples:
		rep.Reason = "not enough sample points"
	case rep.OpaqueHits != len(opaque):
		rep.Reason = "opaque pixels miss"
	case rep.TransparentHits != 0:
		rep.Reason = "transparent pixels hit"
	default:
		rep.Passed = true
	}
	return rep, nil
}

func alphaAt(img *image.NRGBA, x, y int) uint8 {
	return img.Pix[img.PixOffset(img.Rect.Min.X+x, img.Rect.Min.Y+y)+3]
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
