// Package testutil provides shared test fixtures: synthetic item sheets and
// HTTP helpers.
package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/banshee-data/itemsheet/internal/sheet"
)

// Common fills for synthetic sheets.
var (
	White     = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	NearWhite = color.NRGBA{R: 245, G: 245, B: 245, A: 255}
	Ink       = color.NRGBA{R: 40, G: 80, B: 160, A: 255}
	Red       = color.NRGBA{R: 210, G: 30, B: 30, A: 255}
)

// NewSheet returns a w x h opaque white sheet.
func NewSheet(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	FillRect(img, img.Rect, White)
	return img
}

// FillRect paints r (half-open, clipped to img) with c.
func FillRect(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	r = r.Intersect(img.Rect)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
}

// FillSquare paints a side x side square with its top-left corner at (x, y).
func FillSquare(img *image.NRGBA, x, y, side int, c color.NRGBA) {
	FillRect(img, image.Rect(x, y, x+side, y+side), c)
}

// FillRing paints the outline of r with the given thickness, leaving the
// interior untouched.
func FillRing(img *image.NRGBA, r image.Rectangle, thickness int, c color.NRGBA) {
	FillRect(img, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+thickness), c)
	FillRect(img, image.Rect(r.Min.X, r.Max.Y-thickness, r.Max.X, r.Max.Y), c)
	FillRect(img, image.Rect(r.Min.X, r.Min.Y, r.Min.X+thickness, r.Max.Y), c)
	FillRect(img, image.Rect(r.Max.X-thickness, r.Min.Y, r.Max.X, r.Max.Y), c)
}

// Grid copies img into a PixelGrid.
func Grid(img *image.NRGBA) *sheet.PixelGrid {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	g := &sheet.PixelGrid{Width: w, Height: h, Pix: make([]uint8, w*h*4)}
	for y := range h {
		so := img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+y)
		copy(g.Pix[y*w*4:(y+1)*w*4], img.Pix[so:so+w*4])
	}
	return g
}

// EncodePNG encodes img or fails the test.
func EncodePNG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// NewTestRequest creates a test HTTP request with an optional body.
func NewTestRequest(method, path string, body []byte) *http.Request {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	return httptest.NewRequest(method, path, r)
}
