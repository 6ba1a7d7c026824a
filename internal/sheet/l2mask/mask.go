package l2mask

import "github.com/banshee-data/itemsheet/internal/sheet"

// Mask is a row-major boolean grid with the sheet's dimensions.
type Mask struct {
	Width, Height int
	Bits          []bool
}

// New returns an all-background mask.
func New(width, height int) *Mask {
	return &Mask{Width: width, Height: height, Bits: make([]bool, width*height)}
}

// Build marks a pixel as foreground iff at least one of its R, G, B samples
// is below threshold, i.e. it is not near-white on every channel. Alpha is
// ignored. A malformed grid is rejected with an error wrapping
// sheet.ErrInputDecode.
func Build(g *sheet.PixelGrid, threshold uint8) (*Mask, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	m := New(g.Width, g.Height)
	for y := range g.Height {
		for x := range g.Width {
			r, gr, b, _ := g.At(x, y)
			m.Set(x, y, r < threshold || gr < threshold || b < threshold)
		}
	}
	return m, nil
}

// At reports whether (x, y) is foreground. Out-of-range cells are background.
func (m *Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.Bits[y*m.Width+x]
}

// Set marks (x, y) as foreground or background.
func (m *Mask) Set(x, y int, v bool) {
	m.Bits[y*m.Width+x] = v
}

// Count returns the number of foreground cells.
func (m *Mask) Count() int {
	n := 0
	for _, b := range m.Bits {
		if b {
			n++
		}
	}
	return n
}
