package l1raster

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/banshee-data/itemsheet/internal/sheet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPixelGrid_ConvertsAndCopies(t *testing.T) {
	t.Parallel()

	src := image.NewRGBA(image.Rect(5, 5, 8, 7))
	src.SetRGBA(5, 5, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	src.SetRGBA(7, 6, color.RGBA{R: 200, G: 100, B: 50, A: 255})

	g := NewPixelGrid(src)
	require.Equal(t, 3, g.Width)
	require.Equal(t, 2, g.Height)
	require.Len(t, g.Pix, 3*2*4)

	r, gr, b, a := g.At(0, 0)
	assert.Equal(t, [4]uint8{10, 20, 30, 255}, [4]uint8{r, gr, b, a})
	r, gr, b, a = g.At(2, 1)
	assert.Equal(t, [4]uint8{200, 100, 50, 255}, [4]uint8{r, gr, b, a})

	// The grid owns its buffer.
	src.SetRGBA(5, 5, color.RGBA{A: 255})
	r, _, _, _ = g.At(0, 0)
	assert.Equal(t, uint8(10), r)
}

func TestPNGCodec_RoundTrip(t *testing.T) {
	t.Parallel()

	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	img.SetNRGBA(1, 2, color.NRGBA{R: 1, G: 2, B: 3, A: 128})

	c := PNGCodec{}
	data, err := c.Encode(img)
	require.NoError(t, err)

	g, err := c.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 4, g.Width)
	assert.Equal(t, img.Pix, g.Pix)
}

func TestPNGCodec_DecodesJPEG(t *testing.T) {
	t.Parallel()

	img := image.NewRGBA(image.Rect(0, 0, 16, 8))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))

	g, err := PNGCodec{}.Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 16, g.Width)
	assert.Equal(t, 8, g.Height)
}

func TestPNGCodec_DecodeErrors(t *testing.T) {
	t.Parallel()

	for name, data := range map[string][]byte{
		"empty":   nil,
		"garbage": []byte("definitely not an image"),
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := PNGCodec{}.Decode(data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, sheet.ErrInputDecode))
		})
	}
}

func TestFromRGB(t *testing.T) {
	t.Parallel()

	g, err := FromRGB(2, 1, []uint8{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)
	assert.Equal(t, []uint8{1, 2, 3, 255, 4, 5, 6, 255}, g.Pix)

	_, err = FromRGB(2, 2, []uint8{1, 2, 3})
	assert.Error(t, err)
}
