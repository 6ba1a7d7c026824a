package testutil

import (
	"bytes"
	"image"
	"image/png"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSheetAndFills(t *testing.T) {
	t.Parallel()

	img := NewSheet(30, 20)
	assert.Equal(t, White, img.NRGBAAt(29, 19))

	FillSquare(img, 2, 2, 4, Ink)
	assert.Equal(t, Ink, img.NRGBAAt(5, 5))
	assert.Equal(t, White, img.NRGBAAt(6, 6))

	// Clipped at the edge.
	FillRect(img, image.Rect(25, 15, 40, 40), Red)
	assert.Equal(t, Red, img.NRGBAAt(29, 19))

	FillRing(img, image.Rect(10, 5, 20, 15), 2, Ink)
	assert.Equal(t, Ink, img.NRGBAAt(10, 5))
	assert.Equal(t, Ink, img.NRGBAAt(19, 14))
	assert.Equal(t, Ink, img.NRGBAAt(11, 10))
	assert.Equal(t, White, img.NRGBAAt(12, 10))
}

func TestGrid(t *testing.T) {
	t.Parallel()

	img := NewSheet(8, 6)
	FillSquare(img, 3, 2, 1, Red)
	sub := img.SubImage(image.Rect(2, 1, 6, 4)).(*image.NRGBA)

	g := Grid(sub)
	require.Equal(t, 4, g.Width)
	require.Equal(t, 3, g.Height)
	r, gr, b, a := g.At(1, 1)
	assert.Equal(t, [4]uint8{Red.R, Red.G, Red.B, Red.A}, [4]uint8{r, gr, b, a})
}

func TestEncodePNG(t *testing.T) {
	t.Parallel()

	data := EncodePNG(t, NewSheet(3, 3))
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 3), img.Bounds())
}

func TestNewTestRequest(t *testing.T) {
	t.Parallel()

	req := NewTestRequest(http.MethodPost, "/api/slice?prefix=x", []byte("body"))
	assert.Equal(t, "x", req.URL.Query().Get("prefix"))
	body, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, "body", string(body))

	AssertStatusCode(t, http.StatusOK, http.StatusOK)
}
