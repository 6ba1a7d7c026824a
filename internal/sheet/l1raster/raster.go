package l1raster

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"github.com/banshee-data/itemsheet/internal/sheet"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Codec is the raster boundary of the pipeline. Implementations must be safe
// for concurrent use.
type Codec interface {
	// Decode turns encoded bytes into a pixel grid.
	Decode(data []byte) (*sheet.PixelGrid, error)

	// Encode serialises a normalized asset.
	Encode(img image.Image) ([]byte, error)
}

// PNGCodec decodes any registered format (PNG, JPEG, GIF, BMP, TIFF, WebP)
// and encodes PNG.
type PNGCodec struct {
	// Compression is passed to png.Encoder. Zero means png.DefaultCompression.
	Compression png.CompressionLevel
}

// Decode implements Codec. Failures wrap sheet.ErrInputDecode.
func (c PNGCodec) Decode(data []byte) (*sheet.PixelGrid, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", sheet.ErrInputDecode)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sheet.ErrInputDecode, err)
	}
	grid := NewPixelGrid(img)
	if grid.Width == 0 || grid.Height == 0 {
		return nil, fmt.Errorf("%w: %s image has no pixels", sheet.ErrInputDecode, format)
	}
	return grid, nil
}

// Encode implements Codec.
func (c PNGCodec) Encode(img image.Image) ([]byte, error) {
	enc := png.Encoder{CompressionLevel: c.Compression}
	var buf bytes.Buffer
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// NewPixelGrid copies img into a PixelGrid anchored at the origin, converting
// to non-premultiplied RGBA.
func NewPixelGrid(img image.Image) *sheet.PixelGrid {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	var nrgba *image.NRGBA
	if src, ok := img.(*image.NRGBA); ok && src.Stride == w*4 && src.Rect.Min == (image.Point{}) {
		nrgba = src
	} else {
		nrgba = image.NewNRGBA(image.Rect(0, 0, w, h))
		draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)
	}

	pix := make([]uint8, w*h*4)
	copy(pix, nrgba.Pix)
	return &sheet.PixelGrid{Width: w, Height: h, Pix: pix}
}

// FromRGB builds a fully opaque grid from an interleaved RGB buffer.
// It is mainly used by tests and tools that synthesise sheets in memory.
func FromRGB(width, height int, rgb []uint8) (*sheet.PixelGrid, error) {
	if width < 0 || height < 0 || len(rgb) != width*height*3 {
		return nil, fmt.Errorf("rgb buffer length %d does not match %dx%d", len(rgb), width, height)
	}
	pix := make([]uint8, width*height*4)
	for i, j := 0, 0; i < len(rgb); i, j = i+3, j+4 {
		pix[j] = rgb[i]
		pix[j+1] = rgb[i+1]
		pix[j+2] = rgb[i+2]
		pix[j+3] = 0xff
	}
	return &sheet.PixelGrid{Width: width, Height: height, Pix: pix}, nil
}
