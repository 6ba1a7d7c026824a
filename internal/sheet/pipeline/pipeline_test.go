package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"
	"sync"
	"testing"

	"github.com/banshee-data/itemsheet/internal/config"
	"github.com/banshee-data/itemsheet/internal/monitoring"
	"github.com/banshee-data/itemsheet/internal/sheet"
	"github.com/banshee-data/itemsheet/internal/sheet/l1raster"
	"github.com/banshee-data/itemsheet/internal/sheet/l6canvas"
	"github.com/banshee-data/itemsheet/internal/testutil"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// paleInk is foreground (R < 240) and also background (every channel > 236),
// so an object drawn in it disappears entirely when stripped.
var paleInk = color.NRGBA{R: 238, G: 250, B: 250, A: 255}

func run(t *testing.T, img *image.NRGBA, p Params) *Result {
	t.Helper()
	res, err := ExtractObjects(testutil.Grid(img), p)
	require.NoError(t, err)
	return res
}

// busySheet has five objects of different shapes spread over the sheet.
func busySheet() *image.NRGBA {
	img := testutil.NewSheet(400, 300)
	testutil.FillSquare(img, 300, 20, 50, testutil.Red)
	testutil.FillSquare(img, 20, 20, 60, testutil.Ink)
	testutil.FillRing(img, image.Rect(150, 120, 230, 200), 8, testutil.Ink)
	testutil.FillRect(img, image.Rect(20, 200, 120, 280), testutil.Red)
	testutil.FillRect(img, image.Rect(60, 220, 80, 240), testutil.NearWhite)
	// Plus shape: the crop corners are sheet background.
	testutil.FillRect(img, image.Rect(300, 200, 370, 220), testutil.Ink)
	testutil.FillRect(img, image.Rect(325, 175, 345, 245), testutil.Ink)
	return img
}

// ---------------------------------------------------------------------------
// Params

func TestParamsFromConfig(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultParams(), ParamsFromConfig(nil))
	assert.Equal(t, DefaultParams(), ParamsFromConfig(config.MustLoadDefaultConfig()))
	assert.Equal(t, DefaultParams(), ParamsFromConfig(config.DefaultSliceConfig()))
	assert.Equal(t, Params{
		ForegroundThreshold: 240,
		BackgroundThreshold: 236,
		MergeGap:            10,
		MinArea:             700,
		MinWidth:            40,
		MinHeight:           40,
		Geometry:            l6canvas.Geometry{CanvasSize: 512, ContentSize: 440, Padding: 6},
		Workers:             1,
	}, DefaultParams())

	cfg, err := config.ParseSliceConfig([]byte(`{"min_area": 50, "canvas_size": 128, "content_size": 100, "crop_padding": 2, "workers": 4}`))
	require.NoError(t, err)
	p := ParamsFromConfig(cfg)
	assert.Equal(t, 50, p.MinArea)
	assert.Equal(t, l6canvas.Geometry{CanvasSize: 128, ContentSize: 100, Padding: 2}, p.Geometry)
	assert.Equal(t, 4, p.Workers)
	assert.Equal(t, uint8(240), p.ForegroundThreshold)
}

func TestParams_Validate(t *testing.T) {
	t.Parallel()

	mutate := map[string]func(*Params){
		"negative gap":     func(p *Params) { p.MergeGap = -1 },
		"zero area":        func(p *Params) { p.MinArea = 0 },
		"negative width":   func(p *Params) { p.MinWidth = -1 },
		"content > canvas": func(p *Params) { p.Geometry.ContentSize = p.Geometry.CanvasSize + 1 },
	}
	for name, fn := range mutate {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			p := DefaultParams()
			fn(&p)
			assert.Error(t, p.Validate())
		})
	}
	assert.NoError(t, DefaultParams().Validate())
}

// ---------------------------------------------------------------------------
// Input handling

func TestExtractObjects_RejectsMalformedInput(t *testing.T) {
	t.Parallel()

	for name, g := range map[string]*sheet.PixelGrid{
		"nil":          nil,
		"zero size":    {},
		"short pixels": {Width: 2, Height: 2, Pix: make([]uint8, 3)},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := ExtractObjects(g, DefaultParams())
			require.Error(t, err)
			assert.True(t, errors.Is(err, sheet.ErrInputDecode))
		})
	}

	p := DefaultParams()
	p.MinArea = 0
	_, err := ExtractObjects(testutil.Grid(testutil.NewSheet(10, 10)), p)
	assert.Error(t, err)
}

func TestExtractObjects_BlankSheet(t *testing.T) {
	t.Parallel()

	res := run(t, testutil.NewSheet(120, 80), DefaultParams())
	assert.Empty(t, res.Assets)
	assert.Equal(t, Stats{}, res.Stats)
}

// ---------------------------------------------------------------------------
// Scenarios

func TestExtractObjects_MergeScenario(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		apart  int
		assets int
	}{
		{"4px apart merges", 4, 1},
		{"20px apart stays separate", 20, 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			img := testutil.NewSheet(200, 200)
			testutil.FillSquare(img, 20, 70, 60, testutil.Ink)
			testutil.FillSquare(img, 80+tc.apart, 70, 60, testutil.Ink)

			res := run(t, img, DefaultParams())
			assert.Equal(t, 2, res.Stats.Detected)
			assert.Equal(t, tc.assets, res.Stats.Merged)
			require.Len(t, res.Assets, tc.assets)
			for _, a := range res.Assets {
				assert.Equal(t, image.Rect(0, 0, 512, 512), a.Image.Rect)
			}
		})
	}
}

func TestExtractObjects_NoiseRejected(t *testing.T) {
	t.Parallel()

	img := testutil.NewSheet(200, 200)
	testutil.FillSquare(img, 90, 90, 5, testutil.Ink)

	res := run(t, img, DefaultParams())
	assert.Empty(t, res.Assets)
	assert.Zero(t, res.Stats.Detected)
}

func TestExtractObjects_SizeFilter(t *testing.T) {
	t.Parallel()

	img := testutil.NewSheet(400, 200)
	testutil.FillRect(img, image.Rect(20, 20, 380, 24), testutil.Ink) // 360x4 rule
	testutil.FillSquare(img, 100, 100, 50, testutil.Ink)

	res := run(t, img, DefaultParams())
	assert.Equal(t, 2, res.Stats.Detected)
	assert.Equal(t, 1, res.Stats.Filtered)
	require.Len(t, res.Assets, 1)
	assert.Equal(t, sheet.Box{X1: 100, Y1: 100, X2: 149, Y2: 149, Area: 2500}, res.Assets[0].Box)
}

func TestExtractObjects_EnclosedHighlightKept(t *testing.T) {
	t.Parallel()

	img := testutil.NewSheet(200, 200)
	testutil.FillSquare(img, 50, 50, 60, testutil.Ink)
	testutil.FillSquare(img, 78, 78, 4, testutil.NearWhite)

	res := run(t, img, DefaultParams())
	require.Len(t, res.Assets, 1)
	out := res.Assets[0].Image

	// 60x60 content needs no scaling and is placed at (226, 226).
	r, ok := l6canvas.AlphaBounds(out)
	require.True(t, ok)
	assert.Equal(t, image.Rect(226, 226, 286, 286), r)
	for y := 254; y < 258; y++ {
		for x := 254; x < 258; x++ {
			assert.Equal(t, testutil.NearWhite, out.NRGBAAt(x, y), "highlight pixel (%d,%d)", x, y)
		}
	}
	assert.Zero(t, out.NRGBAAt(0, 0).A)
}

func TestExtractObjects_BorderBackgroundCleared(t *testing.T) {
	t.Parallel()

	img := testutil.NewSheet(200, 200)
	testutil.FillRect(img, image.Rect(40, 80, 160, 100), testutil.Ink)
	testutil.FillRect(img, image.Rect(90, 40, 110, 160), testutil.Ink)

	res := run(t, img, DefaultParams())
	require.Len(t, res.Assets, 1)
	out := res.Assets[0].Image

	// The 120x120 plus is centred at (196, 196); its corners were white.
	assert.Zero(t, out.NRGBAAt(200, 200).A)
	assert.Equal(t, testutil.Ink, out.NRGBAAt(256, 256))
	assert.Equal(t, testutil.Ink, out.NRGBAAt(200, 250))
}

func TestExtractObjects_OrderAndIndices(t *testing.T) {
	t.Parallel()

	res := run(t, busySheet(), DefaultParams())
	require.Len(t, res.Assets, 5)

	var got []string
	for i, a := range res.Assets {
		assert.Equal(t, i+1, a.Index)
		got = append(got, fmt.Sprintf("%d,%d", a.Box.X1, a.Box.Y1))
	}
	want := []string{"20,20", "300,20", "150,120", "300,175", "20,200"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("asset order mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, Stats{Detected: 5, Merged: 5, MergePasses: 1, Emitted: 5}, res.Stats)
}

func TestExtractObjects_Deterministic(t *testing.T) {
	t.Parallel()

	grid := testutil.Grid(busySheet())
	codec := l1raster.PNGCodec{}

	encodeAll := func(workers int) ([]sheet.Box, [][]byte) {
		p := DefaultParams()
		p.Workers = workers
		res, err := ExtractObjects(grid, p)
		require.NoError(t, err)
		var boxes []sheet.Box
		var blobs [][]byte
		for _, a := range res.Assets {
			data, err := codec.Encode(a.Image)
			require.NoError(t, err)
			boxes = append(boxes, a.Box)
			blobs = append(blobs, data)
		}
		return boxes, blobs
	}

	wantBoxes, wantBlobs := encodeAll(1)
	for _, workers := range []int{1, 2, 8} {
		boxes, blobs := encodeAll(workers)
		if diff := cmp.Diff(wantBoxes, boxes); diff != "" {
			t.Errorf("workers=%d boxes differ (-want +got):\n%s", workers, diff)
		}
		require.Len(t, blobs, len(wantBlobs))
		for i := range blobs {
			assert.Equal(t, wantBlobs[i], blobs[i], "workers=%d asset %d bytes differ", workers, i+1)
		}
	}
}

func TestExtractObjects_EmptyContentSkipped(t *testing.T) {
	t.Parallel()

	for _, workers := range []int{1, 3} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			t.Parallel()
			img := testutil.NewSheet(300, 200)
			testutil.FillSquare(img, 20, 20, 50, testutil.Ink)
			testutil.FillSquare(img, 120, 20, 50, paleInk)
			testutil.FillSquare(img, 220, 20, 50, testutil.Red)

			p := DefaultParams()
			p.Workers = workers
			res := run(t, img, p)

			assert.Equal(t, 3, res.Stats.Detected)
			assert.Equal(t, 1, res.Stats.Skipped)
			assert.Equal(t, 2, res.Stats.Emitted)
			require.Len(t, res.Skipped, 1)
			assert.Equal(t, 2, res.Skipped[0].Index)
			assert.True(t, IsEmptyContent(res.Skipped[0]))
			assert.True(t, errors.Is(res.Skipped[0], sheet.ErrEmptyContent))

			// Indices keep their original positions.
			require.Len(t, res.Assets, 2)
			assert.Equal(t, 1, res.Assets[0].Index)
			assert.Equal(t, 3, res.Assets[1].Index)
		})
	}
}

func TestExtractObjects_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, workers := range []int{1, 4} {
		p := DefaultParams()
		p.Workers = workers
		_, err := ExtractObjectsContext(ctx, testutil.Grid(busySheet()), p)
		assert.True(t, errors.Is(err, context.Canceled), "workers=%d: %v", workers, err)
	}
}

func TestExtractObjects_LogsSkips(t *testing.T) {
	// Swaps the package logger; not parallel.
	var mu sync.Mutex
	var lines []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	defer monitoring.SetLogger(nil)

	img := testutil.NewSheet(100, 100)
	testutil.FillSquare(img, 20, 20, 50, paleInk)
	run(t, img, DefaultParams())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "[slice] warning: skipping object 1"), lines[0])
}
