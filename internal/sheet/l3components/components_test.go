package l3components

import (
	"math/rand/v2"
	"testing"

	"github.com/banshee-data/itemsheet/internal/sheet"
	"github.com/banshee-data/itemsheet/internal/sheet/l2mask"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// maskFromRows builds a mask from strings where '#' is foreground.
func maskFromRows(rows ...string) *l2mask.Mask {
	m := l2mask.New(len(rows[0]), len(rows))
	for y, row := range rows {
		for x, c := range row {
			if c == '#' {
				m.Set(x, y, true)
			}
		}
	}
	return m
}

// label returns a per-cell component id (-1 for background) alongside the
// boxes of every component; ids index into the returned slice.
func label(mask *l2mask.Mask) ([]int, []sheet.Box) {
	labels := make([]int, len(mask.Bits))
	for i := range labels {
		labels[i] = -1
	}
	var boxes []sheet.Box
	visit(mask, labels, func(b sheet.Box) {
		boxes = append(boxes, b)
	})
	return labels, boxes
}

func TestExtract_EmptyMask(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Extract(l2mask.New(10, 10), 1))
	assert.Empty(t, Extract(l2mask.New(0, 0), 1))
}

func TestExtract_SingleSolidBlock(t *testing.T) {
	t.Parallel()

	m := maskFromRows(
		"......",
		".###..",
		".###..",
		"......",
	)
	boxes := Extract(m, 1)
	require.Len(t, boxes, 1)
	assert.Equal(t, sheet.Box{X1: 1, Y1: 1, X2: 3, Y2: 2, Area: 6}, boxes[0])
}

func TestExtract_DiagonalIsNotConnected(t *testing.T) {
	t.Parallel()

	m := maskFromRows(
		"#.",
		".#",
	)
	boxes := Extract(m, 1)
	require.Len(t, boxes, 2)
	assert.Equal(t, sheet.Box{X1: 0, Y1: 0, X2: 0, Y2: 0, Area: 1}, boxes[0])
	assert.Equal(t, sheet.Box{X1: 1, Y1: 1, X2: 1, Y2: 1, Area: 1}, boxes[1])
}

func TestExtract_NonConvexShape(t *testing.T) {
	t.Parallel()

	// A U shape: the bounding box covers more cells than the pixel area.
	m := maskFromRows(
		"#...#",
		"#...#",
		"#####",
	)
	boxes := Extract(m, 1)
	require.Len(t, boxes, 1)
	assert.Equal(t, sheet.Box{X1: 0, Y1: 0, X2: 4, Y2: 2, Area: 9}, boxes[0])
	assert.Less(t, boxes[0].Area, boxes[0].Width()*boxes[0].Height())
}

func TestExtract_MinAreaFilter(t *testing.T) {
	t.Parallel()

	m := maskFromRows(
		"##....",
		"##..#.",
		"......",
	)
	assert.Len(t, Extract(m, 1), 2)
	boxes := Extract(m, 2)
	require.Len(t, boxes, 1)
	assert.Equal(t, 4, boxes[0].Area)
	assert.Empty(t, Extract(m, 5))
}

func TestExtract_RowMajorSeedOrder(t *testing.T) {
	t.Parallel()

	m := maskFromRows(
		"....#",
		"#....",
		"..#..",
	)
	boxes := Extract(m, 1)
	require.Len(t, boxes, 3)
	assert.Equal(t, 4, boxes[0].X1)
	assert.Equal(t, 0, boxes[1].X1)
	assert.Equal(t, 2, boxes[2].X1)
}

func TestExtract_Partition(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(7, 11))
	m := l2mask.New(97, 61)
	for i := range m.Bits {
		m.Bits[i] = rng.IntN(100) < 45
	}

	labels, boxes := label(m)
	require.Len(t, labels, len(m.Bits))

	areas := make([]int, len(boxes))
	for i, fg := range m.Bits {
		if !fg {
			assert.Equal(t, -1, labels[i], "background cell %d labelled", i)
			continue
		}
		id := labels[i]
		require.GreaterOrEqual(t, id, 0, "foreground cell %d unlabelled", i)
		require.Less(t, id, len(boxes))
		areas[id]++
		x, y := i%m.Width, i/m.Width
		assert.True(t, boxes[id].Contains(x, y), "cell (%d,%d) outside its box %v", x, y, boxes[id])
	}

	total := 0
	for id, b := range boxes {
		assert.Equal(t, b.Area, areas[id], "box %d area mismatch", id)
		_, err := sheet.NewBox(b.X1, b.Y1, b.X2, b.Y2, b.Area)
		assert.NoError(t, err)
		total += b.Area
	}
	assert.Equal(t, m.Count(), total)

	// Extract with no size threshold sees the same components.
	assert.Equal(t, boxes, Extract(m, 1))
}

func TestExtract_LargeComponentNoRecursion(t *testing.T) {
	t.Parallel()

	// A serpentine path covering most of a large grid would overflow a
	// recursive fill; the queue-based search handles it.
	m := l2mask.New(400, 400)
	for y := 0; y < 400; y += 2 {
		for x := range 400 {
			m.Set(x, y, true)
		}
		if y+1 < 400 {
			if (y/2)%2 == 0 {
				m.Set(399, y+1, true)
			} else {
				m.Set(0, y+1, true)
			}
		}
	}
	boxes := Extract(m, 1)
	require.Len(t, boxes, 1)
	assert.Equal(t, m.Count(), boxes[0].Area)
}
