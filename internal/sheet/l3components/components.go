package l3components

import (
	"github.com/banshee-data/itemsheet/internal/sheet"
	"github.com/banshee-data/itemsheet/internal/sheet/l2mask"
)

// Extract labels the 4-connected foreground regions of mask and returns one
// box per region whose pixel count is at least minArea. Regions are emitted
// in the row-major order of their first (top-most, then left-most) pixel.
//
// Diagonal neighbours are not connected here; fragments that only touch
// diagonally are reunited later by the box merger.
func Extract(mask *l2mask.Mask, minArea int) []sheet.Box {
	var out []sheet.Box
	visit(mask, nil, func(b sheet.Box) {
		if b.Area >= minArea {
			out = append(out, b)
		}
	})
	return out
}

// visit runs a breadth-first flood fill from each unvisited foreground cell
// and reports the resulting box. Every cell is enqueued at most once. When
// labels is non-nil each visited cell receives its component's ordinal.
func visit(mask *l2mask.Mask, labels []int, emit func(sheet.Box)) {
	w, h := mask.Width, mask.Height
	if w == 0 || h == 0 {
		return
	}
	visited := make([]bool, w*h)
	queue := make([]int, 0, 1024)
	id := 0

	for start, fg := range mask.Bits {
		if !fg || visited[start] {
			continue
		}

		queue = queue[:0]
		queue = append(queue, start)
		visited[start] = true

		minX, minY := start%w, start/w
		maxX, maxY := minX, minY

		// The queue is never drained from the front, so after the loop it
		// holds exactly the component's cells.
		for head := 0; head < len(queue); head++ {
			idx := queue[head]
			cx, cy := idx%w, idx/w

			minX = min(minX, cx)
			maxX = max(maxX, cx)
			minY = min(minY, cy)
			maxY = max(maxY, cy)

			if cy > 0 {
				queue = enqueue(mask.Bits, visited, queue, idx-w)
			}
			if cy < h-1 {
				queue = enqueue(mask.Bits, visited, queue, idx+w)
			}
			if cx > 0 {
				queue = enqueue(mask.Bits, visited, queue, idx-1)
			}
			if cx < w-1 {
				queue = enqueue(mask.Bits, visited, queue, idx+1)
			}
		}

		if labels != nil {
			for _, idx := range queue {
				labels[idx] = id
			}
		}
		id++

		emit(sheet.Box{X1: minX, Y1: minY, X2: maxX, Y2: maxY, Area: len(queue)})
	}
}

func enqueue(bits, visited []bool, queue []int, idx int) []int {
	if bits[idx] && !visited[idx] {
		visited[idx] = true
		queue = append(queue, idx)
	}
	return queue
}
