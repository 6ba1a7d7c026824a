package l5strip

import (
	"image"
	"image/draw"
)

// IsBackground reports whether all of r, g and b exceed threshold.
func IsBackground(r, g, b, threshold uint8) bool {
	return r > threshold && g > threshold && b > threshold
}

// RemoveBorderBackground returns a copy of img where every background pixel
// 4-connected to the image border through background pixels has alpha 0.
// It also returns the number of cleared pixels. img is not modified.
//
// The search is seeded from every background pixel on all four edges and
// expands with an explicit queue over flat indices.
func RemoveBorderBackground(img image.Image, threshold uint8) (*image.NRGBA, int) {
	out := cloneNRGBA(img)
	w, h := out.Rect.Dx(), out.Rect.Dy()
	if w == 0 || h == 0 {
		return out, 0
	}

	bg := func(idx int) bool {
		o := (idx/w)*out.Stride + (idx%w)*4
		return IsBackground(out.Pix[o], out.Pix[o+1], out.Pix[o+2], threshold)
	}

	visited := make([]bool, w*h)
	queue := make([]int, 0, 2*(w+h))
	seed := func(idx int) {
		if !visited[idx] && bg(idx) {
			visited[idx] = true
			queue = append(queue, idx)
		}
	}
	for x := range w {
		seed(x)
		seed((h-1)*w + x)
	}
	for y := range h {
		seed(y * w)
		seed(y*w + w - 1)
	}

	for head := 0; head < len(queue); head++ {
		idx := queue[head]
		x, y := idx%w, idx/w
		out.Pix[y*out.Stride+x*4+3] = 0

		if x > 0 {
			seed(idx - 1)
		}
		if x < w-1 {
			seed(idx + 1)
		}
		if y > 0 {
			seed(idx - w)
		}
		if y < h-1 {
			seed(idx + w)
		}
	}
	return out, len(queue)
}

// cloneNRGBA copies img into a new NRGBA anchored at the origin. NRGBA
// sources are copied row by row so translucent samples survive unchanged.
func cloneNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	src, ok := img.(*image.NRGBA)
	if !ok {
		draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
		return out
	}
	for y := range b.Dy() {
		so := src.PixOffset(b.Min.X, b.Min.Y+y)
		copy(out.Pix[y*out.Stride:(y+1)*out.Stride], src.Pix[so:so+b.Dx()*4])
	}
	return out
}
