package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/banshee-data/itemsheet/internal/monitoring"
	"github.com/banshee-data/itemsheet/internal/sheet"
	"github.com/banshee-data/itemsheet/internal/sheet/l2mask"
	"github.com/banshee-data/itemsheet/internal/sheet/l3components"
	"github.com/banshee-data/itemsheet/internal/sheet/l4boxes"
	"github.com/banshee-data/itemsheet/internal/sheet/l5strip"
	"github.com/banshee-data/itemsheet/internal/sheet/l6canvas"
)

var logf = monitoring.Tagged("slice")

// Stats counts objects at each stage of one run.
type Stats struct {
	Detected    int `json:"detected"`     // components with at least MinArea pixels
	Merged      int `json:"merged"`       // boxes left after merging
	MergePasses int `json:"merge_passes"` // passes until the merge fixpoint
	Filtered    int `json:"filtered"`     // boxes dropped by the size filter
	Skipped     int `json:"skipped"`      // objects that failed strip or normalize
	Emitted     int `json:"emitted"`      // assets returned
}

// Skip records an object that produced no asset.
type Skip struct {
	Index int
	Box   sheet.Box
	Err   error
}

func (s Skip) Error() string {
	return fmt.Sprintf("object %d %v: %v", s.Index, s.Box, s.Err)
}

func (s Skip) Unwrap() error { return s.Err }

// Result is the outcome of ExtractObjects.
type Result struct {
	// Assets are ordered by index; indices are 1-based and may have gaps
	// where objects were skipped.
	Assets []sheet.Asset

	// Components are the L3 boxes before merging, in scan order.
	Components []sheet.Box

	// Objects are the ordered records that entered the per-object stages.
	Objects []sheet.ObjectRecord

	Skipped []Skip
	Stats   Stats
}

// ExtractObjects runs the full pipeline over grid. It does not modify grid.
//
// An empty mask is not an error: the result has no assets and zero counts.
// Per-object failures, including panics, are recorded in Result.Skipped and
// never abort the other objects.
func ExtractObjects(grid *sheet.PixelGrid, p Params) (*Result, error) {
	return ExtractObjectsContext(context.Background(), grid, p)
}

// ExtractObjectsContext is ExtractObjects with cancellation. Once ctx is
// done no new objects are started and ctx.Err() is returned.
func ExtractObjectsContext(ctx context.Context, grid *sheet.PixelGrid, p Params) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	mask, err := l2mask.Build(grid, p.ForegroundThreshold)
	if err != nil {
		return nil, err
	}
	components := l3components.Extract(mask, p.MinArea)
	res := &Result{Components: components}
	res.Stats.Detected = len(components)
	if len(components) == 0 {
		logf("no components in %dx%d sheet (%d foreground pixels)", grid.Width, grid.Height, mask.Count())
		return res, nil
	}

	merged, ms := l4boxes.MergeWithStats(components, p.MergeGap)
	kept, dropped := l4boxes.FilterSize(merged, p.MinWidth, p.MinHeight)
	res.Objects = l4boxes.Records(l4boxes.Order(kept))
	res.Stats.Merged = len(merged)
	res.Stats.MergePasses = ms.Passes
	res.Stats.Filtered = dropped

	outcomes := make([]outcome, len(res.Objects))
	if err := runObjects(ctx, grid, p, res.Objects, outcomes); err != nil {
		return nil, err
	}

	for i, o := range outcomes {
		rec := res.Objects[i]
		if o.err != nil {
			logf("warning: skipping object %d %v: %v", rec.Index, rec.Box, o.err)
			res.Skipped = append(res.Skipped, Skip{Index: rec.Index, Box: rec.Box, Err: o.err})
			continue
		}
		res.Assets = append(res.Assets, sheet.Asset{Index: rec.Index, Box: rec.Box, Image: o.img})
	}
	res.Stats.Skipped = len(res.Skipped)
	res.Stats.Emitted = len(res.Assets)
	return res, nil
}

type outcome struct {
	img *image.NRGBA
	err error
}

// runObjects fills outcomes[i] for every record. With more than one worker,
// records are handed out over a channel and each worker writes only the
// slot of the record it took.
func runObjects(ctx context.Context, grid *sheet.PixelGrid, p Params, recs []sheet.ObjectRecord, outcomes []outcome) error {
	workers := min(p.Workers, len(recs))
	if workers < 2 {
		for i, rec := range recs {
			if err := ctx.Err(); err != nil {
				return err
			}
			outcomes[i] = processObject(grid, p, rec)
		}
		return nil
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcomes[i] = processObject(grid, p, recs[i])
			}
		}()
	}

	var err error
feed:
	for i := range recs {
		if err = ctx.Err(); err != nil {
			break
		}
		select {
		case jobs <- i:
		case <-ctx.Done():
			err = ctx.Err()
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	return err
}

// processObject crops, strips and normalizes one object. A panic is
// converted into the returned error.
func processObject(grid *sheet.PixelGrid, p Params, rec sheet.ObjectRecord) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = outcome{err: fmt.Errorf("panic: %v", r)}
		}
	}()

	crop := grid.Crop(rec.Box)
	stripped, _ := l5strip.RemoveBorderBackground(crop, p.BackgroundThreshold)
	img, ok := l6canvas.Normalize(stripped, p.Geometry)
	if !ok {
		return outcome{err: sheet.ErrEmptyContent}
	}
	return outcome{img: img}
}

// IsEmptyContent reports whether a skip was caused by an object with no
// opaque pixels left after stripping.
func IsEmptyContent(s Skip) bool {
	return errors.Is(s.Err, sheet.ErrEmptyContent)
}
