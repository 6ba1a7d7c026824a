package pipeline

import (
	"fmt"

	"github.com/banshee-data/itemsheet/internal/config"
	"github.com/banshee-data/itemsheet/internal/sheet/l6canvas"
)

// Params is the resolved, immutable parameter set for one extraction.
type Params struct {
	ForegroundThreshold uint8
	BackgroundThreshold uint8
	MergeGap            int
	MinArea             int
	MinWidth            int
	MinHeight           int
	Geometry            l6canvas.Geometry

	// Workers bounds the per-object stages. Values below 2 run them
	// sequentially on the calling goroutine.
	Workers int
}

// DefaultParams returns the built-in defaults of config.SliceConfig.
func DefaultParams() Params {
	return ParamsFromConfig(nil)
}

// ParamsFromConfig resolves a validated SliceConfig into Params. A nil
// config yields DefaultParams.
func ParamsFromConfig(cfg *config.SliceConfig) Params {
	if cfg == nil {
		cfg = config.EmptySliceConfig()
	}
	return Params{
		ForegroundThreshold: clampUint8(cfg.GetForegroundThreshold()),
		BackgroundThreshold: clampUint8(cfg.GetBackgroundThreshold()),
		MergeGap:            cfg.GetMergeGap(),
		MinArea:             cfg.GetMinArea(),
		MinWidth:            cfg.GetMinWidth(),
		MinHeight:           cfg.GetMinHeight(),
		Geometry: l6canvas.Geometry{
			CanvasSize:  cfg.GetCanvasSize(),
			ContentSize: cfg.GetContentSize(),
			Padding:     cfg.GetCropPadding(),
		},
		Workers: cfg.GetWorkers(),
	}
}

// Validate reports parameter combinations the pipeline cannot honour.
func (p Params) Validate() error {
	if p.MergeGap < 0 {
		return fmt.Errorf("merge gap must be non-negative, got %d", p.MergeGap)
	}
	if p.MinArea < 1 {
		return fmt.Errorf("min area must be at least 1, got %d", p.MinArea)
	}
	if p.MinWidth < 0 || p.MinHeight < 0 {
		return fmt.Errorf("min size must be non-negative, got %dx%d", p.MinWidth, p.MinHeight)
	}
	if err := p.Geometry.Validate(); err != nil {
		return fmt.Errorf("canvas: %w", err)
	}
	return nil
}

func clampUint8(v int) uint8 {
	return uint8(min(max(v, 0), 255))
}
