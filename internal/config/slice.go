package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultConfigPath is the path to the canonical slicing defaults file.
const DefaultConfigPath = "config/slice.defaults.json"

// SliceConfig is the JSON configuration for sheet slicing. Every field is
// optional; the Get* methods supply the built-in default for nil fields, so
// partial files are safe.
type SliceConfig struct {
	// Segmentation
	ForegroundThreshold *int `json:"foreground_threshold,omitempty"`
	BackgroundThreshold *int `json:"background_threshold,omitempty"`
	MergeGap            *int `json:"merge_gap,omitempty"`
	MinArea             *int `json:"min_area,omitempty"`
	MinWidth            *int `json:"min_width,omitempty"`
	MinHeight           *int `json:"min_height,omitempty"`

	// Canvas
	CanvasSize  *int `json:"canvas_size,omitempty"`
	ContentSize *int `json:"content_size,omitempty"`
	CropPadding *int `json:"crop_padding,omitempty"`

	// Output
	OutputPrefix *string `json:"output_prefix,omitempty"`
	Workers      *int    `json:"workers,omitempty"`

	// Profiles are named partial overrides applied with WithProfile.
	Profiles map[string]*SliceConfig `json:"profiles,omitempty"`
}

func ptrInt(v int) *int          { return &v }
func ptrString(v string) *string { return &v }

// EmptySliceConfig returns a SliceConfig with all fields nil.
func EmptySliceConfig() *SliceConfig {
	return &SliceConfig{}
}

// DefaultSliceConfig returns a SliceConfig with every field set to its
// built-in default.
func DefaultSliceConfig() *SliceConfig {
	return &SliceConfig{
		ForegroundThreshold: ptrInt(240),
		BackgroundThreshold: ptrInt(236),
		MergeGap:            ptrInt(10),
		MinArea:             ptrInt(700),
		MinWidth:            ptrInt(40),
		MinHeight:           ptrInt(40),
		CanvasSize:          ptrInt(512),
		ContentSize:         ptrInt(440),
		CropPadding:         ptrInt(6),
		OutputPrefix:        ptrString("item_auto"),
		Workers:             ptrInt(1),
	}
}

// LoadSliceConfig loads a SliceConfig from a JSON file.
// The file must have a .json extension and be at most 1MB.
func LoadSliceConfig(path string) (*SliceConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseSliceConfig(data)
}

// ParseSliceConfig decodes and validates a JSON document.
func ParseSliceConfig(data []byte) (*SliceConfig, error) {
	cfg := EmptySliceConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded; intended
// for test setup.
func MustLoadDefaultConfig() *SliceConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/sheet/pipeline/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadSliceConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks every set field, then the combined canvas geometry, then
// each profile as it would apply on top of c.
func (c *SliceConfig) Validate() error {
	if err := c.validateFields(); err != nil {
		return err
	}
	for _, name := range c.ProfileNames() {
		p := c.Profiles[name]
		if p == nil {
			return fmt.Errorf("profile %q is empty", name)
		}
		if len(p.Profiles) > 0 {
			return fmt.Errorf("profile %q must not define nested profiles", name)
		}
		if err := c.merged(p).validateFields(); err != nil {
			return fmt.Errorf("profile %q: %w", name, err)
		}
	}
	return nil
}

func (c *SliceConfig) validateFields() error {
	for _, f := range []struct {
		name string
		v    *int
	}{
		{"foreground_threshold", c.ForegroundThreshold},
		{"background_threshold", c.BackgroundThreshold},
	} {
		if f.v != nil && (*f.v < 0 || *f.v > 255) {
			return fmt.Errorf("%s must be between 0 and 255, got %d", f.name, *f.v)
		}
	}

	if c.MergeGap != nil && *c.MergeGap < 0 {
		return fmt.Errorf("merge_gap must be non-negative, got %d", *c.MergeGap)
	}
	if c.MinArea != nil && *c.MinArea < 1 {
		return fmt.Errorf("min_area must be at least 1, got %d", *c.MinArea)
	}
	if c.MinWidth != nil && *c.MinWidth < 0 {
		return fmt.Errorf("min_width must be non-negative, got %d", *c.MinWidth)
	}
	if c.MinHeight != nil && *c.MinHeight < 0 {
		return fmt.Errorf("min_height must be non-negative, got %d", *c.MinHeight)
	}
	if c.CropPadding != nil && *c.CropPadding < 0 {
		return fmt.Errorf("crop_padding must be non-negative, got %d", *c.CropPadding)
	}
	if c.Workers != nil && (*c.Workers < 1 || *c.Workers > 256) {
		return fmt.Errorf("workers must be between 1 and 256, got %d", *c.Workers)
	}

	if canvas := c.GetCanvasSize(); canvas <= 0 {
		return fmt.Errorf("canvas_size must be positive, got %d", canvas)
	}
	if content, canvas := c.GetContentSize(), c.GetCanvasSize(); content <= 0 || content > canvas {
		return fmt.Errorf("content_size must be in (0, canvas_size=%d], got %d", canvas, content)
	}

	if c.OutputPrefix != nil {
		p := *c.OutputPrefix
		if p == "" {
			return fmt.Errorf("output_prefix must not be empty")
		}
		if strings.ContainsAny(p, `/\`) || p == "." || p == ".." {
			return fmt.Errorf("output_prefix must be a plain file name prefix, got %q", p)
		}
	}
	return nil
}

// ProfileNames returns the profile names in sorted order.
func (c *SliceConfig) ProfileNames() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WithProfile returns a new config with the named profile's set fields
// applied over c. The receiver is not modified and the result carries no
// profiles. An empty name returns a copy of c.
func (c *SliceConfig) WithProfile(name string) (*SliceConfig, error) {
	if name == "" {
		return c.merged(nil), nil
	}
	p, ok := c.Profiles[name]
	if !ok || p == nil {
		return nil, fmt.Errorf("unknown profile %q (available: %s)", name, strings.Join(c.ProfileNames(), ", "))
	}
	out := c.merged(p)
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("profile %q: %w", name, err)
	}
	return out, nil
}

// merged returns a deep copy of c with o's set fields on top and no profiles.
func (c *SliceConfig) merged(o *SliceConfig) *SliceConfig {
	pick := func(base, over *int) *int {
		if over != nil {
			return ptrInt(*over)
		}
		if base != nil {
			return ptrInt(*base)
		}
		return nil
	}
	if o == nil {
		o = EmptySliceConfig()
	}
	out := &SliceConfig{
		ForegroundThreshold: pick(c.ForegroundThreshold, o.ForegroundThreshold),
		BackgroundThreshold: pick(c.BackgroundThreshold, o.BackgroundThreshold),
		MergeGap:            pick(c.MergeGap, o.MergeGap),
		MinArea:             pick(c.MinArea, o.MinArea),
		MinWidth:            pick(c.MinWidth, o.MinWidth),
		MinHeight:           pick(c.MinHeight, o.MinHeight),
		CanvasSize:          pick(c.CanvasSize, o.CanvasSize),
		ContentSize:         pick(c.ContentSize, o.ContentSize),
		CropPadding:         pick(c.CropPadding, o.CropPadding),
		Workers:             pick(c.Workers, o.Workers),
	}
	switch {
	case o.OutputPrefix != nil:
		out.OutputPrefix = ptrString(*o.OutputPrefix)
	case c.OutputPrefix != nil:
		out.OutputPrefix = ptrString(*c.OutputPrefix)
	}
	return out
}

// GetForegroundThreshold returns the foreground_threshold value or the default.
func (c *SliceConfig) GetForegroundThreshold() int {
	if c.ForegroundThreshold == nil {
		return 240
	}
	return *c.ForegroundThreshold
}

// GetBackgroundThreshold returns the background_threshold value or the default.
func (c *SliceConfig) GetBackgroundThreshold() int {
	if c.BackgroundThreshold == nil {
		return 236
	}
	return *c.BackgroundThreshold
}

// GetMergeGap returns the merge_gap value or the default.
func (c *SliceConfig) GetMergeGap() int {
	if c.MergeGap == nil {
		return 10
	}
	return *c.MergeGap
}

// GetMinArea returns the min_area value or the default.
func (c *SliceConfig) GetMinArea() int {
	if c.MinArea == nil {
		return 700
	}
	return *c.MinArea
}

// GetMinWidth returns the min_width value or the default.
func (c *SliceConfig) GetMinWidth() int {
	if c.MinWidth == nil {
		return 40
	}
	return *c.MinWidth
}

// GetMinHeight returns the min_height value or the default.
func (c *SliceConfig) GetMinHeight() int {
	if c.MinHeight == nil {
		return 40
	}
	return *c.MinHeight
}

// GetCanvasSize returns the canvas_size value or the default.
func (c *SliceConfig) GetCanvasSize() int {
	if c.CanvasSize == nil {
		return 512
	}
	return *c.CanvasSize
}

// GetContentSize returns the content_size value or the default.
func (c *SliceConfig) GetContentSize() int {
	if c.ContentSize == nil {
		return 440
	}
	return *c.ContentSize
}

// GetCropPadding returns the crop_padding value or the default.
func (c *SliceConfig) GetCropPadding() int {
	if c.CropPadding == nil {
		return 6
	}
	return *c.CropPadding
}

// GetOutputPrefix returns the output_prefix value or the default.
func (c *SliceConfig) GetOutputPrefix() string {
	if c.OutputPrefix == nil {
		return "item_auto"
	}
	return *c.OutputPrefix
}

// GetWorkers returns the workers value or the default.
func (c *SliceConfig) GetWorkers() int {
	if c.Workers == nil {
		return 1
	}
	return *c.Workers
}
