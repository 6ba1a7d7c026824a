// Package export persists normalized assets as {prefix}_{index:02d}.png files.
package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/banshee-data/itemsheet/internal/fsutil"
	"github.com/banshee-data/itemsheet/internal/monitoring"
	"github.com/banshee-data/itemsheet/internal/sheet"
	"github.com/banshee-data/itemsheet/internal/sheet/l1raster"
)

var logf = monitoring.Tagged("export")

// DefaultPerm is the mode of written asset files.
const DefaultPerm os.FileMode = 0o644

// PersistError reports an asset that could not be encoded or written.
type PersistError struct {
	Index int
	Path  string
	Err   error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist asset %d to %s: %v", e.Index, e.Path, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// Writer writes assets into Dir through an injected filesystem and codec.
type Writer struct {
	FS     fsutil.FileSystem
	Codec  l1raster.Codec
	Dir    string
	Prefix string

	// RemoveStale deletes {prefix}_NN.png files in Dir that the current
	// run did not write, such as leftovers from a run with more objects.
	RemoveStale bool
}

// NewWriter returns a Writer on the OS filesystem with the PNG codec.
func NewWriter(dir, prefix string) *Writer {
	return &Writer{FS: fsutil.OSFileSystem{}, Codec: l1raster.PNGCodec{}, Dir: dir, Prefix: prefix}
}

// Report lists the outcome of one Write call. Paths are in asset order.
type Report struct {
	Written []string
	Removed []string
	Failed  []*PersistError

	// ByIndex maps each written asset index to its path.
	ByIndex map[int]string
}

// Write persists every asset. A failure for one asset is recorded in
// Report.Failed and the remaining assets are still written. The returned
// error is non-nil only when the output directory cannot be prepared.
func (w *Writer) Write(assets []sheet.Asset) (*Report, error) {
	if w.Prefix == "" || strings.ContainsAny(w.Prefix, `/\`) {
		return nil, fmt.Errorf("invalid output prefix %q", w.Prefix)
	}
	if err := w.FS.MkdirAll(w.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory %s: %w", w.Dir, err)
	}

	rep := &Report{ByIndex: make(map[int]string, len(assets))}
	written := make(map[string]bool, len(assets))
	paths := Paths(w.Dir, w.Prefix, assets)
	for i, a := range assets {
		path := paths[i]
		if written[path] {
			rep.Failed = append(rep.Failed, &PersistError{Index: a.Index, Path: path, Err: errors.New("duplicate asset index")})
			continue
		}
		if err := w.writeOne(path, a); err != nil {
			pe := &PersistError{Index: a.Index, Path: path, Err: err}
			logf("warning: %v", pe)
			rep.Failed = append(rep.Failed, pe)
			continue
		}
		written[path] = true
		rep.Written = append(rep.Written, path)
		rep.ByIndex[a.Index] = path
	}

	if w.RemoveStale {
		removed, err := w.removeStale(written)
		rep.Removed = removed
		if err != nil {
			logf("warning: stale cleanup in %s: %v", w.Dir, err)
		}
	}
	return rep, nil
}

func (w *Writer) writeOne(path string, a sheet.Asset) error {
	if a.Image == nil {
		return errors.New("asset has no image")
	}
	data, err := w.Codec.Encode(a.Image)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return fsutil.WriteFileAtomic(w.FS, path, data, DefaultPerm)
}

func (w *Writer) removeStale(keep map[string]bool) ([]string, error) {
	matches, err := w.FS.Glob(filepath.Join(w.Dir, "*.png"))
	if err != nil {
		return nil, err
	}
	var removed []string
	var errs []error
	for _, m := range matches {
		if keep[m] || !IsAssetName(filepath.Base(m), w.Prefix) {
			continue
		}
		if err := w.FS.Remove(m); err != nil {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, m)
	}
	return removed, errors.Join(errs...)
}

// IsAssetName reports whether name has the form {prefix}_{digits}.png with
// at least two digits.
func IsAssetName(name, prefix string) bool {
	rest, ok := strings.CutPrefix(name, prefix+"_")
	if !ok {
		return false
	}
	digits, ok := strings.CutSuffix(rest, ".png")
	if !ok || len(digits) < 2 {
		return false
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Paths returns the file names an export of assets would produce.
func Paths(dir, prefix string, assets []sheet.Asset) []string {
	out := make([]string, len(assets))
	for i, a := range assets {
		out[i] = filepath.Join(dir, a.Filename(prefix))
	}
	return out
}
