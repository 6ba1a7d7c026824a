// Package slicer runs one sheet end to end: decode, extract, export, an
// optional quality gate and report, and manifest bookkeeping. It is shared
// by the slice command and the HTTP API.
package slicer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/banshee-data/itemsheet/internal/config"
	"github.com/banshee-data/itemsheet/internal/export"
	"github.com/banshee-data/itemsheet/internal/fsutil"
	"github.com/banshee-data/itemsheet/internal/monitoring"
	"github.com/banshee-data/itemsheet/internal/report"
	"github.com/banshee-data/itemsheet/internal/sheet/l1raster"
	"github.com/banshee-data/itemsheet/internal/sheet/pipeline"
	"github.com/banshee-data/itemsheet/internal/sheet/qualitygate"
	"github.com/banshee-data/itemsheet/internal/sheetdb"
)

var logf = monitoring.Tagged("run")

// Report file names written into Job.ReportDir.
const (
	HistogramFile = "areas.png"
	ChartFile     = "boxes.html"
)

// Job describes one run. Config must already be resolved (profile applied,
// flag overrides set) and valid.
type Job struct {
	Source string
	Data   []byte
	Config *config.SliceConfig

	FS    fsutil.FileSystem
	Codec l1raster.Codec

	// OutDir receives the assets. With PerRunDir set and a DB attached,
	// assets go to OutDir/<run id> instead.
	OutDir      string
	PerRunDir   bool
	RemoveStale bool

	// Gate runs the quality gate over every emitted asset.
	Gate        bool
	GateOptions qualitygate.Options

	// ReportDir, when set, receives the area histogram and box chart.
	ReportDir string

	// DB is optional; without it the run is not recorded.
	DB *sheetdb.DB
}

// Outcome is everything a run produced.
type Outcome struct {
	RunID  string                     `json:"run_id,omitempty"`
	Dir    string                     `json:"dir"`
	Stats  pipeline.Stats             `json:"stats"`
	Files  []string                   `json:"files"`
	Skips  []string                   `json:"skipped,omitempty"`
	Failed []string                   `json:"failed,omitempty"`
	Gates  map[int]qualitygate.Report `json:"gates,omitempty"`

	// EmptyContent counts skipped objects that had nothing left after
	// background removal.
	EmptyContent int `json:"empty_content,omitempty"`

	// ReportErr is set when ReportDir was requested and a report file
	// could not be written.
	ReportErr string `json:"report_error,omitempty"`

	Result *pipeline.Result `json:"-"`
	Export *export.Report   `json:"-"`
}

// GatePassed reports whether every gated asset passed.
func (o *Outcome) GatePassed() bool {
	for _, g := range o.Gates {
		if !g.Passed {
			return false
		}
	}
	return true
}

// Run executes the job. With a DB attached the run row is created first
// and finished with the outcome, including failures.
func Run(ctx context.Context, job Job) (out *Outcome, err error) {
	if job.Config == nil {
		return nil, errors.New("slicer: job has no config")
	}
	if err := job.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if job.FS == nil {
		job.FS = fsutil.OSFileSystem{}
	}
	if job.Codec == nil {
		job.Codec = l1raster.PNGCodec{}
	}
	params := pipeline.ParamsFromConfig(job.Config)
	if err := params.Validate(); err != nil {
		return nil, err
	}
	prefix := job.Config.GetOutputPrefix()

	out = &Outcome{Dir: job.OutDir}
	if job.DB != nil {
		cfgJSON, merr := json.Marshal(job.Config)
		if merr != nil {
			return nil, fmt.Errorf("failed to encode config: %w", merr)
		}
		if out.RunID, err = job.DB.StartRun(job.Source, prefix, cfgJSON); err != nil {
			return nil, err
		}
		if job.PerRunDir {
			out.Dir = filepath.Join(job.OutDir, out.RunID)
		}
		defer func() {
			if ferr := job.DB.FinishRun(out.RunID, out.Stats, err); ferr != nil {
				logf("warning: failed to finish run %s: %v", out.RunID, ferr)
			}
		}()
	}

	grid, err := job.Codec.Decode(job.Data)
	if err != nil {
		return out, fmt.Errorf("decode %s: %w", job.Source, err)
	}
	res, err := pipeline.ExtractObjectsContext(ctx, grid, params)
	if err != nil {
		return out, err
	}
	out.Result, out.Stats = res, res.Stats
	for _, s := range res.Skipped {
		out.Skips = append(out.Skips, s.Error())
		if pipeline.IsEmptyContent(s) {
			out.EmptyContent++
		}
	}

	w := &export.Writer{FS: job.FS, Codec: job.Codec, Dir: out.Dir, Prefix: prefix, RemoveStale: job.RemoveStale}
	rep, err := w.Write(res.Assets)
	if err != nil {
		return out, err
	}
	out.Export, out.Files = rep, rep.Written
	for _, pe := range rep.Failed {
		out.Failed = append(out.Failed, pe.Error())
	}

	if job.Gate {
		out.Gates = gateAssets(res, job.GateOptions)
	}
	if job.ReportDir != "" {
		if err := writeReport(job.FS, job.ReportDir, res); err != nil {
			logf("warning: report: %v", err)
			out.ReportErr = err.Error()
		}
	}
	if job.DB != nil {
		if err := job.DB.RecordResult(out.RunID, res, rep, out.Gates); err != nil {
			return out, err
		}
	}
	return out, nil
}

func gateAssets(res *pipeline.Result, opts qualitygate.Options) map[int]qualitygate.Report {
	gates := make(map[int]qualitygate.Report, len(res.Assets))
	for _, a := range res.Assets {
		g, err := qualitygate.Check(a.Image, opts)
		if err != nil {
			logf("warning: gate asset %d: %v", a.Index, err)
			continue
		}
		if !g.Passed {
			logf("gate failed for asset %d: %v", a.Index, g)
		}
		gates[a.Index] = g
	}
	return gates
}

// writeReport writes the histogram and the chart page. A histogram failure
// does not stop the chart; both errors are returned joined.
func writeReport(fsys fsutil.FileSystem, dir string, res *pipeline.Result) error {
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	var errs []error
	if len(res.Components) > 0 {
		if err := report.WriteAreaHistogram(fsys, filepath.Join(dir, HistogramFile), res.Components); err != nil {
			errs = append(errs, err)
		}
	}
	if err := writeChart(fsys, filepath.Join(dir, ChartFile), res); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func writeChart(fsys fsutil.FileSystem, path string, res *pipeline.Result) (err error) {
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	return report.RenderBoxChart(f, res.Objects, res.Components)
}
