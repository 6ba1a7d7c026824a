// Package report summarizes and charts the objects found on a sheet.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/itemsheet/internal/fsutil"
	"github.com/banshee-data/itemsheet/internal/sheet"
)

// ErrNoData is returned when there is nothing to chart.
var ErrNoData = errors.New("report: no boxes")

// AreaSummary describes the pixel areas of a set of boxes.
type AreaSummary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Summarize computes area statistics. StdDev is the sample standard
// deviation and is zero for fewer than two boxes.
func Summarize(boxes []sheet.Box) AreaSummary {
	if len(boxes) == 0 {
		return AreaSummary{}
	}
	areas := areaValues(boxes)
	slices.Sort(areas)

	s := AreaSummary{
		Count:  len(areas),
		Mean:   stat.Mean(areas, nil),
		Median: stat.Quantile(0.5, stat.Empirical, areas, nil),
		Min:    areas[0],
		Max:    areas[len(areas)-1],
	}
	if len(areas) > 1 {
		s.StdDev = stat.StdDev(areas, nil)
	}
	return s
}

func (s AreaSummary) String() string {
	return fmt.Sprintf("n=%d mean=%.1f sd=%.1f median=%.1f range=[%.0f, %.0f]",
		s.Count, s.Mean, s.StdDev, s.Median, s.Min, s.Max)
}

func areaValues(boxes []sheet.Box) []float64 {
	out := make([]float64, len(boxes))
	for i, b := range boxes {
		out[i] = float64(b.Area)
	}
	return out
}

// AreaHistogram builds a histogram of box areas with the given number of
// bins. bins <= 0 uses DefaultBins(len(boxes)).
func AreaHistogram(title string, boxes []sheet.Box, bins int) (*plot.Plot, error) {
	if len(boxes) == 0 {
		return nil, ErrNoData
	}
	h, err := areaHist(boxes, bins)
	if err != nil {
		return nil, err
	}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s (%s)", title, Summarize(boxes))
	p.X.Label.Text = "area (px)"
	p.Y.Label.Text = "count"
	p.Add(h)
	return p, nil
}

func areaHist(boxes []sheet.Box, bins int) (*plotter.Histogram, error) {
	if bins <= 0 {
		bins = DefaultBins(len(boxes))
	}
	h, err := plotter.NewHist(plotter.Values(areaValues(boxes)), bins)
	if err != nil {
		return nil, fmt.Errorf("failed to build histogram: %w", err)
	}
	return h, nil
}

// DefaultBins is the square-root bin count for n values, at least 1.
func DefaultBins(n int) int {
	return max(1, int(math.Ceil(math.Sqrt(float64(n)))))
}

// WriteAreaHistogram renders the area histogram as a PNG through fsys.
func WriteAreaHistogram(fsys fsutil.FileSystem, path string, boxes []sheet.Box) error {
	p, err := AreaHistogram("Component areas", boxes, 0)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(8*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("failed to render histogram: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return fmt.Errorf("failed to encode histogram: %w", err)
	}
	return fsutil.WriteFileAtomic(fsys, path, buf.Bytes(), 0o644)
}

// BoxChart returns a bar chart of width and height per ordered object.
func BoxChart(title string, objects []sheet.ObjectRecord) *charts.Bar {
	x := make([]string, len(objects))
	widths := make([]opts.BarData, len(objects))
	heights := make([]opts.BarData, len(objects))
	for i, o := range objects {
		x[i] = fmt.Sprintf("#%02d", o.Index)
		widths[i] = opts.BarData{Value: o.Box.Width()}
		heights[i] = opts.BarData{Value: o.Box.Height()}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("objects=%d", len(objects))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("width", widths).
		AddSeries("height", heights)
	return bar
}

// PlacementChart returns a scatter of box centres in sheet coordinates, with
// the symbol value carrying the pixel area.
func PlacementChart(title string, boxes []sheet.Box) *charts.Scatter {
	data := make([]opts.ScatterData, len(boxes))
	for i, b := range boxes {
		cx := float64(b.X1+b.X2) / 2
		cy := float64(b.Y1+b.Y2) / 2
		data[i] = opts.ScatterData{Value: []interface{}{cx, cy, b.Area}}
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "900px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: Summarize(boxes).String()}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "x (px)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "y (px)", NameLocation: "middle", NameGap: 30}),
	)
	scatter.AddSeries("components", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))
	return scatter
}

// RenderBoxChart writes an HTML page with the box size chart for objects
// and the placement of the raw components.
func RenderBoxChart(w io.Writer, objects []sheet.ObjectRecord, components []sheet.Box) error {
	page := newPage()
	page.AddCharts(BoxChart("Object sizes", objects), PlacementChart("Component placement", components))

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return fmt.Errorf("render error: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func newPage() *components.Page {
	page := components.NewPage()
	page.PageTitle = "Item sheet report"
	return page
}
