// Command slice cuts a composite item sheet into fixed-size transparent
// PNG assets.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/banshee-data/itemsheet/internal/config"
	"github.com/banshee-data/itemsheet/internal/fsutil"
	"github.com/banshee-data/itemsheet/internal/sheet/qualitygate"
	"github.com/banshee-data/itemsheet/internal/sheetdb"
	"github.com/banshee-data/itemsheet/internal/slicer"
	"github.com/banshee-data/itemsheet/internal/version"
)

// options holds the parsed command line.
type options struct {
	input   string
	out     string
	prefix  string
	config  string
	profile string
	db      string
	report  string
	gate    bool
	clean   bool
	version bool

	minArea, minW, minH, workers int

	// set records which flags were given explicitly.
	set map[string]bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	o := &options{set: map[string]bool{}}
	fs := flag.NewFlagSet("slice", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.input, "input", "", "Path to the sheet image (required)")
	fs.StringVar(&o.out, "out", "out", "Output directory for the assets")
	fs.StringVar(&o.prefix, "prefix", "", "Asset file prefix (overrides config)")
	fs.StringVar(&o.config, "config", "", "Path to a slice config JSON file (default: built-in defaults)")
	fs.StringVar(&o.profile, "profile", "", "Named threshold profile from the config")
	fs.IntVar(&o.minArea, "min-area", 0, "Minimum component area in pixels (overrides config)")
	fs.IntVar(&o.minW, "min-w", 0, "Minimum object width (overrides config)")
	fs.IntVar(&o.minH, "min-h", 0, "Minimum object height (overrides config)")
	fs.IntVar(&o.workers, "workers", 0, "Per-object worker count (overrides config)")
	fs.StringVar(&o.db, "db", "", "Record the run in this sqlite manifest")
	fs.StringVar(&o.report, "report", "", "Write an area histogram and box chart to this directory")
	fs.BoolVar(&o.gate, "gate", false, "Run the quality gate on every asset")
	fs.BoolVar(&o.clean, "clean", false, "Remove stale assets with the same prefix from the output directory")
	fs.BoolVar(&o.version, "version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if !o.version && o.input == "" {
		return nil, errors.New("-input is required")
	}
	return o, nil
}

// resolveConfig loads the config, applies the profile and then the flag
// overrides, and validates the result.
func (o *options) resolveConfig() (*config.SliceConfig, error) {
	base := config.DefaultSliceConfig()
	if o.config != "" {
		loaded, err := config.LoadSliceConfig(o.config)
		if err != nil {
			return nil, err
		}
		base = loaded
	}
	cfg, err := base.WithProfile(o.profile)
	if err != nil {
		return nil, err
	}

	overrideInt := func(name string, v int, dst **int) {
		if o.set[name] {
			*dst = &v
		}
	}
	overrideInt("min-area", o.minArea, &cfg.MinArea)
	overrideInt("min-w", o.minW, &cfg.MinWidth)
	overrideInt("min-h", o.minH, &cfg.MinHeight)
	overrideInt("workers", o.workers, &cfg.Workers)
	if o.set["prefix"] {
		prefix := o.prefix
		cfg.OutputPrefix = &prefix
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, fsys fsutil.FileSystem) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if o.version {
		fmt.Fprintln(stdout, version.String("slice"))
		return nil
	}
	cfg, err := o.resolveConfig()
	if err != nil {
		return err
	}
	info, err := fsys.Stat(o.input)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("failed to read input: %s is a directory", o.input)
	}
	data, err := fsys.ReadFile(o.input)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	job := slicer.Job{
		Source:      o.input,
		Data:        data,
		Config:      cfg,
		FS:          fsys,
		OutDir:      o.out,
		RemoveStale: o.clean,
		Gate:        o.gate,
		GateOptions: qualitygate.DefaultOptions(),
		ReportDir:   o.report,
	}
	if o.db != "" {
		db, err := sheetdb.Open(o.db)
		if err != nil {
			return err
		}
		defer db.Close()
		job.DB = db
	}

	out, err := slicer.Run(ctx, job)
	if err != nil {
		return err
	}

	s := out.Stats
	fmt.Fprintf(stdout, "exported %d objects to %s\n", len(out.Files), out.Dir)
	fmt.Fprintf(stdout, "detected=%d merged=%d filtered=%d skipped=%d emitted=%d\n",
		s.Detected, s.Merged, s.Filtered, s.Skipped, s.Emitted)
	if s.Skipped > 0 {
		fmt.Fprintf(stdout, "skipped %d objects (%d empty after background removal)\n", s.Skipped, out.EmptyContent)
	}
	for _, f := range out.Failed {
		fmt.Fprintf(stdout, "failed: %s\n", f)
	}
	if out.RunID != "" {
		fmt.Fprintf(stdout, "run %s recorded in %s\n", out.RunID, job.DB.Path())
	}
	if o.gate {
		if err := reportGates(stdout, out); err != nil {
			return err
		}
	}
	if out.ReportErr != "" {
		return fmt.Errorf("report to %s failed: %s", o.report, out.ReportErr)
	}
	return nil
}

func reportGates(w io.Writer, out *slicer.Outcome) error {
	indices := make([]int, 0, len(out.Gates))
	for i := range out.Gates {
		indices = append(indices, i)
	}
	sort.Ints(indices)

	failed := 0
	for _, i := range indices {
		g := out.Gates[i]
		status := "ok"
		if !g.Passed {
			status = "FAIL"
			failed++
		}
		fmt.Fprintf(w, "gate %02d %s %v\n", i, status, g)
	}
	if failed > 0 {
		return fmt.Errorf("quality gate failed for %d of %d assets", failed, len(indices))
	}
	return nil
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr, fsutil.OSFileSystem{})
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("slice: %v", err)
	}
}
