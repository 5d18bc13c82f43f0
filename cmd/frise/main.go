// Command frise lays out a poster file and exports it as PNG, PDF, static
// HTML or layout JSON.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/SbTchR/TimelineGenerator/internal/document"
	"github.com/SbTchR/TimelineGenerator/internal/engine"
	"github.com/SbTchR/TimelineGenerator/internal/export"
	"github.com/SbTchR/TimelineGenerator/internal/pagination"
	"github.com/SbTchR/TimelineGenerator/internal/raster"
	"github.com/SbTchR/TimelineGenerator/internal/render"
	"github.com/SbTchR/TimelineGenerator/internal/typeid"
)

const usage = `usage: frise [flags] poster.(json|yaml)

Lays out a poster and exports it. Without an input file, -sample exports
the built-in sample poster.

flags:
`

type options struct {
	output      string
	format      string
	capture     string
	scale       float64
	orientation string
	paper       string
	background  string
	title       string
	chrome      string
	assets      string
	timeout     time.Duration
	sample      bool
	verbose     bool
	input       string
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("frise", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	o := &options{}
	fs.StringVar(&o.output, "o", "", "output file, - for stdout (default: input name with the format extension)")
	fs.StringVar(&o.format, "format", "", "png, pdf, html or json (default: from -o, else png)")
	fs.StringVar(&o.capture, "capture", "raster", "capture backend: raster or chrome")
	fs.Float64Var(&o.scale, "scale", 0, "capture scale (default: the poster's exportScale)")
	fs.StringVar(&o.orientation, "orientation", "", "page orientation: portrait or landscape (default: the poster's)")
	fs.StringVar(&o.paper, "paper", "a4", "paper size: a4, a3 or letter")
	fs.StringVar(&o.background, "background", "", "override the poster background colour")
	fs.StringVar(&o.title, "title", "", "HTML document title")
	fs.StringVar(&o.chrome, "chrome", "", "Chrome binary for -capture chrome")
	fs.StringVar(&o.assets, "assets", "", "directory holding /assets/ images (default: the input directory)")
	fs.DurationVar(&o.timeout, "timeout", 2*time.Minute, "export timeout")
	fs.BoolVar(&o.sample, "sample", false, "export the built-in sample poster")
	fs.BoolVar(&o.verbose, "v", false, "debug logging")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	switch fs.NArg() {
	case 0:
		if !o.sample {
			fs.Usage()
			return nil, errors.New("missing poster file")
		}
	case 1:
		o.input = fs.Arg(0)
	default:
		fs.Usage()
		return nil, errors.New("too many arguments")
	}
	return o, nil
}

func main() {
	godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			slog.Error("frise", "error", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))

	doc, err := readPoster(o)
	if err != nil {
		return err
	}

	format, err := resolveFormat(o.format, o.output)
	if err != nil {
		return err
	}

	paper, err := pagination.PaperByName(o.paper)
	if err != nil {
		return err
	}

	assets := o.assets
	if assets == "" && o.input != "" {
		assets = filepath.Dir(o.input)
	}
	resolve := render.DirResolver(assets, "/assets/")

	opts := engine.Options{Measurer: engine.DefaultMeasurer(), Paper: paper}
	var capturer export.Capturer
	switch o.capture {
	case "raster":
		capturer = raster.New(opts.Measurer, resolve)
	case "chrome":
		capturer = &export.ChromeCapturer{ExecPath: o.chrome, Resolve: resolve, Timeout: o.timeout}
	default:
		return fmt.Errorf("unknown capture backend %q", o.capture)
	}

	req, err := export.NewRequest(typeid.NewExportID(), doc, opts, format)
	if err != nil {
		return err
	}
	if o.scale > 0 {
		req.Scale = o.scale
	}
	if o.orientation != "" {
		orient := pagination.Orientation(o.orientation)
		if orient != pagination.Portrait && orient != pagination.Landscape {
			return fmt.Errorf("orientation must be portrait or landscape, got %q", o.orientation)
		}
		req.Orientation = orient
	}
	req.Background = o.background
	req.Title = o.title

	exporter := export.NewExporter(capturer, paper, resolve)
	if format == export.FormatPDF {
		plan, err := exporter.Plan(req)
		if err != nil {
			return err
		}
		slog.Debug("page plan", "pages", plan.Pages(), "single", plan.SinglePage)
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	out, path, err := openOutput(o, format, stdout)
	if err != nil {
		return err
	}
	start := time.Now()
	if err := exporter.Export(ctx, req, out); err != nil {
		out.Close()
		if path != "" {
			os.Remove(path)
		}
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}

	if path != "" {
		slog.Info("poster exported", "file", path, "format", format, "duration", time.Since(start).Round(time.Millisecond))
	}
	return nil
}

func readPoster(o *options) (*document.Document, error) {
	if o.input == "" {
		return document.NewSampleDocument(), nil
	}
	data, err := os.ReadFile(o.input)
	if err != nil {
		return nil, fmt.Errorf("read poster: %w", err)
	}
	switch strings.ToLower(filepath.Ext(o.input)) {
	case ".yaml", ".yml":
		return document.LoadYAML(data)
	default:
		return document.Load(data)
	}
}

// resolveFormat picks the explicit format, else the output extension,
// else PNG.
func resolveFormat(explicit, output string) (export.Format, error) {
	if explicit != "" {
		return export.ParseFormat(explicit)
	}
	if ext := strings.TrimPrefix(filepath.Ext(output), "."); ext != "" && output != "-" {
		return export.ParseFormat(ext)
	}
	return export.FormatPNG, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func openOutput(o *options, format export.Format, stdout io.Writer) (io.WriteCloser, string, error) {
	path := o.output
	switch {
	case path == "-":
		return nopCloser{stdout}, "", nil
	case path == "" && o.input != "":
		path = strings.TrimSuffix(o.input, filepath.Ext(o.input)) + "." + format.Extension()
		if path == o.input {
			path = strings.TrimSuffix(o.input, filepath.Ext(o.input)) + ".layout." + format.Extension()
		}
	case path == "":
		path = "frise." + format.Extension()
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, "", fmt.Errorf("create output: %w", err)
	}
	return f, path, nil
}
