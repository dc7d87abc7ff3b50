package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"mrireslice/internal/models"
	"mrireslice/pkg/config"
	"mrireslice/pkg/metrics"
	"mrireslice/pkg/projection"
	"mrireslice/pkg/reslice"
	"mrireslice/pkg/visualization"
)

const (
	// Flags.
	flagConfig     = "config"
	flagInput      = "input"
	flagOutput     = "output"
	flagWorkers    = "workers"
	flagSaveSlices = "save-slices"
)

func main() {
	app := &cli.App{
		Name:  "mrireslice",
		Usage: "extract oblique slab reslices and projections from raw MRI volumes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Value:   "mrireslice.yaml",
				Usage:   "load configuration from `FILE`",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "write the default configuration to the config file",
				Action: func(c *cli.Context) error {
					path := c.String(flagConfig)
					if err := config.CreateDefaultConfigFile(path); err != nil {
						return fmt.Errorf("failed to write default config: %w", err)
					}
					fmt.Printf("Default configuration written to %s\n", path)
					return nil
				},
			},
			{
				Name:  "run",
				Usage: "read the input volume and run every configured job",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagInput, Usage: "override the input file `PREFIX`"},
					&cli.StringFlag{Name: flagOutput, Usage: "override the output `DIR`"},
					&cli.IntFlag{Name: flagWorkers, Value: -1, Usage: "workers per job (default: from config)"},
					&cli.BoolFlag{Name: flagSaveSlices, Usage: "save every plane of multi-plane results"},
				},
				Action: runAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runAction(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String(flagConfig))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if prefix := c.String(flagInput); prefix != "" {
		cfg.Input.FilePrefix = prefix
		cfg.Input.FileName = ""
	}
	if dir := c.String(flagOutput); dir != "" {
		cfg.Output.Directory = dir
	}
	if workers := c.Int(flagWorkers); workers >= 0 {
		cfg.Processing.NumWorkers = workers
	}

	logger, err := newLogger(cfg.Output.Verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	startTime := time.Now()
	files, err := run(ctx, cfg, c.Bool(flagSaveSlices), logger)
	if err != nil {
		return err
	}
	logger.Info("all jobs completed",
		zap.Int("jobs", len(cfg.Jobs)),
		zap.Strings("files", files),
		zap.Duration("elapsed", time.Since(startTime)),
	)
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// run loads the input volume once, executes every job against it and writes
// one image per job, plus a montage of the jobs that name a viewport.
// It returns the files written.
func run(ctx context.Context, cfg *config.Config, saveSlices bool, logger *zap.Logger) ([]string, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := os.MkdirAll(cfg.Output.Directory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	// Load the volume
	reader, err := cfg.Input.RawReader()
	if err != nil {
		return nil, err
	}
	reader.NumWorkers = cfg.Processing.NumWorkers
	reader.Logger = logger
	vol, err := reader.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read volume: %w", err)
	}

	var files []string
	var panels []visualization.Panel
	results := make(map[string]jobResult)
	for _, job := range cfg.Jobs {
		jobLogger := logger.With(zap.String("job", job.Name))
		img, axis, err := runJob(ctx, job, vol, cfg.Processing.NumWorkers, jobLogger)
		if err != nil {
			return files, fmt.Errorf("job %q: %w", job.Name, err)
		}

		result := jobResult{image: img, axis: axis}
		results[job.Name] = result
		if ref, ok := results[job.Reference]; ok && job.Reference != "" {
			score, err := compareResults(ref, result)
			if err != nil {
				jobLogger.Warn("comparison skipped", zap.String("reference", job.Reference), zap.Error(err))
			} else {
				jobLogger.Info("compared with reference",
					zap.String("reference", job.Reference),
					zap.Float64("rmse", score.RMSE),
					zap.Float64("maxAbsDiff", score.MaxAbsDiff),
					zap.Float64("ssim", score.SSIM),
					zap.Float64("correlation", score.Correlation),
					zap.Float64("entropyDiff", score.EntropyDiff),
				)
			}
		}

		// Render the first plane across the slab axis
		viewer := visualization.NewViewer(img, visualization.WindowLevel{Window: job.Window, Level: job.Level})
		a := int(axis)
		plane, err := viewer.ExtractSlice(axis.String(), img.Extent[2*a])
		if err != nil {
			return files, fmt.Errorf("job %q: %w", job.Name, err)
		}
		filename := filepath.Join(cfg.Output.Directory, fmt.Sprintf("%s.%s", job.Name, cfg.Output.Format))
		if err := visualization.SaveSlice(plane, filename); err != nil {
			return files, fmt.Errorf("job %q: failed to save image: %w", job.Name, err)
		}
		files = append(files, filename)
		jobLogger.Info("image saved", zap.String("file", filename), zap.Any("windowLevel", viewer.WindowLevel()))

		if saveSlices && img.Extent[2*a+1] > img.Extent[2*a] {
			seq, err := viewer.SaveSliceSequence(axis.String(), filepath.Join(cfg.Output.Directory, job.Name), cfg.Output.Format)
			if err != nil {
				jobLogger.Warn("failed to save slice sequence", zap.Error(err))
			}
			files = append(files, seq...)
		}

		if job.Viewport != nil {
			vp := *job.Viewport
			panels = append(panels, visualization.Panel{
				Image:    plane,
				Viewport: visualization.Viewport{X0: vp[0], Y0: vp[1], X1: vp[2], Y1: vp[3]},
			})
		}
	}

	if size := cfg.Output.MontageSize; len(panels) > 0 && size[0] > 0 && size[1] > 0 {
		montage, err := visualization.Compose(size[0], size[1], panels)
		if err != nil {
			return files, fmt.Errorf("failed to compose montage: %w", err)
		}
		filename := filepath.Join(cfg.Output.Directory, "montage."+cfg.Output.Format)
		if err := visualization.SaveSlice(montage, filename); err != nil {
			return files, fmt.Errorf("failed to save montage: %w", err)
		}
		files = append(files, filename)
		logger.Info("montage saved", zap.String("file", filename), zap.Int("panels", len(panels)))
	}
	return files, nil
}

// jobResult is a job's image and the axis its planes are stacked along
type jobResult struct {
	image *models.Image
	axis  projection.Orientation
}

// compareResults compares the first plane of each result across their
// shared axis
func compareResults(ref, test jobResult) (metrics.Comparison, error) {
	if ref.axis != test.axis {
		return metrics.Comparison{}, fmt.Errorf("planes are stacked along %s and %s", ref.axis, test.axis)
	}
	a := int(test.axis)
	return metrics.ComparePlanes(a, ref.image, ref.image.Extent[2*a], test.image, test.image.Extent[2*a])
}

// runJob executes one job and reports the axis its planes are stacked along
func runJob(ctx context.Context, job config.Job, vol *models.Volume, workers int, logger *zap.Logger) (*models.Image, projection.Orientation, error) {
	switch job.Type {
	case config.JobProjection:
		opts, err := job.ProjectionOptions(workers)
		if err != nil {
			return nil, 0, err
		}
		img, err := projection.Project(ctx, vol, opts, logger)
		return img, opts.Orientation, err
	case config.JobReslice:
		params, err := job.ResliceParams(workers)
		if err != nil {
			return nil, 0, err
		}
		r := reslice.NewReslicer()
		r.SetLogger(logger)
		if err := r.Configure(params); err != nil {
			return nil, 0, err
		}
		r.SetInput(vol)
		img, err := r.ExecuteContext(ctx)
		return img, projection.OrientationZ, err
	}
	return nil, 0, fmt.Errorf("unknown job type %q", job.Type)
}
