// Package config provides configuration loading and management for mrireslice.
// It handles loading configuration from YAML files, provides default values
// and converts job descriptions into engine parameters.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"mrireslice/internal/models"
	"mrireslice/pkg/projection"
	"mrireslice/pkg/reslice"
	"mrireslice/pkg/volumeio"
)

// Job types
const (
	JobReslice    = "reslice"
	JobProjection = "projection"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumWorkers bounds the goroutines used per job; 0 uses every CPU
		NumWorkers int `yaml:"numWorkers"`
	} `yaml:"processing"`

	// Input describes the raw volume on disk
	Input InputConfig `yaml:"input"`

	// Jobs are run in order against the same input volume
	Jobs []Job `yaml:"jobs"`

	// Output parameters
	Output struct {
		// Directory receives one image per job plus the montage
		Directory string `yaml:"directory"`

		// Format is the image format, png or jpg
		Format string `yaml:"format"`

		// MontageSize is the pixel size of the composed montage; zero skips it
		MontageSize [2]int `yaml:"montageSize,flow"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// InputConfig mirrors volumeio.RawReader
type InputConfig struct {
	FilePrefix  string     `yaml:"filePrefix,omitempty"`
	FilePattern string     `yaml:"filePattern,omitempty"`
	FileName    string     `yaml:"fileName,omitempty"`
	Extent      [6]int     `yaml:"extent,flow"`
	Spacing     [3]float64 `yaml:"spacing,flow"`
	Origin      [3]float64 `yaml:"origin,flow"`
	ByteOrder   string     `yaml:"byteOrder"`
	ScalarType  string     `yaml:"scalarType"`
	DataMask    uint64     `yaml:"dataMask,omitempty"`
	HeaderSize  int64      `yaml:"headerSize,omitempty"`
}

// SlabConfig mirrors reslice.SlabSpec
type SlabConfig struct {
	Mode            string  `yaml:"mode"`
	Slices          int     `yaml:"slices"`
	Trapezoid       bool    `yaml:"trapezoid,omitempty"`
	MultiSlice      bool    `yaml:"multiSlice,omitempty"`
	SpacingFraction float64 `yaml:"spacingFraction,omitempty"`
}

// Job is one reslice or projection run plus how its result is displayed
type Job struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`

	// reslice settings
	DirectionCosines     *[9]float64 `yaml:"directionCosines,omitempty,flow"`
	AxesOrigin           *[3]float64 `yaml:"axesOrigin,omitempty,flow"`
	OutputSpacing        *[3]float64 `yaml:"outputSpacing,omitempty,flow"`
	OutputOrigin         *[3]float64 `yaml:"outputOrigin,omitempty,flow"`
	OutputExtent         *[6]int     `yaml:"outputExtent,omitempty,flow"`
	OutputDimensionality int         `yaml:"outputDimensionality,omitempty"`
	Interpolation        string      `yaml:"interpolation,omitempty"`
	Boundary             string      `yaml:"boundary,omitempty"`
	Border               float64     `yaml:"border,omitempty"`
	Background           float64     `yaml:"background,omitempty"`

	// projection settings; Slab.Mode, Slab.Trapezoid and Slab.MultiSlice
	// are shared with reslice jobs
	Orientation string  `yaml:"orientation,omitempty"`
	SliceRange  *[2]int `yaml:"sliceRange,omitempty,flow"`

	Slab             SlabConfig `yaml:"slab"`
	OutputScalarType string     `yaml:"outputScalarType,omitempty"`

	// Reference names an earlier job whose first plane this job's first
	// plane is compared against; both must stack planes along the same axis
	Reference string `yaml:"reference,omitempty"`

	// display settings
	Window   float64     `yaml:"window,omitempty"`
	Level    float64     `yaml:"level,omitempty"`
	Viewport *[4]float64 `yaml:"viewport,omitempty,flow"`
}

func headsqReslice(name string, cosines [9]float64, mode string, slices int, interp string) Job {
	return Job{
		Name:                 name,
		Type:                 JobReslice,
		DirectionCosines:     &cosines,
		OutputSpacing:        &[3]float64{3.2, 3.2, 1.5},
		OutputExtent:         &[6]int{0, 63, 0, 63, 0, 0},
		OutputDimensionality: 2,
		Interpolation:        interp,
		Slab:                 SlabConfig{Mode: mode, Slices: slices},
		Window:               2000,
		Level:                1000,
	}
}

// DefaultConfig returns a configuration with default values: the quarter
// resolution head data set, resliced four ways with different slab modes
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default processing parameters
	cfg.Processing.NumWorkers = runtime.NumCPU() // Use all available cores by default

	// Set default input parameters
	cfg.Input = InputConfig{
		FilePrefix:  "data/headsq/quarter",
		FilePattern: volumeio.DefaultFilePattern,
		Extent:      [6]int{0, 63, 0, 63, 1, 93},
		Spacing:     [3]float64{3.2, 3.2, 1.5},
		Origin:      [3]float64{-100.8, -100.8, -70.5},
		ByteOrder:   "little",
		ScalarType:  "uint16",
		DataMask:    0x7fff,
	}

	// Set default jobs
	axial := headsqReslice("axial-mean", [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}, "mean", 45, "linear")
	axial.Slab.Trapezoid = true
	axial.Viewport = &[4]float64{0.5, 0, 1, 0.5}

	coronal := headsqReslice("coronal-sum", [9]float64{1, 0, 0, 0, 0, -1, 0, 1, 0}, "sum", 93, "linear")
	coronal.OutputScalarType = "float32"
	coronal.Window, coronal.Level = 50000, 100000
	coronal.Viewport = &[4]float64{0, 0, 0.5, 0.5}

	sagittalMax := headsqReslice("sagittal-max", [9]float64{0, 1, 0, 0, 0, -1, -1, 0, 0}, "max", 50, "nearest")
	sagittalMax.Viewport = &[4]float64{0.5, 0.5, 1, 1}

	sagittalMin := headsqReslice("sagittal-min", [9]float64{0, 0, 1, 0, 1, 0, -1, 0, 0}, "min", 2, "cubic")
	sagittalMin.Viewport = &[4]float64{0, 0.5, 0.5, 1}

	cfg.Jobs = []Job{axial, coronal, sagittalMax, sagittalMin}

	// Set default output parameters
	cfg.Output.Directory = "output"
	cfg.Output.Format = "png"
	cfg.Output.MontageSize = [2]int{150, 128}
	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// Validate checks every job and the input section, reporting all problems
func (c *Config) Validate() error {
	var errs error
	if _, err := c.Input.RawReader(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("input: %w", err))
	}
	names := make(map[string]bool)
	for n, job := range c.Jobs {
		if names[job.Name] {
			errs = multierr.Append(errs, fmt.Errorf("job %d: duplicate name %q", n, job.Name))
		}
		if job.Reference != "" && (!names[job.Reference] || job.Reference == job.Name) {
			errs = multierr.Append(errs, fmt.Errorf("job %q: reference %q is not an earlier job", job.Name, job.Reference))
		}
		names[job.Name] = true

		var err error
		switch job.Type {
		case JobReslice:
			_, err = job.ResliceParams(c.Processing.NumWorkers)
		case JobProjection:
			_, err = job.ProjectionOptions(c.Processing.NumWorkers)
		default:
			err = fmt.Errorf("unknown job type %q", job.Type)
		}
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("job %q: %w", job.Name, err))
		}
	}
	switch c.Output.Format {
	case "png", "jpg", "jpeg":
	default:
		errs = multierr.Append(errs, fmt.Errorf("output: unsupported format %q", c.Output.Format))
	}
	return errs
}

// RawReader converts the input section into a volume reader
func (in InputConfig) RawReader() (*volumeio.RawReader, error) {
	var errs error
	order, err := volumeio.ParseByteOrder(in.ByteOrder)
	errs = multierr.Append(errs, err)
	typ, err := models.ParseScalarType(in.ScalarType)
	errs = multierr.Append(errs, err)
	if errs != nil {
		return nil, errs
	}

	r := volumeio.NewRawReader(in.FilePrefix, in.Extent)
	if in.FilePattern != "" {
		r.FilePattern = in.FilePattern
	}
	r.FileName = in.FileName
	r.Spacing = in.Spacing
	r.Origin = in.Origin
	r.ByteOrder = order
	r.ScalarType = typ
	r.DataMask = in.DataMask
	r.HeaderSize = in.HeaderSize
	return r, nil
}

// ResliceParams converts a reslice job into validated engine parameters
func (j Job) ResliceParams(workers int) (reslice.Params, error) {
	p := reslice.DefaultParams()
	p.NumWorkers = workers
	if j.DirectionCosines != nil {
		p.DirectionCosines = *j.DirectionCosines
	}
	if j.AxesOrigin != nil {
		p.AxesOrigin = *j.AxesOrigin
	}
	p.OutputSpacing = j.OutputSpacing
	p.OutputOrigin = j.OutputOrigin
	p.OutputExtent = j.OutputExtent
	if j.OutputDimensionality != 0 {
		p.OutputDimensionality = j.OutputDimensionality
	}
	p.Border = j.Border
	p.BackgroundLevel = j.Background

	var errs, err error
	p.Interpolation, err = reslice.ParseInterpolationMode(j.Interpolation)
	errs = multierr.Append(errs, err)
	p.Boundary, err = reslice.ParseBoundaryPolicy(j.Boundary)
	errs = multierr.Append(errs, err)
	p.OutputScalarType, err = models.ParseScalarType(j.OutputScalarType)
	errs = multierr.Append(errs, err)
	p.Slab.Mode, err = reslice.ParseSlabMode(j.Slab.Mode)
	errs = multierr.Append(errs, err)
	if j.Slab.Slices != 0 {
		p.Slab.NumberOfSlices = j.Slab.Slices
	}
	if j.Slab.SpacingFraction != 0 {
		p.Slab.SliceSpacingFraction = j.Slab.SpacingFraction
	}
	p.Slab.TrapezoidIntegration = j.Slab.Trapezoid
	p.Slab.MultiSliceOutput = j.Slab.MultiSlice
	if errs != nil {
		return p, errs
	}
	return p, p.Validate()
}

// ProjectionOptions converts a projection job into validated projector options
func (j Job) ProjectionOptions(workers int) (projection.Options, error) {
	opts := projection.DefaultOptions()
	opts.NumWorkers = workers
	opts.SliceRange = j.SliceRange
	opts.TrapezoidIntegration = j.Slab.Trapezoid
	opts.MultiSliceOutput = j.Slab.MultiSlice

	var errs, err error
	opts.Orientation, err = projection.ParseOrientation(j.Orientation)
	errs = multierr.Append(errs, err)
	opts.Operation, err = reslice.ParseSlabMode(j.Slab.Mode)
	errs = multierr.Append(errs, err)
	opts.OutputScalarType, err = models.ParseScalarType(j.OutputScalarType)
	errs = multierr.Append(errs, err)
	if errs != nil {
		return opts, errs
	}
	return opts, opts.Validate()
}
