// Package projection collapses a range of axis-aligned slices of a volume
// into a single slice (or a stack of running projections) using the same
// reductions as the reslice engine.
package projection

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"mrireslice/internal/models"
	"mrireslice/pkg/reslice"
)

// Orientation is the input axis the projection runs along
type Orientation int

const (
	OrientationX Orientation = iota
	OrientationY
	OrientationZ
)

func (o Orientation) String() string {
	switch o {
	case OrientationX:
		return "x"
	case OrientationY:
		return "y"
	case OrientationZ:
		return "z"
	}
	return fmt.Sprintf("Orientation(%d)", int(o))
}

// ParseOrientation parses "x", "y" or "z" (or the axis number 0, 1, 2)
func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "x", "0":
		return OrientationX, nil
	case "y", "1":
		return OrientationY, nil
	case "", "z", "2":
		return OrientationZ, nil
	}
	return OrientationZ, fmt.Errorf("unknown orientation %q", s)
}

// Options holds the projection parameters.
type Options struct {
	// Orientation is the input axis that is collapsed.
	Orientation Orientation

	// SliceRange is the inclusive range of slices along Orientation to
	// project. Nil projects the whole extent; a range reaching past the
	// extent is clipped to it.
	SliceRange *[2]int

	// Operation is the reduction applied to the slices.
	Operation reslice.SlabMode

	// TrapezoidIntegration gives the first and last slice half weight for
	// Sum and Mean, so the result integrates the volume between the end
	// slice centres rather than summing whole voxels.
	TrapezoidIntegration bool

	// MultiSliceOutput produces one output slice per position of a running
	// window of the range's width, instead of a single slice.
	MultiSliceOutput bool

	// OutputScalarType is the type of the output samples.
	// SameAsInput keeps the input volume's type.
	OutputScalarType models.ScalarType

	// NumWorkers bounds the number of goroutines; 0 uses every CPU.
	NumWorkers int
}

// DefaultOptions returns a mean projection along z over the whole volume
func DefaultOptions() Options {
	return Options{
		Orientation: OrientationZ,
		Operation:   reslice.SlabMean,
		NumWorkers:  runtime.NumCPU(),
	}
}

// Validate reports every invalid option at once
func (o *Options) Validate() error {
	var errs error
	if o.Orientation < OrientationX || o.Orientation > OrientationZ {
		errs = multierr.Append(errs, &reslice.ConfigurationError{
			Field:  "Orientation",
			Reason: fmt.Sprintf("must be x, y or z, got %v", o.Orientation),
		})
	}
	if o.SliceRange != nil && o.SliceRange[1] < o.SliceRange[0] {
		errs = multierr.Append(errs, &reslice.ConfigurationError{
			Field:  "SliceRange",
			Reason: fmt.Sprintf("upper slice %d is below lower slice %d", o.SliceRange[1], o.SliceRange[0]),
		})
	}
	switch o.Operation {
	case reslice.SlabMean, reslice.SlabSum, reslice.SlabMin, reslice.SlabMax:
	default:
		errs = multierr.Append(errs, &reslice.ConfigurationError{
			Field:  "Operation",
			Reason: fmt.Sprintf("unknown operation %v", o.Operation),
		})
	}
	if o.OutputScalarType != models.SameAsInput && !reslice.SupportedScalarType(o.OutputScalarType) {
		errs = multierr.Append(errs, &reslice.UnsupportedScalarTypeError{Type: o.OutputScalarType})
	}
	if o.NumWorkers < 0 {
		errs = multierr.Append(errs, &reslice.ConfigurationError{
			Field:  "NumWorkers",
			Reason: fmt.Sprintf("must not be negative, got %d", o.NumWorkers),
		})
	}
	return errs
}

// Projector runs axis-aligned slab projections.
type Projector struct {
	opts   Options
	logger *zap.Logger
}

// NewProjector validates opts and returns a Projector using them
func NewProjector(opts Options, logger *zap.Logger) (*Projector, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.SliceRange != nil {
		r := *opts.SliceRange
		opts.SliceRange = &r
	}
	return &Projector{opts: opts, logger: logger}, nil
}

// Execute projects in and returns a new image laid out like the input, with
// the projected axis collapsed to one slice (or shortened by the range width
// minus one for multi-slice output). The origin along the projected axis is
// moved to the centre of the projected range.
func (p *Projector) Execute(ctx context.Context, in *models.Volume) (*models.Image, error) {
	if in == nil {
		return nil, &reslice.ConfigurationError{Field: "input", Reason: "no input volume set"}
	}
	if err := in.Validate(); err != nil {
		return nil, &reslice.ConfigurationError{Field: "input", Reason: err.Error()}
	}

	axis := int(p.opts.Orientation)
	lo, hi := in.Extent[2*axis], in.Extent[2*axis+1]
	if r := p.opts.SliceRange; r != nil {
		lo, hi = max(r[0], lo), min(r[1], hi)
		if hi < lo {
			return nil, &reslice.ConfigurationError{
				Field:  "SliceRange",
				Reason: fmt.Sprintf("[%d, %d] does not overlap the input extent", r[0], r[1]),
			}
		}
	}
	width := hi - lo

	outType := p.opts.OutputScalarType
	if outType == models.SameAsInput {
		outType = in.ScalarType
	}
	if !reslice.SupportedScalarType(outType) {
		return nil, &reslice.UnsupportedScalarTypeError{Type: outType}
	}

	ext := in.Extent
	ext[2*axis] = lo
	ext[2*axis+1] = lo
	if p.opts.MultiSliceOutput {
		ext[2*axis+1] = in.Extent[2*axis+1] - width
	}
	origin := in.Origin
	origin[axis] += 0.5 * float64(width) * in.Spacing[axis]

	dims := [3]int{ext[1] - ext[0] + 1, ext[3] - ext[2] + 1, ext[5] - ext[4] + 1}
	n := dims[0] * dims[1] * dims[2]
	scalars, ok := models.NewScalars(outType, n)
	if !ok {
		return nil, &reslice.UnsupportedScalarTypeError{Type: outType}
	}

	weights := make([]float64, width+1)
	for s := range weights {
		weights[s] = 1
	}
	trapezoid := p.opts.TrapezoidIntegration && width > 0 &&
		(p.opts.Operation == reslice.SlabSum || p.opts.Operation == reslice.SlabMean)
	if trapezoid {
		weights[0], weights[width] = 0.5, 0.5
	}

	p.logger.Debug("projecting volume",
		zap.Stringer("orientation", p.opts.Orientation),
		zap.Ints("sliceRange", []int{lo, hi}),
		zap.Stringer("operation", p.opts.Operation),
		zap.Bool("trapezoid", trapezoid),
		zap.Ints("outputExtent", ext[:]),
	)

	start := time.Now()
	var step [3]int
	step[axis] = 1
	err := reslice.ParallelFor(ctx, p.opts.NumWorkers, dims[1]*dims[2], func(row int) error {
		j := ext[2] + row%dims[1]
		k := ext[4] + row/dims[1]
		offset := row * dims[0]
		acc := reslice.NewAccumulator(p.opts.Operation)
		for i := ext[0]; i <= ext[1]; i++ {
			acc.Reset()
			for s, w := range weights {
				acc.Add(in.At(i+s*step[0], j+s*step[1], k+s*step[2]), w)
			}
			reslice.Store(scalars, offset+i-ext[0], acc.Result(0))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("projection aborted: %w", err)
	}

	p.logger.Info("projection complete",
		zap.Stringer("orientation", p.opts.Orientation),
		zap.Int("slices", width+1),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &models.Image{Extent: ext, Spacing: in.Spacing, Origin: origin, Scalars: scalars}, nil
}

// Project is a convenience wrapper around NewProjector and Execute
func Project(ctx context.Context, in *models.Volume, opts Options, logger *zap.Logger) (*models.Image, error) {
	p, err := NewProjector(opts, logger)
	if err != nil {
		return nil, err
	}
	return p.Execute(ctx, in)
}
