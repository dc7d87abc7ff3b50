// Package reslice extracts planar or multi-plane images from a 3D volume
// along an arbitrary cutting plane, optionally reducing several parallel
// samples per output pixel into a slab.
//
// The pipeline per execution is fixed: plan the output grid, compose the
// axis transform, then for every output pixel interpolate the slab samples,
// reduce them in float64 and cast once to the output scalar type.
package reslice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"mrireslice/internal/models"
)

// Volume and Image are re-exported so callers outside this module can name them
type (
	Volume = models.Volume
	Image  = models.Image
)

// Reslicer runs configured reslice executions against an input volume.
// A Reslicer is not safe for concurrent reconfiguration, but one configured
// Reslicer may be executed from several goroutines, and many Reslicers may
// share the same input volume.
type Reslicer struct {
	params     Params
	configured bool
	input      *models.Volume
	logger     *zap.Logger
}

// NewReslicer creates a Reslicer holding DefaultParams
func NewReslicer() *Reslicer {
	return &Reslicer{
		params:     DefaultParams(),
		configured: true,
		logger:     zap.NewNop(),
	}
}

// SetLogger replaces the logger; nil restores the no-op logger
func (r *Reslicer) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r.logger = logger
}

// Configure validates p and makes it the active configuration.
// On error the previous configuration stays active.
func (r *Reslicer) Configure(p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r.params = p.clone()
	r.configured = true
	return nil
}

// Params returns a copy of the active configuration
func (r *Reslicer) Params() Params {
	return r.params.clone()
}

// SetInput sets the volume to reslice. The volume is only read.
func (r *Reslicer) SetInput(v *models.Volume) {
	r.input = v
}

// Execute produces a new output image, or an error and no image
func (r *Reslicer) Execute() (*models.Image, error) {
	return r.ExecuteContext(context.Background())
}

// ExecuteContext is Execute with coarse cancellation between output rows
func (r *Reslicer) ExecuteContext(ctx context.Context) (*models.Image, error) {
	if !r.configured {
		return nil, errors.New("reslicer is not configured")
	}
	if r.input == nil {
		return nil, configErrorf("input", "no input volume set")
	}
	if err := r.input.Validate(); err != nil {
		return nil, configErrorf("input", "%v", err)
	}

	p := r.params
	in := r.input
	logger := r.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	axes, err := NewAxes(p.DirectionCosines, p.AxesOrigin)
	if err != nil {
		return nil, err
	}
	grid, err := PlanOutput(&p, axes, in)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	n := grid.NumSamples()
	scalars, ok := models.NewScalars(grid.ScalarType, n)
	if !ok {
		return nil, &UnsupportedScalarTypeError{Type: grid.ScalarType}
	}
	logger.Debug("planned reslice output",
		zap.Ints("extent", grid.Extent[:]),
		zap.Float64s("spacing", grid.Spacing[:]),
		zap.Stringer("scalarType", grid.ScalarType),
		zap.String("buffer", humanize.Bytes(uint64(n*grid.ScalarType.Size()))),
	)

	xform := NewTransform(axes, grid, in)
	interp := NewInterpolator(in, p.Interpolation, p.Boundary, p.Border, p.BackgroundLevel)
	comp := newCompositor(interp, p.Slab, xform.SlabStep(), p.BackgroundLevel)

	dims := grid.Dimensions()
	e := grid.Extent
	err = ParallelFor(ctx, p.NumWorkers, dims[1]*dims[2], func(row int) error {
		j := e[2] + row%dims[1]
		k := e[4] + row/dims[1]
		offset := row * dims[0]
		for i := e[0]; i <= e[1]; i++ {
			centre := xform.OutputToInput(float64(i), float64(j), float64(k))
			Store(scalars, offset+i-e[0], comp.composite(centre))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reslice aborted: %w", err)
	}

	logger.Info("reslice complete",
		zap.Stringer("interpolation", p.Interpolation),
		zap.Stringer("slabMode", p.Slab.Mode),
		zap.Int("slabSlices", p.Slab.NumberOfSlices),
		zap.Int("samples", n),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &models.Image{
		Extent:  grid.Extent,
		Spacing: grid.Spacing,
		Origin:  grid.Origin,
		Scalars: scalars,
	}, nil
}
