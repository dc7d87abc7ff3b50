package reslice

import (
	"fmt"
	"runtime"
	"strings"

	"go.uber.org/multierr"

	"mrireslice/internal/models"
)

// InterpolationMode selects how the input volume is sampled
type InterpolationMode int

const (
	NearestNeighbor InterpolationMode = iota
	Linear
	Cubic
)

func (m InterpolationMode) String() string {
	switch m {
	case NearestNeighbor:
		return "nearest"
	case Linear:
		return "linear"
	case Cubic:
		return "cubic"
	}
	return fmt.Sprintf("InterpolationMode(%d)", int(m))
}

// ParseInterpolationMode parses "nearest", "linear" or "cubic"
func ParseInterpolationMode(s string) (InterpolationMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "nearest", "nearestneighbor", "nearest_neighbor":
		return NearestNeighbor, nil
	case "linear", "trilinear":
		return Linear, nil
	case "cubic", "tricubic":
		return Cubic, nil
	}
	return NearestNeighbor, fmt.Errorf("unknown interpolation mode %q", s)
}

// BoundaryPolicy decides what happens when an interpolation kernel reaches
// past the edge of the input extent.
type BoundaryPolicy int

const (
	// BoundaryClamp replicates the nearest edge voxel
	BoundaryClamp BoundaryPolicy = iota
	// BoundaryBackground substitutes the background level for missing voxels
	BoundaryBackground
	// BoundaryInvalidate marks the whole sample invalid
	BoundaryInvalidate
)

func (b BoundaryPolicy) String() string {
	switch b {
	case BoundaryClamp:
		return "clamp"
	case BoundaryBackground:
		return "background"
	case BoundaryInvalidate:
		return "invalidate"
	}
	return fmt.Sprintf("BoundaryPolicy(%d)", int(b))
}

// ParseBoundaryPolicy parses "clamp", "background" or "invalidate"
func ParseBoundaryPolicy(s string) (BoundaryPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "clamp":
		return BoundaryClamp, nil
	case "background":
		return BoundaryBackground, nil
	case "invalidate", "invalid":
		return BoundaryInvalidate, nil
	}
	return BoundaryClamp, fmt.Errorf("unknown boundary policy %q", s)
}

// SlabMode is the reduction applied to the samples of a slab
type SlabMode int

const (
	SlabMean SlabMode = iota
	SlabSum
	SlabMin
	SlabMax
)

func (m SlabMode) String() string {
	switch m {
	case SlabMean:
		return "mean"
	case SlabSum:
		return "sum"
	case SlabMin:
		return "min"
	case SlabMax:
		return "max"
	}
	return fmt.Sprintf("SlabMode(%d)", int(m))
}

// ParseSlabMode parses "mean", "sum", "min" or "max"
func ParseSlabMode(s string) (SlabMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mean":
		return SlabMean, nil
	case "sum":
		return SlabSum, nil
	case "min":
		return SlabMin, nil
	case "max":
		return SlabMax, nil
	}
	return SlabMean, fmt.Errorf("unknown slab mode %q", s)
}

// SlabSpec describes how many parallel samples are reduced per output pixel
type SlabSpec struct {
	Mode           SlabMode
	NumberOfSlices int

	// TrapezoidIntegration weights Sum/Mean samples by the share of their
	// sampling interval that lies inside the volume
	TrapezoidIntegration bool

	// MultiSliceOutput keeps one output plane per slab position.
	// It is equivalent to an output dimensionality of 3.
	MultiSliceOutput bool

	// SliceSpacingFraction scales the distance between slab samples
	// relative to the output's through-plane spacing
	SliceSpacingFraction float64
}

// Params holds everything Configure accepts
type Params struct {
	// DirectionCosines lists the three output axes in input physical
	// space: x0,x1,x2, y0,y1,y2, z0,z1,z2. Each must be unit length.
	DirectionCosines [9]float64

	// AxesOrigin is the physical position of the reslice frame origin
	AxesOrigin [3]float64

	// OutputSpacing, OutputOrigin and OutputExtent are derived from the
	// input when nil
	OutputSpacing *[3]float64
	OutputOrigin  *[3]float64
	OutputExtent  *[6]int

	// OutputDimensionality is 2 (single plane) or 3
	OutputDimensionality int

	OutputScalarType models.ScalarType

	Interpolation InterpolationMode
	Boundary      BoundaryPolicy

	// Border widens the valid region of linear and cubic sampling by this
	// many voxels beyond the outermost voxel centres
	Border float64

	// BackgroundLevel is the value reported where no input data exists
	BackgroundLevel float64

	Slab SlabSpec

	// NumWorkers bounds the number of rows processed concurrently
	NumWorkers int
}

// DefaultParams returns identity axes, a single-slice mean slab, nearest
// neighbour sampling and an output grid derived from the input
func DefaultParams() Params {
	return Params{
		DirectionCosines:     [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1},
		OutputDimensionality: 3,
		OutputScalarType:     models.SameAsInput,
		Interpolation:        NearestNeighbor,
		Boundary:             BoundaryClamp,
		Slab: SlabSpec{
			Mode:                 SlabMean,
			NumberOfSlices:       1,
			SliceSpacingFraction: 1,
		},
		NumWorkers: runtime.NumCPU(),
	}
}

// Validate checks every parameter that can be checked without an input
// volume. All problems are reported together.
func (p *Params) Validate() error {
	var errs error
	if _, err := NewAxes(p.DirectionCosines, p.AxesOrigin); err != nil {
		errs = multierr.Append(errs, err)
	}
	if p.OutputSpacing != nil {
		for a, s := range p.OutputSpacing {
			if !(s > 0) {
				errs = multierr.Append(errs, configErrorf("OutputSpacing", "axis %d spacing must be positive, got %g", a, s))
			}
		}
	}
	if p.OutputExtent != nil {
		for a := 0; a < 3; a++ {
			if p.OutputExtent[2*a+1] < p.OutputExtent[2*a] {
				errs = multierr.Append(errs, configErrorf("OutputExtent", "axis %d upper bound %d is below lower bound %d",
					a, p.OutputExtent[2*a+1], p.OutputExtent[2*a]))
			}
		}
	}
	switch p.OutputDimensionality {
	case 2:
		if p.Slab.MultiSliceOutput {
			errs = multierr.Append(errs, configErrorf("Slab.MultiSliceOutput", "multi-slice output needs dimensionality 3"))
		}
	case 3:
	default:
		errs = multierr.Append(errs, configErrorf("OutputDimensionality", "must be 2 or 3, got %d", p.OutputDimensionality))
	}
	if p.OutputScalarType != models.SameAsInput && !SupportedScalarType(p.OutputScalarType) {
		errs = multierr.Append(errs, &UnsupportedScalarTypeError{Type: p.OutputScalarType})
	}
	switch p.Interpolation {
	case NearestNeighbor, Linear, Cubic:
	default:
		errs = multierr.Append(errs, configErrorf("Interpolation", "unknown mode %v", p.Interpolation))
	}
	switch p.Boundary {
	case BoundaryClamp, BoundaryBackground, BoundaryInvalidate:
	default:
		errs = multierr.Append(errs, configErrorf("Boundary", "unknown policy %v", p.Boundary))
	}
	if p.Border < 0 {
		errs = multierr.Append(errs, configErrorf("Border", "must not be negative, got %g", p.Border))
	}
	switch p.Slab.Mode {
	case SlabMean, SlabSum, SlabMin, SlabMax:
	default:
		errs = multierr.Append(errs, configErrorf("Slab.Mode", "unknown mode %v", p.Slab.Mode))
	}
	if p.Slab.NumberOfSlices < 1 {
		errs = multierr.Append(errs, configErrorf("Slab.NumberOfSlices", "must be at least 1, got %d", p.Slab.NumberOfSlices))
	}
	if !(p.Slab.SliceSpacingFraction > 0) {
		errs = multierr.Append(errs, configErrorf("Slab.SliceSpacingFraction", "must be positive, got %g", p.Slab.SliceSpacingFraction))
	}
	if p.NumWorkers < 0 {
		errs = multierr.Append(errs, configErrorf("NumWorkers", "must not be negative, got %d", p.NumWorkers))
	}
	return errs
}

// clone deep-copies the optional grid fields so callers can reuse their arrays
func (p Params) clone() Params {
	if p.OutputSpacing != nil {
		s := *p.OutputSpacing
		p.OutputSpacing = &s
	}
	if p.OutputOrigin != nil {
		o := *p.OutputOrigin
		p.OutputOrigin = &o
	}
	if p.OutputExtent != nil {
		e := *p.OutputExtent
		p.OutputExtent = &e
	}
	return p
}
