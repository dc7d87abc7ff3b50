package reslice

import (
	"math"

	"github.com/golang/geo/r3"

	"mrireslice/internal/models"
)

// Grid fully describes an output image before any samples are computed
type Grid struct {
	Extent     [6]int
	Spacing    [3]float64
	Origin     [3]float64
	ScalarType models.ScalarType
}

// Dimensions returns the number of output samples along each axis
func (g Grid) Dimensions() [3]int {
	return [3]int{g.Extent[1] - g.Extent[0] + 1, g.Extent[3] - g.Extent[2] + 1, g.Extent[5] - g.Extent[4] + 1}
}

// NumSamples returns the total number of output samples
func (g Grid) NumSamples() int {
	d := g.Dimensions()
	return d[0] * d[1] * d[2]
}

// PlanOutput derives the output grid from the requested parameters and the
// input volume. Fields left nil in p are filled in so that the output covers
// the input's bounds as seen in the reslice frame, centred on them.
func PlanOutput(p *Params, axes *Axes, in *models.Volume) (Grid, error) {
	var g Grid
	if err := p.Validate(); err != nil {
		return g, err
	}

	g.ScalarType = p.OutputScalarType
	if g.ScalarType == models.SameAsInput {
		g.ScalarType = in.ScalarType
	}
	if !SupportedScalarType(g.ScalarType) {
		return g, &UnsupportedScalarTypeError{Type: g.ScalarType}
	}

	lo, hi := frameBounds(axes, in)

	if p.OutputSpacing != nil {
		g.Spacing = *p.OutputSpacing
	} else {
		// input spacing seen along each output axis
		for c := 0; c < 3; c++ {
			col := axes.Column(c)
			g.Spacing[c] = math.Sqrt(sq(col.X*in.Spacing[0]) + sq(col.Y*in.Spacing[1]) + sq(col.Z*in.Spacing[2]))
		}
	}

	if p.OutputExtent != nil {
		g.Extent = *p.OutputExtent
	} else {
		for a := 0; a < 3; a++ {
			g.Extent[2*a] = 0
			g.Extent[2*a+1] = int(math.Floor((hi[a]-lo[a])/g.Spacing[a] + 0.5))
		}
	}

	if p.OutputOrigin != nil {
		g.Origin = *p.OutputOrigin
	} else {
		for a := 0; a < 3; a++ {
			centre := 0.5 * (lo[a] + hi[a])
			mid := 0.5 * float64(g.Extent[2*a]+g.Extent[2*a+1])
			g.Origin[a] = centre - mid*g.Spacing[a]
		}
	}

	if p.OutputDimensionality == 2 {
		g.Extent[5] = g.Extent[4]
		if p.OutputOrigin == nil {
			// the plane passes through the axes origin
			g.Origin[2] = -float64(g.Extent[4]) * g.Spacing[2]
		}
	}
	return g, nil
}

// frameBounds returns the axis-aligned bounds, in the reslice frame, of the
// input's voxel-centre bounding box
func frameBounds(axes *Axes, in *models.Volume) (lo, hi [3]float64) {
	b := in.Bounds()
	for a := 0; a < 3; a++ {
		lo[a], hi[a] = math.Inf(1), math.Inf(-1)
	}
	for corner := 0; corner < 8; corner++ {
		p := r3.Vector{X: b[corner&1], Y: b[2+(corner>>1)&1], Z: b[4+(corner>>2)&1]}
		f := axes.ToFrame(p)
		for a, v := range [3]float64{f.X, f.Y, f.Z} {
			lo[a] = math.Min(lo[a], v)
			hi[a] = math.Max(hi[a], v)
		}
	}
	return lo, hi
}

func sq(x float64) float64 { return x * x }
