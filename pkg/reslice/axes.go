package reslice

import (
	"math"

	"github.com/golang/geo/r3"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"

	"mrireslice/internal/models"
)

const unitTolerance = 1e-6

// Axes is the reslice frame: three direction-cosine columns and an origin,
// all expressed in input physical space.
type Axes struct {
	cols   [3]r3.Vector
	origin r3.Vector
	basis  *mat.Dense // columns are the direction cosines
	inv    *mat.Dense
}

// NewAxes builds the reslice frame from nine cosines (x0,x1,x2, y0,y1,y2,
// z0,z1,z2) and an origin. Zero-length, non-unit and coplanar axes are
// configuration errors; nothing is renormalized.
func NewAxes(cosines [9]float64, origin [3]float64) (*Axes, error) {
	a := &Axes{origin: r3.Vector{X: origin[0], Y: origin[1], Z: origin[2]}}
	names := [3]string{"x", "y", "z"}
	var errs error
	for c := 0; c < 3; c++ {
		v := r3.Vector{X: cosines[3*c], Y: cosines[3*c+1], Z: cosines[3*c+2]}
		n := v.Norm()
		switch {
		case n == 0:
			errs = multierr.Append(errs, configErrorf("DirectionCosines", "%s axis has zero length", names[c]))
		case !(math.Abs(n-1) <= unitTolerance):
			errs = multierr.Append(errs, configErrorf("DirectionCosines", "%s axis has length %g, want 1", names[c], n))
		}
		a.cols[c] = v
	}
	if errs != nil {
		return nil, errs
	}

	a.basis = mat.NewDense(3, 3, nil)
	for c, v := range a.cols {
		a.basis.SetCol(c, []float64{v.X, v.Y, v.Z})
	}
	if math.Abs(mat.Det(a.basis)) < unitTolerance {
		return nil, configErrorf("DirectionCosines", "axes are coplanar")
	}
	a.inv = mat.NewDense(3, 3, nil)
	if err := a.inv.Inverse(a.basis); err != nil {
		return nil, configErrorf("DirectionCosines", "axes cannot be inverted: %v", err)
	}
	return a, nil
}

// Column returns output axis c (0, 1 or 2) in input physical space
func (a *Axes) Column(c int) r3.Vector {
	return a.cols[c]
}

// ToPhysical maps a point in the reslice frame to input physical space
func (a *Axes) ToPhysical(o r3.Vector) r3.Vector {
	return a.origin.Add(a.cols[0].Mul(o.X)).Add(a.cols[1].Mul(o.Y)).Add(a.cols[2].Mul(o.Z))
}

// ToFrame maps a point in input physical space into the reslice frame
func (a *Axes) ToFrame(p r3.Vector) r3.Vector {
	return mulVec(a.inv, p.Sub(a.origin))
}

// Transform is the affine map between output index space and the input
// volume, fixed for one execution.
type Transform struct {
	axes *Axes

	outOrigin  r3.Vector
	outSpacing r3.Vector
	inOrigin   r3.Vector
	inSpacing  r3.Vector

	// output index -> continuous input index: base + i*di + j*dj + k*dk
	base       r3.Vector
	di, dj, dk r3.Vector
	toOutput   *mat.Dense
}

// NewTransform composes the output grid, the reslice axes and the input
// volume's geometry into a single affine map.
func NewTransform(axes *Axes, grid Grid, in *models.Volume) *Transform {
	t := &Transform{
		axes:       axes,
		outOrigin:  vec(grid.Origin),
		outSpacing: vec(grid.Spacing),
		inOrigin:   vec(in.Origin),
		inSpacing:  vec(in.Spacing),
	}

	// M = S_in^-1 * A * S_out
	inScale := mat.NewDiagDense(3, []float64{1 / in.Spacing[0], 1 / in.Spacing[1], 1 / in.Spacing[2]})
	outScale := mat.NewDiagDense(3, grid.Spacing[:])
	var m mat.Dense
	m.Product(inScale, axes.basis, outScale)
	t.di = colVec(&m, 0)
	t.dj = colVec(&m, 1)
	t.dk = colVec(&m, 2)
	t.base = t.PhysicalToInput(axes.ToPhysical(t.outOrigin))

	t.toOutput = mat.NewDense(3, 3, nil)
	if err := t.toOutput.Inverse(&m); err != nil {
		// axes are checked for invertibility and spacings are positive
		panic(err)
	}
	return t
}

// OutputToPhysical maps output index (i,j,k) to input physical space
func (t *Transform) OutputToPhysical(i, j, k float64) r3.Vector {
	o := r3.Vector{
		X: t.outOrigin.X + i*t.outSpacing.X,
		Y: t.outOrigin.Y + j*t.outSpacing.Y,
		Z: t.outOrigin.Z + k*t.outSpacing.Z,
	}
	return t.axes.ToPhysical(o)
}

// PhysicalToInput maps a physical point to continuous input index space
func (t *Transform) PhysicalToInput(p r3.Vector) r3.Vector {
	d := p.Sub(t.inOrigin)
	return r3.Vector{X: d.X / t.inSpacing.X, Y: d.Y / t.inSpacing.Y, Z: d.Z / t.inSpacing.Z}
}

// OutputToInput maps output index (i,j,k) to continuous input index space
func (t *Transform) OutputToInput(i, j, k float64) r3.Vector {
	return t.base.Add(t.di.Mul(i)).Add(t.dj.Mul(j)).Add(t.dk.Mul(k))
}

// InputToOutput maps continuous input index space back to continuous output index space
func (t *Transform) InputToOutput(p r3.Vector) r3.Vector {
	return mulVec(t.toOutput, p.Sub(t.base))
}

// SlabStep is the input-index displacement of one output slice along the slab normal
func (t *Transform) SlabStep() r3.Vector {
	return t.dk
}

func vec(a [3]float64) r3.Vector {
	return r3.Vector{X: a[0], Y: a[1], Z: a[2]}
}

func colVec(m *mat.Dense, c int) r3.Vector {
	return r3.Vector{X: m.At(0, c), Y: m.At(1, c), Z: m.At(2, c)}
}

func mulVec(m *mat.Dense, v r3.Vector) r3.Vector {
	var out mat.VecDense
	out.MulVec(m, mat.NewVecDense(3, []float64{v.X, v.Y, v.Z}))
	return r3.Vector{X: out.AtVec(0), Y: out.AtVec(1), Z: out.AtVec(2)}
}
