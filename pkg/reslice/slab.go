package reslice

import (
	"math"

	"github.com/golang/geo/r3"
)

// Accumulator reduces a stream of weighted samples under one slab mode.
// Values and weights are kept in float64 regardless of the output type.
type Accumulator struct {
	mode   SlabMode
	sum    float64
	weight float64
	best   float64
	count  int
}

// NewAccumulator returns an empty accumulator for mode
func NewAccumulator(mode SlabMode) Accumulator {
	return Accumulator{mode: mode}
}

// Reset empties the accumulator, keeping its mode
func (acc *Accumulator) Reset() {
	acc.sum, acc.weight, acc.best, acc.count = 0, 0, 0, 0
}

// Add folds in one inside sample. Weights only affect Sum and Mean.
func (acc *Accumulator) Add(v, w float64) {
	switch acc.mode {
	case SlabSum, SlabMean:
		if w <= 0 {
			return
		}
		acc.sum += w * v
		acc.weight += w
	case SlabMax:
		if acc.count == 0 || v > acc.best {
			acc.best = v
		}
	case SlabMin:
		if acc.count == 0 || v < acc.best {
			acc.best = v
		}
	}
	acc.count++
}

// Count returns the number of samples folded in
func (acc *Accumulator) Count() int {
	return acc.count
}

// Result returns the reduction, or background when nothing was added
func (acc *Accumulator) Result(background float64) float64 {
	if acc.count == 0 {
		return background
	}
	switch acc.mode {
	case SlabSum:
		return acc.sum
	case SlabMean:
		return acc.sum / acc.weight
	default:
		return acc.best
	}
}

// compositor walks the slab samples of one output pixel
type compositor struct {
	interp     *Interpolator
	mode       SlabMode
	trapezoid  bool
	fraction   float64
	offsets    []float64
	step       r3.Vector
	boxLo      [3]float64
	boxHi      [3]float64
	background float64
}

func newCompositor(interp *Interpolator, slab SlabSpec, step r3.Vector, background float64) *compositor {
	c := &compositor{
		interp:     interp,
		mode:       slab.Mode,
		trapezoid:  slab.TrapezoidIntegration && (slab.Mode == SlabSum || slab.Mode == SlabMean),
		fraction:   slab.SliceSpacingFraction,
		offsets:    make([]float64, slab.NumberOfSlices),
		step:       step,
		background: background,
	}
	centre := 0.5 * float64(slab.NumberOfSlices-1)
	for s := range c.offsets {
		c.offsets[s] = (float64(s) - centre) * slab.SliceSpacingFraction
	}
	for a := 0; a < 3; a++ {
		pad := interp.border
		if interp.lo[a] == interp.hi[a] {
			pad = math.Max(pad, 0.5)
		}
		c.boxLo[a] = float64(interp.lo[a]) - pad
		c.boxHi[a] = float64(interp.hi[a]) + pad
	}
	return c
}

// composite reduces the slab centred on input index position centre
func (c *compositor) composite(centre r3.Vector) float64 {
	acc := NewAccumulator(c.mode)
	if !c.trapezoid {
		for _, off := range c.offsets {
			if v, ok := c.interp.Interpolate(centre.Add(c.step.Mul(off))); ok {
				acc.Add(v, 1)
			}
		}
		return acc.Result(c.background)
	}

	tIn, tOut, hit := c.clip(centre)
	if !hit {
		return c.background
	}
	half := 0.5 * c.fraction
	for _, off := range c.offsets {
		lo := math.Max(off-half, tIn)
		hi := math.Min(off+half, tOut)
		if hi <= lo {
			continue
		}
		// a sample whose centre has left the volume is read at the crossing
		t := math.Min(math.Max(off, tIn), tOut)
		if v, ok := c.interp.Interpolate(centre.Add(c.step.Mul(t))); ok {
			acc.Add(v, (hi-lo)/c.fraction)
		}
	}
	return acc.Result(c.background)
}

// clip intersects the line centre + t*step with the voxel-centre box of the
// input and returns the parameter interval that lies inside it
func (c *compositor) clip(centre r3.Vector) (tIn, tOut float64, hit bool) {
	tIn, tOut = math.Inf(-1), math.Inf(1)
	origin := [3]float64{centre.X, centre.Y, centre.Z}
	dir := [3]float64{c.step.X, c.step.Y, c.step.Z}
	for a := 0; a < 3; a++ {
		if math.Abs(dir[a]) < 1e-12 {
			if origin[a] < c.boxLo[a]-indexTolerance || origin[a] > c.boxHi[a]+indexTolerance {
				return 0, 0, false
			}
			continue
		}
		t1 := (c.boxLo[a] - origin[a]) / dir[a]
		t2 := (c.boxHi[a] - origin[a]) / dir[a]
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tIn = math.Max(tIn, t1)
		tOut = math.Min(tOut, t2)
	}
	if tIn > tOut {
		return 0, 0, false
	}
	return tIn, tOut, true
}
