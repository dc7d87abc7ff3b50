package reslice

import (
	"math"

	"github.com/golang/geo/r3"

	"mrireslice/internal/models"
)

// indexTolerance absorbs rounding in the composed transform so that
// positions meant to land on a voxel centre do so exactly
const indexTolerance = 1e-6

// Interpolator samples a volume at continuous index positions.
// It is read-only and safe for concurrent use.
type Interpolator struct {
	vol        *models.Volume
	mode       InterpolationMode
	policy     BoundaryPolicy
	border     float64
	background float64

	lo, hi [3]int
	stride [3]int
}

// NewInterpolator prepares sampling of vol. Positions passed to Interpolate
// are absolute continuous indices, i.e. the same index space as vol.Extent.
func NewInterpolator(vol *models.Volume, mode InterpolationMode, policy BoundaryPolicy, border, background float64) *Interpolator {
	d := vol.Dimensions()
	ip := &Interpolator{
		vol:        vol,
		mode:       mode,
		policy:     policy,
		border:     border,
		background: background,
		stride:     [3]int{1, d[0], d[0] * d[1]},
	}
	for a := 0; a < 3; a++ {
		ip.lo[a], ip.hi[a] = vol.Extent[2*a], vol.Extent[2*a+1]
	}
	return ip
}

// taps holds the voxel indices and weights along one axis
type taps struct {
	n       int
	idx     [4]int
	weight  [4]float64
	missing [4]bool
}

// Interpolate returns the value at p and whether p is a valid sample.
// The value is the background level when the sample is invalid.
func (ip *Interpolator) Interpolate(p r3.Vector) (float64, bool) {
	pos := [3]float64{p.X, p.Y, p.Z}
	var axes [3]taps
	for a := 0; a < 3; a++ {
		if !ip.axisTaps(a, pos[a], &axes[a]) {
			return ip.background, false
		}
	}

	var sum float64
	for z := 0; z < axes[2].n; z++ {
		for y := 0; y < axes[1].n; y++ {
			wyz := axes[2].weight[z] * axes[1].weight[y]
			if wyz == 0 {
				continue
			}
			for x := 0; x < axes[0].n; x++ {
				w := wyz * axes[0].weight[x]
				if w == 0 {
					continue
				}
				if axes[0].missing[x] || axes[1].missing[y] || axes[2].missing[z] {
					sum += w * ip.background
					continue
				}
				off := (axes[0].idx[x]-ip.lo[0])*ip.stride[0] +
					(axes[1].idx[y]-ip.lo[1])*ip.stride[1] +
					(axes[2].idx[z]-ip.lo[2])*ip.stride[2]
				sum += w * ip.vol.Data[off]
			}
		}
	}
	return sum, true
}

// Inside reports whether p is a valid sample position without interpolating
func (ip *Interpolator) Inside(p r3.Vector) bool {
	var t taps
	for a, v := range [3]float64{p.X, p.Y, p.Z} {
		if !ip.axisTaps(a, v, &t) {
			return false
		}
	}
	return true
}

// axisTaps fills t for position v along axis a and reports validity
func (ip *Interpolator) axisTaps(a int, v float64, t *taps) bool {
	lo, hi := ip.lo[a], ip.hi[a]
	if math.IsNaN(v) {
		return false
	}

	if ip.mode == NearestNeighbor {
		i := int(math.Floor(v + 0.5))
		if i < lo || i > hi {
			return false
		}
		t.n, t.idx[0], t.weight[0], t.missing[0] = 1, i, 1, false
		return true
	}

	margin := ip.border + indexTolerance
	if lo == hi {
		// a single voxel thick axis is sampled as a plane of half-voxel depth
		margin = math.Max(margin, 0.5)
	}
	if v < float64(lo)-margin || v > float64(hi)+margin {
		return false
	}
	if lo == hi {
		t.n, t.idx[0], t.weight[0], t.missing[0] = 1, lo, 1, false
		return true
	}

	if r := math.Round(v); math.Abs(v-r) < indexTolerance {
		v = r
	}
	f := math.Floor(v)
	frac := v - f
	base := int(f)
	if frac == 0 {
		t.n, t.idx[0], t.weight[0] = 1, base, 1
	} else if ip.mode == Linear {
		t.n = 2
		t.idx[0], t.idx[1] = base, base+1
		t.weight[0], t.weight[1] = 1-frac, frac
	} else {
		t.n = 4
		for n := 0; n < 4; n++ {
			t.idx[n] = base - 1 + n
		}
		t.weight = catmullRom(frac)
	}
	return ip.resolve(lo, hi, t)
}

// resolve applies the boundary policy to taps outside [lo, hi]
func (ip *Interpolator) resolve(lo, hi int, t *taps) bool {
	for n := 0; n < t.n; n++ {
		t.missing[n] = false
		i := t.idx[n]
		if i >= lo && i <= hi {
			continue
		}
		switch ip.policy {
		case BoundaryClamp:
			t.idx[n] = min(max(i, lo), hi)
		case BoundaryBackground:
			t.missing[n] = true
		case BoundaryInvalidate:
			if t.weight[n] != 0 {
				return false
			}
			t.missing[n] = true
		}
	}
	return true
}

// catmullRom returns the four cubic convolution weights (a = -0.5) for
// taps at -1, 0, 1, 2 relative to the floor of the position
func catmullRom(f float64) [4]float64 {
	f2 := f * f
	f3 := f2 * f
	return [4]float64{
		-0.5*f3 + f2 - 0.5*f,
		1.5*f3 - 2.5*f2 + 1,
		-1.5*f3 + 2*f2 + 0.5*f,
		0.5*f3 - 0.5*f2,
	}
}
