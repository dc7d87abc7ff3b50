package reslice

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
)

// TestAccumulator verifies each reduction and the empty result
func TestAccumulator(t *testing.T) {
	samples := []struct{ v, w float64 }{{4, 1}, {-2, 0.5}, {10, 1}, {7, 0}}

	testCases := []struct {
		mode     SlabMode
		expected float64
		count    int
	}{
		{SlabSum, 4 - 1 + 10, 3},
		{SlabMean, (4 - 1 + 10) / 2.5, 3},
		{SlabMax, 10, 4},
		{SlabMin, -2, 4},
	}
	for _, tc := range testCases {
		acc := NewAccumulator(tc.mode)
		if got := acc.Result(-99); got != -99 {
			t.Errorf("%v: empty accumulator should give background, got %g", tc.mode, got)
		}
		for _, s := range samples {
			acc.Add(s.v, s.w)
		}
		if got := acc.Result(-99); !almostEqual(got, tc.expected, 1e-12) {
			t.Errorf("%v: expected %g, got %g", tc.mode, tc.expected, got)
		}
		if acc.Count() != tc.count {
			t.Errorf("%v: expected count %d, got %d", tc.mode, tc.count, acc.Count())
		}
		acc.Reset()
		if acc.Count() != 0 || acc.Result(1) != 1 {
			t.Errorf("%v: Reset should empty the accumulator", tc.mode)
		}
	}
}

// TestClipObliqueRays verifies the line/box intersection used for
// trapezoidal weighting, including rays parallel to a face and rays that
// miss the box
func TestClipObliqueRays(t *testing.T) {
	vol := createTestVolume(11, 11, 11, func(i, j, k int) float64 { return 1 })
	ip := NewInterpolator(vol, Linear, BoundaryClamp, 0, 0)
	slab := SlabSpec{Mode: SlabSum, NumberOfSlices: 1, TrapezoidIntegration: true, SliceSpacingFraction: 1}

	diag := r3.Vector{X: 1, Y: 1, Z: 0}.Normalize()
	testCases := []struct {
		name   string
		centre r3.Vector
		step   r3.Vector
		hit    bool
		tIn    float64
		tOut   float64
	}{
		{"axis aligned", r3.Vector{X: 5, Y: 5, Z: 5}, r3.Vector{Z: 1}, true, -5, 5},
		{"reversed step", r3.Vector{X: 5, Y: 5, Z: 2}, r3.Vector{Z: -2}, true, -4, 1},
		{"diagonal", r3.Vector{X: 5, Y: 5, Z: 5}, diag, true, -5 * math.Sqrt2, 5 * math.Sqrt2},
		{"diagonal off centre", r3.Vector{X: 8, Y: 2, Z: 5}, diag, true, -2 * math.Sqrt2, 2 * math.Sqrt2},
		{"parallel outside", r3.Vector{X: 5, Y: 12, Z: 5}, r3.Vector{X: 1}, false, 0, 0},
		{"parallel on face", r3.Vector{X: 5, Y: 10, Z: 5}, r3.Vector{X: 1}, true, -5, 5},
		{"miss", r3.Vector{X: 12, Y: -3, Z: 5}, diag, false, 0, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := newCompositor(ip, slab, tc.step, 0)
			tIn, tOut, hit := c.clip(tc.centre)
			if hit != tc.hit {
				t.Fatalf("expected hit=%v, got %v", tc.hit, hit)
			}
			if hit && (!almostEqual(tIn, tc.tIn, 1e-9) || !almostEqual(tOut, tc.tOut, 1e-9)) {
				t.Errorf("expected [%g, %g], got [%g, %g]", tc.tIn, tc.tOut, tIn, tOut)
			}
		})
	}
}

// TestTrapezoidWeights verifies the fractional weight of a single sample as
// its interval slides out of the volume
func TestTrapezoidWeights(t *testing.T) {
	vol := createTestVolume(3, 3, 5, func(i, j, k int) float64 { return 4 })
	ip := NewInterpolator(vol, Linear, BoundaryClamp, 0, 0)
	slab := SlabSpec{Mode: SlabSum, NumberOfSlices: 1, TrapezoidIntegration: true, SliceSpacingFraction: 1}
	c := newCompositor(ip, slab, r3.Vector{Z: 1}, 0)

	for _, z := range []float64{3.5, 3.6, 3.9, 4.0, 4.2, 4.5, 5} {
		weight := math.Max(0, math.Min(1, 4.5-z))
		got := c.composite(r3.Vector{X: 1, Y: 1, Z: z})
		if !almostEqual(got, 4*weight, 1e-9) {
			t.Errorf("centre z=%g: expected %g, got %g", z, 4*weight, got)
		}
	}
}

// TestTrapezoidHonoursBorder verifies that samples inside the interpolation
// border keep a fractional weight instead of being clipped away
func TestTrapezoidHonoursBorder(t *testing.T) {
	vol := createTestVolume(3, 3, 5, func(i, j, k int) float64 { return 4 })
	ip := NewInterpolator(vol, Linear, BoundaryClamp, 1, 0)
	step := r3.Vector{Z: 1}

	testCases := []struct {
		name      string
		trapezoid bool
		z         float64
		want      float64
	}{
		{"plain inside border", false, 4.75, 4},
		{"trapezoid inside border", true, 4.75, 3},
		{"trapezoid at border edge", true, 5, 2},
		{"plain beyond border", false, 5.5, 0},
		{"trapezoid beyond border", true, 5.5, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			slab := SlabSpec{Mode: SlabSum, NumberOfSlices: 1, TrapezoidIntegration: tc.trapezoid, SliceSpacingFraction: 1}
			c := newCompositor(ip, slab, step, 0)
			got := c.composite(r3.Vector{X: 1, Y: 1, Z: tc.z})
			if !almostEqual(got, tc.want, 1e-9) {
				t.Errorf("centre z=%g: expected %g, got %g", tc.z, tc.want, got)
			}
		})
	}
}
