package reslice

import (
	"math"
	"testing"

	"mrireslice/internal/models"
)

// createTestVolume creates a float64 volume filled by pattern
func createTestVolume(nx, ny, nz int, pattern func(i, j, k int) float64) *models.Volume {
	vol := models.NewVolume(nx, ny, nz, models.Float64)
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				vol.Set(i, j, k, pattern(i, j, k))
			}
		}
	}
	return vol
}

// pseudoRandom returns a deterministic value in [0, 1000) for a voxel
func pseudoRandom(i, j, k int) float64 {
	h := uint32(i*73856093) ^ uint32(j*19349663) ^ uint32(k*83492791)
	h ^= h >> 13
	h *= 0x5bd1e995
	h ^= h >> 15
	return float64(h % 1000)
}

// runReslice configures a fresh Reslicer with p and executes it against vol
func runReslice(t *testing.T, vol *models.Volume, p Params) *models.Image {
	t.Helper()
	r := NewReslicer()
	if err := r.Configure(p); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	r.SetInput(vol)
	img, err := r.Execute()
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	return img
}

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func float64Params() Params {
	p := DefaultParams()
	p.OutputScalarType = models.Float64
	return p
}
