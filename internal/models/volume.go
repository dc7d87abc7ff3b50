package models

import (
	"fmt"
)

// Volume is a read-only 3D scalar array sampled on a regular grid.
// The engine never mutates a Volume it is handed.
type Volume struct {
	// Extent holds inclusive index ranges (x0,x1, y0,y1, z0,z1).
	// It need not start at zero.
	Extent [6]int

	// Spacing is the physical distance between voxel centres along x, y, z
	Spacing [3]float64

	// Origin is the physical position of index (0,0,0)
	Origin [3]float64

	// ScalarType is the type the samples were stored as before widening
	ScalarType ScalarType

	// Data holds the samples in x-fastest order
	Data []float64
}

// NewVolume creates a zero-filled volume of nx*ny*nz voxels with unit spacing
func NewVolume(nx, ny, nz int, t ScalarType) *Volume {
	return &Volume{
		Extent:     [6]int{0, nx - 1, 0, ny - 1, 0, nz - 1},
		Spacing:    [3]float64{1, 1, 1},
		ScalarType: t,
		Data:       make([]float64, nx*ny*nz),
	}
}

// Dimensions returns the number of voxels along each axis
func (v *Volume) Dimensions() [3]int {
	return extentDimensions(v.Extent)
}

// Index returns the offset into Data of the voxel at absolute index (i,j,k)
func (v *Volume) Index(i, j, k int) int {
	d := v.Dimensions()
	return ((k-v.Extent[4])*d[1]+(j-v.Extent[2]))*d[0] + (i - v.Extent[0])
}

// At returns the sample at absolute index (i,j,k)
func (v *Volume) At(i, j, k int) float64 {
	return v.Data[v.Index(i, j, k)]
}

// Set stores a sample at absolute index (i,j,k)
func (v *Volume) Set(i, j, k int, value float64) {
	v.Data[v.Index(i, j, k)] = value
}

// Bounds returns the physical voxel-centre bounds (xmin,xmax, ymin,ymax, zmin,zmax)
func (v *Volume) Bounds() [6]float64 {
	var b [6]float64
	for a := 0; a < 3; a++ {
		lo := v.Origin[a] + float64(v.Extent[2*a])*v.Spacing[a]
		hi := v.Origin[a] + float64(v.Extent[2*a+1])*v.Spacing[a]
		if hi < lo {
			lo, hi = hi, lo
		}
		b[2*a], b[2*a+1] = lo, hi
	}
	return b
}

// Validate checks that the volume is internally consistent
func (v *Volume) Validate() error {
	for a := 0; a < 3; a++ {
		if v.Extent[2*a+1] < v.Extent[2*a] {
			return fmt.Errorf("volume extent along axis %d is empty: [%d, %d]", a, v.Extent[2*a], v.Extent[2*a+1])
		}
		if !(v.Spacing[a] > 0) {
			return fmt.Errorf("volume spacing along axis %d must be positive, got %g", a, v.Spacing[a])
		}
	}
	d := v.Dimensions()
	if n := d[0] * d[1] * d[2]; len(v.Data) != n {
		return fmt.Errorf("volume holds %d samples, extent needs %d", len(v.Data), n)
	}
	return nil
}

func extentDimensions(e [6]int) [3]int {
	return [3]int{e[1] - e[0] + 1, e[3] - e[2] + 1, e[5] - e[4] + 1}
}
