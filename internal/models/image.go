package models

// Image is a resliced output: a 2D or 3D grid of typed samples.
// Origin and Spacing are expressed in the reslice frame, so an image
// produced with identity axes shares the input volume's physical space.
type Image struct {
	Extent  [6]int
	Spacing [3]float64
	Origin  [3]float64
	Scalars Scalars
}

// Dimensions returns the number of samples along each axis
func (im *Image) Dimensions() [3]int {
	return extentDimensions(im.Extent)
}

// ScalarType returns the element type of the image samples
func (im *Image) ScalarType() ScalarType {
	return im.Scalars.Type()
}

// Index returns the offset of absolute index (i,j,k) in the sample storage
func (im *Image) Index(i, j, k int) int {
	d := im.Dimensions()
	return ((k-im.Extent[4])*d[1]+(j-im.Extent[2]))*d[0] + (i - im.Extent[0])
}

// At returns the sample at absolute index (i,j,k) widened to float64
func (im *Image) At(i, j, k int) float64 {
	return im.Scalars.At(im.Index(i, j, k))
}

// Plane copies the samples of output plane k, row by row
func (im *Image) Plane(k int) []float64 {
	values, _, _ := im.PlaneAlong(2, k)
	return values
}

// PlaneAlong copies the samples whose index along axis equals k. The
// remaining axes are laid out in increasing order, the lower one varying
// fastest, so a plane along x is indexed by (j, k) and one along y by (i, k).
func (im *Image) PlaneAlong(axis, k int) (values []float64, width, height int) {
	u, w := 0, 1
	switch axis {
	case 0:
		u, w = 1, 2
	case 1:
		u, w = 0, 2
	}
	e := im.Extent
	width = e[2*u+1] - e[2*u] + 1
	height = e[2*w+1] - e[2*w] + 1
	values = make([]float64, 0, width*height)
	var idx [3]int
	idx[axis] = k
	for y := e[2*w]; y <= e[2*w+1]; y++ {
		idx[w] = y
		for x := e[2*u]; x <= e[2*u+1]; x++ {
			idx[u] = x
			values = append(values, im.At(idx[0], idx[1], idx[2]))
		}
	}
	return values, width, height
}
