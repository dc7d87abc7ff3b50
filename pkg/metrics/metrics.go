// Package metrics compares two images sample by sample, e.g. a slab
// reslice against the equivalent axis-aligned projection.
package metrics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"mrireslice/internal/models"
)

// Comparison holds similarity measures between a reference and a test image.
type Comparison struct {
	// RMSE is the root mean square difference between samples
	RMSE float64

	// MaxAbsDiff is the largest absolute difference of any sample pair
	MaxAbsDiff float64

	// SSIM is the global structural similarity index in [-1, 1], computed
	// with the dynamic range of the reference
	SSIM float64

	// Correlation is the Pearson correlation of the samples; NaN when
	// either image is constant
	Correlation float64

	// EntropyDiff is the absolute difference of the 256-bin Shannon
	// entropies of both images
	EntropyDiff float64
}

// Compare measures test against reference. Both must hold the same number of samples.
func Compare(reference, test []float64) (Comparison, error) {
	var c Comparison
	n := len(reference)
	if n == 0 || n != len(test) {
		return c, fmt.Errorf("cannot compare %d samples with %d samples", n, len(test))
	}

	// Squared and absolute differences
	diff := make([]float64, n)
	floats.SubTo(diff, reference, test)
	c.RMSE = math.Sqrt(floats.Dot(diff, diff) / float64(n))
	c.MaxAbsDiff = math.Max(math.Abs(floats.Max(diff)), math.Abs(floats.Min(diff)))

	c.SSIM = ssim(reference, test)
	c.Correlation = stat.Correlation(reference, test, nil)
	c.EntropyDiff = math.Abs(Entropy(reference) - Entropy(test))
	return c, nil
}

// ComparePlanes compares plane kRef of reference with plane kTest of test,
// both taken across axis (0, 1 or 2)
func ComparePlanes(axis int, reference *models.Image, kRef int, test *models.Image, kTest int) (Comparison, error) {
	if axis < 0 || axis > 2 {
		return Comparison{}, fmt.Errorf("invalid axis %d", axis)
	}
	for _, check := range []struct {
		im *models.Image
		k  int
	}{{reference, kRef}, {test, kTest}} {
		if e := check.im.Extent; check.k < e[2*axis] || check.k > e[2*axis+1] {
			return Comparison{}, fmt.Errorf("plane %d outside extent [%d, %d]", check.k, e[2*axis], e[2*axis+1])
		}
	}
	ref, wr, hr := reference.PlaneAlong(axis, kRef)
	got, wt, ht := test.PlaneAlong(axis, kTest)
	if wr != wt || hr != ht {
		return Comparison{}, fmt.Errorf("plane sizes differ: %dx%d vs %dx%d", wr, hr, wt, ht)
	}
	return Compare(ref, got)
}

func ssim(x, y []float64) float64 {
	const k1, k2 = 0.01, 0.03
	L := floats.Max(x) - floats.Min(x)
	if L == 0 {
		L = 1
	}
	c1 := (k1 * L) * (k1 * L)
	c2 := (k2 * L) * (k2 * L)

	muX, sigmaX := stat.MeanVariance(x, nil)
	muY, sigmaY := stat.MeanVariance(y, nil)
	sigmaXY := stat.Covariance(x, y, nil)

	num := (2*muX*muY + c1) * (2*sigmaXY + c2)
	den := (muX*muX + muY*muY + c1) * (sigmaX + sigmaY + c2)
	return num / den
}

// Entropy is the Shannon entropy in bits of a 256-bin histogram of data.
// Constant data has zero entropy.
func Entropy(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	lo, hi := floats.Min(data), floats.Max(data)
	if hi <= lo {
		return 0
	}

	const numBins = 256
	dividers := make([]float64, numBins+1)
	floats.Span(dividers, lo, hi)
	// stat.Histogram needs the top divider strictly above the maximum
	dividers[numBins] = math.Nextafter(hi, math.Inf(1))

	sorted := append([]float64(nil), data...)
	floats.Argsort(sorted, make([]int, len(sorted)))
	hist := stat.Histogram(nil, dividers, sorted, nil)

	entropy := 0.0
	for _, count := range hist {
		if count > 0 {
			p := count / float64(len(data))
			entropy -= p * math.Log2(p)
		}
	}
	return entropy
}
