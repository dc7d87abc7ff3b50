package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gonum.org/v1/gonum/stat"

	"mrireslice/internal/models"
)

// WindowLevel maps sample values to 8-bit gray: values at Level-Window/2
// and below are black, values at Level+Window/2 and above are white.
type WindowLevel struct {
	Window float64
	Level  float64
}

// Map returns the gray value for v
func (wl WindowLevel) Map(v float64) uint8 {
	if math.IsNaN(v) {
		return 0
	}
	window := wl.Window
	if window == 0 {
		window = 1
	}
	g := (v - (wl.Level - 0.5*window)) / window * 255
	return uint8(math.Round(math.Max(0, math.Min(255, g))))
}

// AutoWindowLevel picks a window covering the 2nd to 98th percentile of
// values, ignoring NaN
func AutoWindowLevel(values []float64) WindowLevel {
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 {
		return WindowLevel{Window: 1}
	}
	slices.Sort(sorted)
	lo := stat.Quantile(0.02, stat.Empirical, sorted, nil)
	hi := stat.Quantile(0.98, stat.Empirical, sorted, nil)
	window := hi - lo
	if window <= 0 {
		window = 1
	}
	return WindowLevel{Window: window, Level: 0.5 * (lo + hi)}
}

// Viewer renders planes of a resliced image as 8-bit gray pictures.
// Row 0 of a rendered picture is the top of the plane, i.e. the highest
// index along the plane's vertical axis.
type Viewer struct {
	image *models.Image
	wl    WindowLevel
}

// NewViewer creates a viewer; a zero WindowLevel is replaced by one
// computed from the image samples
func NewViewer(img *models.Image, wl WindowLevel) *Viewer {
	if wl == (WindowLevel{}) {
		values := make([]float64, img.Scalars.Len())
		for n := range values {
			values[n] = img.Scalars.At(n)
		}
		wl = AutoWindowLevel(values)
	}
	return &Viewer{image: img, wl: wl}
}

// WindowLevel returns the mapping the viewer uses
func (v *Viewer) WindowLevel() WindowLevel {
	return v.wl
}

// ExtractSlice renders the plane at absolute index position along axis.
// Z planes are shown with x to the right and y up, X planes with y right
// and z up, Y planes with x right and z up.
func (v *Viewer) ExtractSlice(axis string, position int) (*image.Gray, error) {
	e := v.image.Extent
	var a, u, w int // fixed axis, horizontal axis, vertical axis
	switch axis {
	case "x", "X":
		a, u, w = 0, 1, 2
	case "y", "Y":
		a, u, w = 1, 0, 2
	case "z", "Z":
		a, u, w = 2, 0, 1
	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}
	if position < e[2*a] || position > e[2*a+1] {
		return nil, fmt.Errorf("position %d outside extent [%d, %d]", position, e[2*a], e[2*a+1])
	}

	width := e[2*u+1] - e[2*u] + 1
	height := e[2*w+1] - e[2*w] + 1
	img := image.NewGray(image.Rect(0, 0, width, height))
	var idx [3]int
	idx[a] = position
	for y := 0; y < height; y++ {
		idx[w] = e[2*w+1] - y
		for x := 0; x < width; x++ {
			idx[u] = e[2*u] + x
			img.SetGray(x, y, color.Gray{Y: v.wl.Map(v.image.At(idx[0], idx[1], idx[2]))})
		}
	}
	return img, nil
}

// SaveSlice saves a picture as PNG or JPEG depending on the file extension
func SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		err = png.Encode(file, img)
	case ".jpg", ".jpeg":
		err = jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
	default:
		err = fmt.Errorf("unsupported image format: %s", filepath.Ext(filename))
	}
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	return err
}

// SaveSliceSequence renders and saves every plane along axis into outputDir
// as slice_<axis>_<index>.<format>
func (v *Viewer) SaveSliceSequence(axis, outputDir, format string) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, err
	}

	a := strings.Index("xyz", strings.ToLower(axis))
	if a < 0 || len(axis) != 1 {
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}
	if format == "" {
		format = "png"
	}

	e := v.image.Extent
	var files []string
	for pos := e[2*a]; pos <= e[2*a+1]; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return files, err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.%s", strings.ToLower(axis), pos, format))
		if err := SaveSlice(img, filename); err != nil {
			return files, err
		}
		files = append(files, filename)
	}
	return files, nil
}
