package visualization

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// Viewport is a normalized rectangle of the montage, (0,0) at the bottom
// left and (1,1) at the top right.
type Viewport struct {
	X0, Y0, X1, Y1 float64
}

// Valid reports whether the viewport is a non-empty rectangle inside [0,1]²
func (vp Viewport) Valid() bool {
	return 0 <= vp.X0 && vp.X0 < vp.X1 && vp.X1 <= 1 &&
		0 <= vp.Y0 && vp.Y0 < vp.Y1 && vp.Y1 <= 1
}

// Rect converts the viewport to pixel coordinates of a width x height canvas
func (vp Viewport) Rect(width, height int) image.Rectangle {
	x0 := int(vp.X0*float64(width) + 0.5)
	x1 := int(vp.X1*float64(width) + 0.5)
	y0 := int((1-vp.Y1)*float64(height) + 0.5)
	y1 := int((1-vp.Y0)*float64(height) + 0.5)
	return image.Rect(x0, y0, x1, y1)
}

// Panel places one picture into a viewport of a montage
type Panel struct {
	Image    image.Image
	Viewport Viewport
}

// Compose draws every panel scaled into its viewport on a black canvas.
// Later panels are drawn over earlier ones.
func Compose(width, height int, panels []Panel) (*image.Gray, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("montage size must be positive, got %dx%d", width, height)
	}
	canvas := image.NewGray(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	for n, p := range panels {
		if !p.Viewport.Valid() {
			return nil, fmt.Errorf("panel %d: invalid viewport %+v", n, p.Viewport)
		}
		if p.Image == nil {
			continue
		}
		dst := p.Viewport.Rect(width, height)
		if dst.Empty() {
			continue
		}
		draw.BiLinear.Scale(canvas, dst, p.Image, p.Image.Bounds(), draw.Src, nil)
	}
	return canvas, nil
}
