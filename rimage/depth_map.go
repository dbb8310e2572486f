// Package rimage defines the image-plane data carriers consumed by the
// camera transforms, most importantly the per-pixel depth map.
package rimage

import (
	"image"
	"image/color"
	"math"

	"github.com/pkg/errors"
)

// DepthMap is a row-major, top-left-origin buffer of per-pixel depth
// values, in the same units as the world coordinates (typically meters).
type DepthMap struct {
	width  int
	height int
	data   []float64
}

// NewEmptyDepthMap returns an unset depth map of the given dimensions.
func NewEmptyDepthMap(width, height int) *DepthMap {
	return &DepthMap{
		width:  width,
		height: height,
		data:   make([]float64, width*height),
	}
}

// NewDepthMapFromSlice wraps a row-major depth slice. The slice length
// must equal width*height.
func NewDepthMapFromSlice(width, height int, data []float64) (*DepthMap, error) {
	if len(data) != width*height {
		return nil, errors.Errorf("depth slice length %d does not match dimensions (%d,%d)",
			len(data), width, height)
	}
	return &DepthMap{width: width, height: height, data: data}, nil
}

// Width returns the width of the depth map.
func (dm *DepthMap) Width() int {
	return dm.width
}

// Height returns the height of the depth map.
func (dm *DepthMap) Height() int {
	return dm.height
}

// HasData returns whether the depth map has any nonzero depth.
func (dm *DepthMap) HasData() bool {
	for _, d := range dm.data {
		if d != 0 {
			return true
		}
	}
	return false
}

// GetDepth returns the depth at a given (x, y) coordinate.
func (dm *DepthMap) GetDepth(x, y int) float64 {
	return dm.data[y*dm.width+x]
}

// Set sets the depth at a given (x, y) coordinate.
func (dm *DepthMap) Set(x, y int, val float64) {
	dm.data[y*dm.width+x] = val
}

// Values returns the underlying row-major depth slice.
func (dm *DepthMap) Values() []float64 {
	return dm.data
}

// MinMax returns the minimum and maximum depth in the map.
func (dm *DepthMap) MinMax() (float64, float64) {
	min, max := math.Inf(1), math.Inf(-1)
	for _, d := range dm.data {
		if d < min {
			min = d
		}
		if d > max {
			max = d
		}
	}
	return min, max
}

// ToPrettyPicture renders the depth map as a grayscale image for
// visualization, near depths bright and far depths dark. hardMin and
// hardMax clamp the displayed range; pass equal values to use the data's
// own min/max.
func (dm *DepthMap) ToPrettyPicture(hardMin, hardMax float64) image.Image {
	min, max := dm.MinMax()
	if hardMax > hardMin {
		min = math.Max(min, hardMin)
		max = math.Min(max, hardMax)
	}
	span := max - min
	img := image.NewGray16(image.Rect(0, 0, dm.width, dm.height))
	for y := 0; y < dm.height; y++ {
		for x := 0; x < dm.width; x++ {
			d := dm.GetDepth(x, y)
			if d <= 0 || span <= 0 {
				continue
			}
			clamped := math.Min(math.Max(d, min), max)
			scale := 1 - (clamped-min)/span
			img.SetGray16(x, y, color.Gray16{Y: uint16(math.Round(scale * float64(math.MaxUint16)))})
		}
	}
	return img
}
