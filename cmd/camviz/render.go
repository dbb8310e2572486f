package main

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/edaniels/golog"
	"github.com/fogleman/gg"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"github.com/groundplane/camcal/rimage/transform"
)

// ground grid extents, in meters on the Yw=0 plane
const (
	gridMinX = -10.
	gridMaxX = 10.
	gridMinZ = 0.
	gridMaxZ = 20.
)

// appState owns the camera and the measurement selection for one render
// or one tuner session. It is mutated between frames by its owner; wrap
// access in a lock when shared, as the HTTP tuner does.
type appState struct {
	cam        *transform.CameraModel
	background image.Image
	selected   []r2.Point
	logger     golog.Logger
}

func groundGrid() []r3.Vector {
	var points []r3.Vector
	for x := gridMinX; x <= gridMaxX; x++ {
		for z := gridMinZ; z <= gridMaxZ; z++ {
			points = append(points, r3.Vector{X: x, Y: 0, Z: z})
		}
	}
	return points
}

// renderScene draws the projected ground grid, the horizon line, and the
// ground-distance labels of the selected pixels over the background.
func (s *appState) renderScene() image.Image {
	width, height := s.cam.Width, s.cam.Height
	var dc *gg.Context
	if s.background != nil {
		dc = gg.NewContextForImage(imaging.Resize(s.background, width, height, imaging.Lanczos))
	} else {
		dc = gg.NewContext(width, height)
		dc.SetRGB255(70, 70, 70)
		dc.Clear()
	}

	grid := groundGrid()
	projected := s.cam.ProjectWorldToImage(grid)
	dc.SetRGB255(40, 90, 220)
	for i, pt := range projected {
		if pt == transform.OffCameraPoint {
			continue
		}
		if pt.X < 0 || pt.X >= float64(width) || pt.Y < 0 || pt.Y >= float64(height) {
			continue
		}
		dc.DrawCircle(pt.X, pt.Y, 2)
		dc.Fill()
		// label the near row so the scale is readable
		if grid[i].Z == gridMinZ {
			dc.DrawString(fmt.Sprintf("%.0f", grid[i].X), pt.X+3, pt.Y-3)
		}
	}

	if horizonY := s.cam.EstimateVanishmentY(); horizonY >= 0 && horizonY < height {
		dc.SetRGB255(0, 0, 0)
		dc.SetLineWidth(1)
		dc.DrawLine(0, float64(horizonY), float64(width), float64(horizonY))
		dc.Stroke()
	}

	for _, sel := range s.selected {
		dc.SetRGB255(220, 40, 40)
		dc.DrawCircle(sel.X, sel.Y, 5)
		dc.Fill()
		label := "no ground"
		if wp, err := s.cam.ProjectImageToGroundPlane(sel); err == nil {
			label = fmt.Sprintf("%.1f, %.1f[m]", wp.X, wp.Z)
		}
		dc.DrawString(label, sel.X+8, sel.Y-8)
	}

	return dc.Image()
}
