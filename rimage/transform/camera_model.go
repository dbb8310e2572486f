package transform

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/groundplane/camcal/rimage"
	"github.com/groundplane/camcal/spatialmath"
	"github.com/groundplane/camcal/utils"
)

// OffCameraPoint is the image-point sentinel emitted for world points at
// or behind the camera plane.
var OffCameraPoint = r2.Point{X: -1, Y: -1}

// CameraModel is a pinhole camera with a pose in the world.
//
// The projection is s[x, y, 1] = K [R|t] [Mw, 1]. R rotates world
// coordinates into the camera frame and t is stored in the camera frame:
// t = -R*T, where T is the camera position in world coordinates. Any
// mutation of the rotation therefore rederives t so the world position is
// not silently moved.
//
// The coordinate system is right-handed: X+ right, Y+ down, Z+ forward,
// so an object above the camera has negative Yc.
//
// A CameraModel is not safe for concurrent mutation; guard it externally
// when shared between goroutines.
type CameraModel struct {
	*PinholeCameraIntrinsics
	Distortion Distorter

	// rvec is the (pitch, yaw, roll) axis-angle rotation in radians,
	// rebuilt into a matrix via the Rodrigues mapping on every use.
	rvec r3.Vector
	// tvec is the camera-frame translation, t = -R*T.
	tvec r3.Vector
}

// NewCameraModel returns a camera with default parameters: 1280x720, a
// 500px focal length, and zero pose.
func NewCameraModel() *CameraModel {
	cm := &CameraModel{PinholeCameraIntrinsics: &PinholeCameraIntrinsics{}}
	cm.SetIntrinsics(1280, 720, 500.0)
	cm.SetExtrinsic(r3.Vector{}, r3.Vector{}, true)
	return cm
}

// SetIntrinsics rebuilds K from a single isotropic focal length (pixels)
// with the principal point at the image center, overwriting any prior
// intrinsics.
func (cm *CameraModel) SetIntrinsics(width, height int, focalLength float64) {
	*cm.PinholeCameraIntrinsics = PinholeCameraIntrinsics{
		Width:  width,
		Height: height,
		Fx:     focalLength,
		Fy:     focalLength,
		Ppx:    float64(width) / 2,
		Ppy:    float64(height) / 2,
	}
}

// SetDistortion installs a Brown-Conrady lens distortion model from its
// 5 radial/tangential coefficients. An empty slice clears distortion.
func (cm *CameraModel) SetDistortion(parameters []float64) error {
	if len(parameters) == 0 {
		cm.Distortion = nil
		return nil
	}
	bc, err := NewBrownConrady(parameters)
	if err != nil {
		return err
	}
	cm.Distortion = bc
	return nil
}

// SetExtrinsic sets the camera rotation from Euler angles in degrees and
// the translation. If isTOnWorld is true, tvec is the camera position T
// in world coordinates and is converted to the camera frame (t = -R*T);
// otherwise it is taken as already camera-frame.
func (cm *CameraModel) SetExtrinsic(rvecDeg, tvec r3.Vector, isTOnWorld bool) {
	cm.rvec = r3.Vector{
		X: utils.DegToRad(rvecDeg.X),
		Y: utils.DegToRad(rvecDeg.Y),
		Z: utils.DegToRad(rvecDeg.Z),
	}
	if isTOnWorld {
		cm.tvec = mulMatVec(cm.rotationMatrix(), tvec).Mul(-1) // t = -RT
	} else {
		cm.tvec = tvec
	}
}

// Extrinsic returns the rotation in degrees and the camera-frame
// translation.
func (cm *CameraModel) Extrinsic() (rvecDeg, tvec r3.Vector) {
	rvecDeg = r3.Vector{
		X: utils.RadToDeg(cm.rvec.X),
		Y: utils.RadToDeg(cm.rvec.Y),
		Z: utils.RadToDeg(cm.rvec.Z),
	}
	return rvecDeg, cm.tvec
}

// SetCameraPos sets the absolute camera position without touching the
// rotation. A world-frame position is converted via t = -R*T; a
// camera-frame vector is interpreted as Oc - Ow and negated into the
// stored Ow - Oc convention.
func (cm *CameraModel) SetCameraPos(tx, ty, tz float64, isOnWorld bool) {
	pos := r3.Vector{X: tx, Y: ty, Z: tz}
	if isOnWorld {
		cm.tvec = mulMatVec(cm.rotationMatrix(), pos).Mul(-1) // t = -RT
	} else {
		cm.tvec = pos.Mul(-1)
	}
}

// MoveCameraPos adds a delta to the camera position, converting the delta
// by the same frame rule as SetCameraPos before accumulating.
func (cm *CameraModel) MoveCameraPos(dtx, dty, dtz float64, isOnWorld bool) {
	delta := r3.Vector{X: dtx, Y: dty, Z: dtz}
	if isOnWorld {
		delta = mulMatVec(cm.rotationMatrix(), delta).Mul(-1)
	} else {
		delta = delta.Mul(-1)
	}
	cm.tvec = cm.tvec.Add(delta)
}

// SetCameraAngle changes the orientation while preserving the world-frame
// camera position: the position is recovered under the old rotation and
// the translation rederived under the new one.
func (cm *CameraModel) SetCameraAngle(pitchDeg, yawDeg, rollDeg float64) {
	worldPos := cm.WorldPosition()
	cm.rvec = r3.Vector{
		X: utils.DegToRad(pitchDeg),
		Y: utils.DegToRad(yawDeg),
		Z: utils.DegToRad(rollDeg),
	}
	cm.tvec = mulMatVec(cm.rotationMatrix(), worldPos).Mul(-1) // t = -RT
}

// RotateCameraAngle applies an incremental world-frame rotation
// (R_new = R_delta * R_old), preserving the world-frame camera position
// and converting the composed matrix back to rvec via the inverse
// Rodrigues mapping.
func (cm *CameraModel) RotateCameraAngle(dPitchDeg, dYawDeg, dRollDeg float64) {
	worldPos := cm.WorldPosition()
	rDelta := spatialmath.RodriguesToRotationMatrix(r3.Vector{
		X: utils.DegToRad(dPitchDeg),
		Y: utils.DegToRad(dYawDeg),
		Z: utils.DegToRad(dRollDeg),
	})
	var rNew mat.Dense
	rNew.Mul(rDelta, cm.rotationMatrix())
	cm.tvec = mulMatVec(&rNew, worldPos).Mul(-1) // t = -RT
	cm.rvec = spatialmath.RotationMatrixToRodrigues(&rNew)
}

// WorldPosition computes the camera position in world coordinates,
// T = -R^-1 * t.
func (cm *CameraModel) WorldPosition() r3.Vector {
	// the inverse of a rotation matrix is its transpose
	return mulMatVec(cm.rotationMatrix().T(), cm.tvec).Mul(-1)
}

// ProjectWorldToImage projects world points to image pixels. Points with
// camera-frame depth Zc <= 0 are behind the camera and yield the
// (-1, -1) sentinel rather than an error. When a distortion model is
// set, it is applied in normalized coordinates before the intrinsics.
func (cm *CameraModel) ProjectWorldToImage(worldPoints []r3.Vector) []r2.Point {
	rot := cm.rotationMatrix()
	imagePoints := make([]r2.Point, len(worldPoints))
	for i, wp := range worldPoints {
		cp := mulMatVec(rot, wp).Add(cm.tvec) // Mc = [R|t][Mw,1]
		if cp.Z <= 0 {
			imagePoints[i] = OffCameraPoint
			continue
		}
		x := cp.X / cp.Z
		y := cp.Y / cp.Z
		if cm.Distortion != nil {
			x, y = cm.Distortion.Transform(x, y)
		}
		imagePoints[i] = r2.Point{
			X: x*cm.Fx + cm.Ppx,
			Y: y*cm.Fy + cm.Ppy,
		}
	}
	return imagePoints
}

// ProjectWorldToCamera applies the rigid transform Mc = [R|t][Mw,1]
// without the intrinsic or perspective step. No visibility filtering is
// done.
func (cm *CameraModel) ProjectWorldToCamera(worldPoints []r3.Vector) []r3.Vector {
	rot := cm.rotationMatrix()
	cameraPoints := make([]r3.Vector, len(worldPoints))
	for i, wp := range worldPoints {
		cameraPoints[i] = mulMatVec(rot, wp).Add(cm.tvec)
	}
	return cameraPoints
}

// ProjectImageToCamera back-projects a per-pixel depth slice (row-major,
// top-left origin, one Zc per pixel of the configured width x height) to
// camera-frame points. The slice length must equal width*height.
func (cm *CameraModel) ProjectImageToCamera(zs []float64) ([]r3.Vector, error) {
	if len(zs) != cm.Width*cm.Height {
		return nil, errors.Errorf("depth slice length %d does not match intrinsics (%d,%d)",
			len(zs), cm.Width, cm.Height)
	}
	cameraPoints := make([]r3.Vector, len(zs))
	for y := 0; y < cm.Height; y++ {
		for x := 0; x < cm.Width; x++ {
			i := y*cm.Width + x
			px, py, pz := cm.PixelToPoint(float64(x), float64(y), zs[i])
			cameraPoints[i] = r3.Vector{X: px, Y: py, Z: pz}
		}
	}
	return cameraPoints, nil
}

// DepthMapToCameraPoints back-projects a DepthMap through the intrinsics.
// The map dimensions must match the configured intrinsics.
func (cm *CameraModel) DepthMapToCameraPoints(dm *rimage.DepthMap) ([]r3.Vector, error) {
	if dm.Width() != cm.Width || dm.Height() != cm.Height {
		return nil, errors.Errorf("depth map dimensions (%d,%d) don't match intrinsics (%d,%d)",
			dm.Width(), dm.Height(), cm.Width, cm.Height)
	}
	return cm.ProjectImageToCamera(dm.Values())
}

// ProjectImageToGroundPlane intersects the ray through an image pixel
// with the world ground plane (Yw = 0) and returns the world point. It
// errors when the ray does not hit the plane in front of the camera.
func (cm *CameraModel) ProjectImageToGroundPlane(imagePoint r2.Point) (r3.Vector, error) {
	// pixel ray in the camera frame, scaled so Zc == 1
	dir := r3.Vector{
		X: (imagePoint.X - cm.Ppx) / cm.Fx,
		Y: (imagePoint.Y - cm.Ppy) / cm.Fy,
		Z: 1,
	}
	rot := cm.rotationMatrix()
	worldDir := mulMatVec(rot.T(), dir)
	worldPos := cm.WorldPosition()
	if worldDir.Y == 0 {
		return r3.Vector{}, errors.New("pixel ray is parallel to the ground plane")
	}
	// solve Yw(zc) = 0; zc is the camera-frame depth of the hit
	zc := -worldPos.Y / worldDir.Y
	if zc <= 0 {
		return r3.Vector{}, errors.New("ground plane is behind the camera for this pixel")
	}
	return worldPos.Add(worldDir.Mul(zc)), nil
}

// ProjectImageToGroundPlanePoints is the batch form of
// ProjectImageToGroundPlane; pixels whose rays miss the ground plane map
// to ok=false entries.
func (cm *CameraModel) ProjectImageToGroundPlanePoints(imagePoints []r2.Point) ([]r3.Vector, []bool) {
	worldPoints := make([]r3.Vector, len(imagePoints))
	ok := make([]bool, len(imagePoints))
	for i, ip := range imagePoints {
		wp, err := cm.ProjectImageToGroundPlane(ip)
		if err != nil {
			continue
		}
		worldPoints[i] = wp
		ok[i] = true
	}
	return worldPoints, ok
}

// GroundPlaneDepthMap renders the camera-frame depth of the world ground
// plane (Yw = 0) for every pixel of the configured image. Pixels whose
// rays miss the plane are left at zero depth.
func (cm *CameraModel) GroundPlaneDepthMap() *rimage.DepthMap {
	dm := rimage.NewEmptyDepthMap(cm.Width, cm.Height)
	rotT := cm.rotationMatrix().T()
	worldPos := cm.WorldPosition()
	if worldPos.Y == 0 {
		return dm
	}
	for y := 0; y < cm.Height; y++ {
		for x := 0; x < cm.Width; x++ {
			dir := r3.Vector{
				X: (float64(x) - cm.Ppx) / cm.Fx,
				Y: (float64(y) - cm.Ppy) / cm.Fy,
				Z: 1,
			}
			worldDir := mulMatVec(rotT, dir)
			if worldDir.Y == 0 {
				continue
			}
			if zc := -worldPos.Y / worldDir.Y; zc > 0 {
				dm.Set(x, y, zc)
			}
		}
	}
	return dm
}

// EstimateVanishmentY returns the image row of the horizon, i.e. the
// vanishing point of the world forward direction, or -1 when it is
// behind the camera.
func (cm *CameraModel) EstimateVanishmentY() int {
	// camera-frame image of the world Z+ direction is the third column of R
	rot := cm.rotationMatrix()
	dy := rot.At(1, 2)
	dz := rot.At(2, 2)
	if dz <= 0 {
		return -1
	}
	return int(math.Round(cm.Fy*(dy/dz) + cm.Ppy))
}

// DistortionMap is a function that transforms undistorted pixel
// coordinates (u,v) to the distorted pixel (x,y) according to the
// camera's distortion model.
func (cm *CameraModel) DistortionMap() func(u, v float64) (float64, float64) {
	return func(u, v float64) (float64, float64) {
		if cm.Distortion == nil {
			return u, v
		}
		x := (u - cm.Ppx) / cm.Fx
		y := (v - cm.Ppy) / cm.Fy
		x, y = cm.Distortion.Transform(x, y)
		x = x*cm.Fx + cm.Ppx
		y = y*cm.Fy + cm.Ppy
		return x, y
	}
}

func (cm *CameraModel) rotationMatrix() *mat.Dense {
	return spatialmath.RodriguesToRotationMatrix(cm.rvec)
}

func mulMatVec(m mat.Matrix, v r3.Vector) r3.Vector {
	return r3.Vector{
		X: m.At(0, 0)*v.X + m.At(0, 1)*v.Y + m.At(0, 2)*v.Z,
		Y: m.At(1, 0)*v.X + m.At(1, 1)*v.Y + m.At(1, 2)*v.Z,
		Z: m.At(2, 0)*v.X + m.At(2, 1)*v.Y + m.At(2, 2)*v.Z,
	}
}
