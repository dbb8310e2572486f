package transform

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

// synthesize a calibration config by projecting known ground points
// through a known pose.
func syntheticCalibration(t *testing.T, truth *CameraModel) *ExtrinsicCalibrationConfig {
	t.Helper()
	var worldPoints []r3.Vector
	for x := -6.; x <= 6; x += 3 {
		for z := 4.; z <= 24; z += 4 {
			worldPoints = append(worldPoints, r3.Vector{X: x, Y: 0, Z: z})
		}
	}
	imagePoints := truth.ProjectWorldToImage(worldPoints)
	for _, ip := range imagePoints {
		test.That(t, ip, test.ShouldNotResemble, OffCameraPoint)
	}
	return &ExtrinsicCalibrationConfig{
		ImagePoints: imagePoints,
		WorldPoints: worldPoints,
		Intrinsics:  truth.PinholeCameraIntrinsics,
	}
}

func TestCalibrationConfigCheckValid(t *testing.T) {
	truth := NewCameraModel()
	truth.SetExtrinsic(r3.Vector{X: 12}, r3.Vector{X: 0, Y: -1.5, Z: 0}, true)
	conf := syntheticCalibration(t, truth)
	test.That(t, conf.CheckValid(), test.ShouldBeNil)

	var nilConf *ExtrinsicCalibrationConfig
	test.That(t, nilConf.CheckValid(), test.ShouldNotBeNil)

	short := *conf
	short.WorldPoints = short.WorldPoints[:len(short.WorldPoints)-1]
	test.That(t, short.CheckValid(), test.ShouldNotBeNil)

	tiny := *conf
	tiny.ImagePoints = tiny.ImagePoints[:2]
	tiny.WorldPoints = tiny.WorldPoints[:2]
	test.That(t, tiny.CheckValid(), test.ShouldNotBeNil)
}

func TestFitExtrinsic(t *testing.T) {
	logger := golog.NewTestLogger(t)

	truth := NewCameraModel()
	truth.SetExtrinsic(r3.Vector{X: 12}, r3.Vector{X: 0, Y: -1.5, Z: 0}, true)
	conf := syntheticCalibration(t, truth)

	guess := NewCameraModel()
	guess.SetExtrinsic(r3.Vector{X: 8}, r3.Vector{X: 0, Y: -1.0, Z: 0}, true)
	guessCost := meanReprojectionError(guess, conf)
	test.That(t, guessCost, test.ShouldBeGreaterThan, 1.0)

	fitted, cost, err := FitExtrinsic(conf, guess, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cost, test.ShouldBeLessThan, guessCost)
	test.That(t, cost, test.ShouldBeLessThan, 1.0)

	pos := fitted.WorldPosition()
	test.That(t, pos.Y, test.ShouldAlmostEqual, -1.5, 0.05)
	rvecDeg, _ := fitted.Extrinsic()
	test.That(t, rvecDeg.X, test.ShouldAlmostEqual, 12, 0.5)
}

func TestFitExtrinsicInvalidConfig(t *testing.T) {
	logger := golog.NewTestLogger(t)
	conf := &ExtrinsicCalibrationConfig{}
	_, _, err := FitExtrinsic(conf, nil, logger)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestCalibrationConfigFromJSONFile(t *testing.T) {
	truth := NewCameraModel()
	truth.SetExtrinsic(r3.Vector{X: 10}, r3.Vector{X: 0, Y: -2, Z: 0}, true)
	conf := syntheticCalibration(t, truth)

	b, err := json.MarshalIndent(conf, "", " ")
	test.That(t, err, test.ShouldBeNil)
	jsonPath := t.TempDir() + "/calib.json"
	test.That(t, os.WriteFile(jsonPath, b, 0o644), test.ShouldBeNil)

	loaded, err := NewExtrinsicCalibrationConfigFromJSONFile(jsonPath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, loaded.CheckValid(), test.ShouldBeNil)
	test.That(t, len(loaded.ImagePoints), test.ShouldEqual, len(conf.ImagePoints))
	test.That(t, loaded.Intrinsics.Fx, test.ShouldAlmostEqual, 500)
}
