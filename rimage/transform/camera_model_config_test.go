package transform

import (
	"encoding/json"
	"os"
	"testing"

	"go.viam.com/test"
)

func demoCameraConfig() *CameraModelConfig {
	return &CameraModelConfig{
		Intrinsics: &PinholeCameraIntrinsics{
			Width: 1280, Height: 720, Fx: 500, Fy: 500, Ppx: 640, Ppy: 360,
		},
		DistortionParameters: demoDistortion,
		RotationDegrees:      [3]float64{10, 0, 0},
		PositionWorld:        [3]float64{0, -1.5, 0},
	}
}

func TestCameraModelConfig(t *testing.T) {
	conf := demoCameraConfig()
	test.That(t, conf.CheckValid(), test.ShouldBeNil)

	cm, err := conf.CameraModel()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cm.Width, test.ShouldEqual, 1280)
	test.That(t, cm.Distortion, test.ShouldNotBeNil)

	rvecDeg, _ := cm.Extrinsic()
	test.That(t, rvecDeg.X, test.ShouldAlmostEqual, 10, 1e-9)
	pos := cm.WorldPosition()
	test.That(t, pos.Y, test.ShouldAlmostEqual, -1.5, 1e-9)

	var nilConf *CameraModelConfig
	test.That(t, nilConf.CheckValid(), test.ShouldNotBeNil)

	conf.Intrinsics.Fx = -1
	_, err = conf.CameraModel()
	test.That(t, err, test.ShouldNotBeNil)
}

func TestNewCameraModelFromJSONFile(t *testing.T) {
	conf := demoCameraConfig()
	b, err := json.MarshalIndent(conf, "", " ")
	test.That(t, err, test.ShouldBeNil)
	jsonPath := t.TempDir() + "/camera.json"
	test.That(t, os.WriteFile(jsonPath, b, 0o644), test.ShouldBeNil)

	cm, err := NewCameraModelFromJSONFile(jsonPath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cm.Fy, test.ShouldAlmostEqual, 500)
	test.That(t, cm.Distortion.Parameters(), test.ShouldResemble, demoDistortion)

	_, err = NewCameraModelFromJSONFile(t.TempDir() + "/missing.json")
	test.That(t, err, test.ShouldNotBeNil)
}
