package transform

import (
	"encoding/json"
	"os"
	"testing"

	"go.viam.com/test"
)

func TestFocalLengthFromFOV(t *testing.T) {
	// (1280/2) / tan(45 deg) == 640
	test.That(t, FocalLengthFromFOV(1280, 90), test.ShouldAlmostEqual, 640, 1e-9)

	params := NewPinholeCameraIntrinsicsFromFOV(1280, 720, 90)
	test.That(t, params.CheckValid(), test.ShouldBeNil)
	test.That(t, params.Fx, test.ShouldAlmostEqual, 640, 1e-9)
	test.That(t, params.Fy, test.ShouldAlmostEqual, params.Fx)
	test.That(t, params.Ppx, test.ShouldAlmostEqual, 640)
	test.That(t, params.Ppy, test.ShouldAlmostEqual, 360)
}

func TestCheckValid(t *testing.T) {
	var nilParams *PinholeCameraIntrinsics
	test.That(t, nilParams.CheckValid(), test.ShouldNotBeNil)

	params := &PinholeCameraIntrinsics{Width: 1280, Height: 720, Fx: 500, Fy: 500, Ppx: 640, Ppy: 360}
	test.That(t, params.CheckValid(), test.ShouldBeNil)

	bad := *params
	bad.Fx = 0
	test.That(t, bad.CheckValid(), test.ShouldNotBeNil)
	bad = *params
	bad.Width = 0
	test.That(t, bad.CheckValid(), test.ShouldNotBeNil)
	bad = *params
	bad.Ppy = -1
	test.That(t, bad.CheckValid(), test.ShouldNotBeNil)
}

func TestPointPixelInverse(t *testing.T) {
	params := &PinholeCameraIntrinsics{Width: 1280, Height: 720, Fx: 500, Fy: 510, Ppx: 640, Ppy: 360}

	px, py := params.PointToPixel(0.5, -0.25, 4)
	x, y, z := params.PixelToPoint(px, py, 4)
	test.That(t, x, test.ShouldAlmostEqual, 0.5, 1e-9)
	test.That(t, y, test.ShouldAlmostEqual, -0.25, 1e-9)
	test.That(t, z, test.ShouldAlmostEqual, 4)

	// zero and negative depths are off-camera
	px, py = params.PointToPixel(1, 1, 0)
	test.That(t, px, test.ShouldEqual, -1.0)
	test.That(t, py, test.ShouldEqual, -1.0)
	px, py = params.PointToPixel(1, 1, -2)
	test.That(t, px, test.ShouldEqual, -1.0)
	test.That(t, py, test.ShouldEqual, -1.0)
}

func TestGetCameraMatrix(t *testing.T) {
	params := &PinholeCameraIntrinsics{Width: 1280, Height: 720, Fx: 500, Fy: 510, Ppx: 640, Ppy: 360}
	k := params.GetCameraMatrix()
	test.That(t, k.At(0, 0), test.ShouldAlmostEqual, 500)
	test.That(t, k.At(1, 1), test.ShouldAlmostEqual, 510)
	test.That(t, k.At(0, 2), test.ShouldAlmostEqual, 640)
	test.That(t, k.At(1, 2), test.ShouldAlmostEqual, 360)
	test.That(t, k.At(2, 2), test.ShouldAlmostEqual, 1)
	// upper triangular
	test.That(t, k.At(1, 0), test.ShouldAlmostEqual, 0)
	test.That(t, k.At(2, 0), test.ShouldAlmostEqual, 0)
	test.That(t, k.At(2, 1), test.ShouldAlmostEqual, 0)
}

func TestIntrinsicsFromJSONFile(t *testing.T) {
	params := &PinholeCameraIntrinsics{Width: 1280, Height: 720, Fx: 500, Fy: 500, Ppx: 640, Ppy: 360}
	b, err := json.Marshal(params)
	test.That(t, err, test.ShouldBeNil)
	jsonPath := t.TempDir() + "/intrinsics.json"
	test.That(t, os.WriteFile(jsonPath, b, 0o644), test.ShouldBeNil)

	loaded, err := NewPinholeCameraIntrinsicsFromJSONFile(jsonPath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, loaded, test.ShouldResemble, params)

	_, err = NewPinholeCameraIntrinsicsFromJSONFile(t.TempDir() + "/missing.json")
	test.That(t, err, test.ShouldNotBeNil)
}
