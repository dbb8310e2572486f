package main

import (
	"image/color"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/groundplane/camcal/rimage/transform"
)

func testState(t *testing.T) *appState {
	t.Helper()
	cam := transform.NewCameraModel()
	cam.SetIntrinsics(320, 240, 160)
	cam.SetExtrinsic(r3.Vector{}, r3.Vector{X: 0, Y: -1.5, Z: 0}, true)
	return &appState{cam: cam, logger: golog.NewTestLogger(t)}
}

func TestParsePoints(t *testing.T) {
	points, err := parsePoints("640:500, 700:480")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, points, test.ShouldResemble, []r2.Point{{X: 640, Y: 500}, {X: 700, Y: 480}})

	points, err = parsePoints("")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, points, test.ShouldBeNil)

	_, err = parsePoints("640x500")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestRenderScene(t *testing.T) {
	state := testState(t)
	state.selected = []r2.Point{{X: 160, Y: 200}}

	img := state.renderScene()
	test.That(t, img.Bounds().Dx(), test.ShouldEqual, 320)
	test.That(t, img.Bounds().Dy(), test.ShouldEqual, 240)

	// a grid point straight ahead on the ground must be drawn in the
	// grid color, not the gray background
	pts := state.cam.ProjectWorldToImage([]r3.Vector{{X: 0, Y: 0, Z: 10}})
	test.That(t, pts[0], test.ShouldNotResemble, transform.OffCameraPoint)
	r, g, b, _ := img.At(int(pts[0].X), int(pts[0].Y)).RGBA()
	bg := color.RGBA{70, 70, 70, 255}
	bgR, bgG, bgB, _ := bg.RGBA()
	same := r == bgR && g == bgG && b == bgB
	test.That(t, same, test.ShouldBeFalse)
}

func TestTunerHandlers(t *testing.T) {
	state := testState(t)
	srv := httptest.NewServer(newTunerMux(state))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusOK)
	test.That(t, resp.Body.Close(), test.ShouldBeNil)

	resp, err = http.Get(srv.URL + "/render.png?pitch=10&height=2")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusOK)
	test.That(t, resp.Header.Get("Content-Type"), test.ShouldEqual, "image/png")
	test.That(t, resp.Body.Close(), test.ShouldBeNil)

	pos := state.cam.WorldPosition()
	test.That(t, pos.Y, test.ShouldAlmostEqual, -2, 1e-9)

	resp, err = http.Get(srv.URL + "/click?x=100&y=200")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusNoContent)
	test.That(t, resp.Body.Close(), test.ShouldBeNil)
	test.That(t, state.selected, test.ShouldResemble, []r2.Point{{X: 100, Y: 200}})

	resp, err = http.Get(srv.URL + "/click")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusBadRequest)
	test.That(t, resp.Body.Close(), test.ShouldBeNil)

	resp, err = http.Get(srv.URL + "/reset")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusNoContent)
	test.That(t, resp.Body.Close(), test.ShouldBeNil)
	test.That(t, state.selected, test.ShouldBeNil)
}
