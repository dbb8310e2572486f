// camviz renders and tunes a pinhole camera pose over the world ground
// plane: it projects a ground grid through the camera, measures ground
// distances for selected pixels, fits a pose from point correspondences,
// and serves an interactive browser tuner.
package main

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/groundplane/camcal/rimage/transform"
)

func main() {
	logger := golog.NewDevelopmentLogger("camviz")
	app := &cli.App{
		Name:  "camviz",
		Usage: "visualize and tune a pinhole camera pose over the ground plane",
		Flags: cameraFlags(),
		Commands: []*cli.Command{
			renderCommand(logger),
			depthCommand(logger),
			calibrateCommand(logger),
			serveCommand(logger),
		},
	}
	if err := app.Run(os.Args); err != nil {
		logger.Fatal(err)
	}
}

func cameraFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "camera", Usage: "JSON camera model config; overrides the pose flags"},
		&cli.IntFlag{Name: "width", Value: 1280, Usage: "image width in pixels"},
		&cli.IntFlag{Name: "height", Value: 720, Usage: "image height in pixels"},
		&cli.Float64Flag{Name: "fov", Value: 130, Usage: "horizontal field of view in degrees"},
		&cli.Float64Flag{Name: "pitch", Value: 0, Usage: "camera pitch in degrees"},
		&cli.Float64Flag{Name: "yaw", Value: 0, Usage: "camera yaw in degrees"},
		&cli.Float64Flag{Name: "roll", Value: 0, Usage: "camera roll in degrees"},
		&cli.Float64Flag{Name: "cam-height", Value: 1.5, Usage: "camera height above the ground in meters"},
		&cli.StringFlag{Name: "image", Usage: "optional background photo"},
		&cli.StringFlag{Name: "points", Usage: "comma-separated x:y pixel pairs to measure, e.g. 640:500,700:480"},
	}
}

// newAppState builds the per-run state from the CLI flags. The camera
// and selection list are owned by this struct and passed explicitly; no
// package-level camera exists.
func newAppState(c *cli.Context, logger golog.Logger) (*appState, error) {
	var cam *transform.CameraModel
	var err error
	if path := c.String("camera"); path != "" {
		cam, err = transform.NewCameraModelFromJSONFile(path)
		if err != nil {
			return nil, err
		}
	} else {
		cam = transform.NewCameraModel()
		width, height := c.Int("width"), c.Int("height")
		cam.SetIntrinsics(width, height, transform.FocalLengthFromFOV(width, c.Float64("fov")))
		cam.SetExtrinsic(
			r3.Vector{X: c.Float64("pitch"), Y: c.Float64("yaw"), Z: c.Float64("roll")},
			// Y+ is down, so a camera above the ground has negative world Y
			r3.Vector{X: 0, Y: -c.Float64("cam-height"), Z: 0},
			true,
		)
	}

	var background image.Image
	if path := c.String("image"); path != "" {
		background, err = imaging.Open(path)
		if err != nil {
			return nil, errors.Wrap(err, "error opening background image")
		}
	}

	selected, err := parsePoints(c.String("points"))
	if err != nil {
		return nil, err
	}
	return &appState{cam: cam, background: background, selected: selected, logger: logger}, nil
}

func parsePoints(s string) ([]r2.Point, error) {
	if s == "" {
		return nil, nil
	}
	var points []r2.Point
	for _, pair := range strings.Split(s, ",") {
		var x, y float64
		if _, err := fmt.Sscanf(strings.TrimSpace(pair), "%f:%f", &x, &y); err != nil {
			return nil, errors.Wrapf(err, "bad point %q, want x:y", pair)
		}
		points = append(points, r2.Point{X: x, Y: y})
	}
	return points, nil
}

func renderCommand(logger golog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "render",
		Usage: "project the ground grid through the camera and write a PNG",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Value: "camviz.png", Usage: "output PNG path"},
		},
		Action: func(c *cli.Context) error {
			state, err := newAppState(c, logger)
			if err != nil {
				return err
			}
			img := state.renderScene()
			if err := imaging.Save(img, c.String("out")); err != nil {
				return errors.Wrap(err, "error writing output image")
			}
			logger.Infow("rendered scene", "out", c.String("out"),
				"horizon_y", state.cam.EstimateVanishmentY())
			return nil
		},
	}
}

func depthCommand(logger golog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "depth",
		Usage: "synthesize the ground-plane depth map and write its grayscale rendering",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Value: "camviz_depth.png", Usage: "output PNG path"},
			&cli.Float64Flag{Name: "max-depth", Value: 50, Usage: "clamp displayed depth in meters"},
		},
		Action: func(c *cli.Context) error {
			state, err := newAppState(c, logger)
			if err != nil {
				return err
			}
			dm := state.cam.GroundPlaneDepthMap()
			if !dm.HasData() {
				return errors.New("no pixel sees the ground plane; check the pose")
			}
			img := dm.ToPrettyPicture(0, c.Float64("max-depth"))
			if err := imaging.Save(img, c.String("out")); err != nil {
				return errors.Wrap(err, "error writing depth image")
			}
			min, max := dm.MinMax()
			logger.Infow("rendered ground depth", "out", c.String("out"), "min", min, "max", max)
			return nil
		},
	}
}

func calibrateCommand(logger golog.Logger) *cli.Command {
	return &cli.Command{
		Name:      "calibrate",
		Usage:     "fit the camera pose from image/world point correspondences",
		ArgsUsage: "<correspondences.json>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Usage: "write the fitted camera config JSON here"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("need exactly one correspondence JSON file")
			}
			conf, err := transform.NewExtrinsicCalibrationConfigFromJSONFile(c.Args().First())
			if err != nil {
				return err
			}
			state, err := newAppState(c, logger)
			if err != nil {
				return err
			}
			fitted, cost, err := transform.FitExtrinsic(conf, state.cam, logger)
			if err != nil {
				return err
			}
			rvecDeg, _ := fitted.Extrinsic()
			pos := fitted.WorldPosition()
			logger.Infow("fitted pose",
				"pitch_deg", rvecDeg.X, "yaw_deg", rvecDeg.Y, "roll_deg", rvecDeg.Z,
				"position", pos, "cost_px2", cost)

			if out := c.String("out"); out != "" {
				fittedConf := &transform.CameraModelConfig{
					Intrinsics:      fitted.PinholeCameraIntrinsics,
					RotationDegrees: [3]float64{rvecDeg.X, rvecDeg.Y, rvecDeg.Z},
					PositionWorld:   [3]float64{pos.X, pos.Y, pos.Z},
				}
				if fitted.Distortion != nil {
					fittedConf.DistortionParameters = fitted.Distortion.Parameters()
				}
				b, err := json.MarshalIndent(fittedConf, "", " ")
				if err != nil {
					return err
				}
				if err := os.WriteFile(out, b, 0o644); err != nil {
					return errors.Wrap(err, "error writing fitted config")
				}
			}
			return nil
		},
	}
}

func serveCommand(logger golog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve the interactive pose tuner over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: "localhost:8888", Usage: "listen address"},
		},
		Action: func(c *cli.Context) error {
			state, err := newAppState(c, logger)
			if err != nil {
				return err
			}
			return serveTuner(c.Context, c.String("addr"), state)
		},
	}
}
