package transform

import (
	"encoding/json"
	"io"
	"os"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/utils"
	"gonum.org/v1/gonum/optimize"

	cutils "github.com/groundplane/camcal/utils"
)

// ExtrinsicCalibrationConfig pairs observed image points with the known
// world points they depict, together with the camera intrinsics. The
// slices are index-aligned.
type ExtrinsicCalibrationConfig struct {
	ImagePoints []r2.Point               `json:"image_points"`
	WorldPoints []r3.Vector              `json:"world_points"`
	Intrinsics  *PinholeCameraIntrinsics `json:"intrinsic_parameters"`
}

// CheckValid checks if the fields of ExtrinsicCalibrationConfig have valid inputs.
func (conf *ExtrinsicCalibrationConfig) CheckValid() error {
	if conf == nil {
		return errors.New("extrinsic calibration config is nil")
	}
	if err := conf.Intrinsics.CheckValid(); err != nil {
		return err
	}
	if len(conf.ImagePoints) != len(conf.WorldPoints) {
		return errors.Errorf("have %d image points but %d world points",
			len(conf.ImagePoints), len(conf.WorldPoints))
	}
	if len(conf.ImagePoints) < 3 {
		return errors.Errorf("need at least 3 point pairs, have %d", len(conf.ImagePoints))
	}
	return nil
}

// NewExtrinsicCalibrationConfigFromJSONFile reads an
// ExtrinsicCalibrationConfig from a JSON file.
func NewExtrinsicCalibrationConfigFromJSONFile(jsonPath string) (*ExtrinsicCalibrationConfig, error) {
	//nolint:gosec
	jsonFile, err := os.Open(jsonPath)
	if err != nil {
		return nil, errors.Wrap(err, "error opening JSON file")
	}
	defer utils.UncheckedErrorFunc(jsonFile.Close)
	byteValue, err := io.ReadAll(jsonFile)
	if err != nil {
		return nil, errors.Wrap(err, "error reading JSON data")
	}
	conf := &ExtrinsicCalibrationConfig{}
	if err := json.Unmarshal(byteValue, conf); err != nil {
		return nil, errors.Wrap(err, "error parsing JSON string")
	}
	return conf, nil
}

// behindCameraPenalty dominates any plausible squared pixel error so the
// optimizer is pushed away from poses that put calibration points behind
// the camera.
const behindCameraPenalty = 1e8

// meanReprojectionError is the cost function for the pose fit: the mean
// squared pixel distance between the observed image points and the world
// points projected under the candidate pose.
func meanReprojectionError(cm *CameraModel, conf *ExtrinsicCalibrationConfig) float64 {
	projected := cm.ProjectWorldToImage(conf.WorldPoints)
	cost := 0.
	for i, obs := range conf.ImagePoints {
		if projected[i] == OffCameraPoint {
			cost += behindCameraPenalty
			continue
		}
		dx := projected[i].X - obs.X
		dy := projected[i].Y - obs.Y
		cost += dx*dx + dy*dy
	}
	return cost / float64(len(conf.ImagePoints))
}

// poseFromParameters builds a camera at the 6-vector pose
// (pitch, yaw, roll [rad], Tx, Ty, Tz [world]).
func poseFromParameters(intrinsics *PinholeCameraIntrinsics, p []float64) *CameraModel {
	in := *intrinsics
	cm := &CameraModel{PinholeCameraIntrinsics: &in}
	cm.SetExtrinsic(
		r3.Vector{X: cutils.RadToDeg(p[0]), Y: cutils.RadToDeg(p[1]), Z: cutils.RadToDeg(p[2])},
		r3.Vector{X: p[3], Y: p[4], Z: p[5]},
		true,
	)
	return cm
}

// FitExtrinsic estimates the camera pose (rotation and world position)
// that minimizes the mean squared reprojection error of the config's
// point pairs, starting the search from the pose of guess. It returns
// the posed camera and the final cost in squared pixels.
func FitExtrinsic(conf *ExtrinsicCalibrationConfig, guess *CameraModel, logger golog.Logger) (*CameraModel, float64, error) {
	if err := conf.CheckValid(); err != nil {
		return nil, 0, err
	}
	if guess == nil {
		guess = NewCameraModel()
	}

	guessAnglesDeg, _ := guess.Extrinsic()
	guessPos := guess.WorldPosition()
	x0 := []float64{
		cutils.DegToRad(guessAnglesDeg.X),
		cutils.DegToRad(guessAnglesDeg.Y),
		cutils.DegToRad(guessAnglesDeg.Z),
		guessPos.X, guessPos.Y, guessPos.Z,
	}

	problem := optimize.Problem{
		Func: func(p []float64) float64 {
			return meanReprojectionError(poseFromParameters(conf.Intrinsics, p), conf)
		},
	}
	result, err := optimize.Minimize(problem, x0, nil, &optimize.NelderMead{})
	if err != nil {
		return nil, 0, errors.Wrap(err, "pose optimization failed")
	}
	if err := result.Status.Err(); err != nil {
		return nil, 0, errors.Wrap(err, "pose optimization did not converge")
	}
	logger.Debugf("pose fit converged after %d evaluations, cost %.6f px^2",
		result.Stats.FuncEvaluations, result.F)
	return poseFromParameters(conf.Intrinsics, result.X), result.F, nil
}
