package transform

import (
	"encoding/json"
	"io"
	"os"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// CameraModelConfig is the JSON-serializable description of a posed
// camera: intrinsics, optional distortion coefficients, and the
// extrinsic pose given as Euler angles in degrees plus the camera
// position in world coordinates.
type CameraModelConfig struct {
	Intrinsics           *PinholeCameraIntrinsics `json:"intrinsic_parameters"`
	DistortionParameters []float64                `json:"distortion_parameters,omitempty"`
	RotationDegrees      [3]float64               `json:"rotation_degs"`
	PositionWorld        [3]float64               `json:"position_world"`
}

// CheckValid checks if the fields of CameraModelConfig have valid inputs.
func (conf *CameraModelConfig) CheckValid() error {
	if conf == nil {
		return errors.New("camera model config is nil")
	}
	if err := conf.Intrinsics.CheckValid(); err != nil {
		return err
	}
	if len(conf.DistortionParameters) > 5 {
		return InvalidDistortionError("expected at most 5 distortion parameters")
	}
	return nil
}

// CameraModel builds the posed camera the config describes.
func (conf *CameraModelConfig) CameraModel() (*CameraModel, error) {
	if err := conf.CheckValid(); err != nil {
		return nil, err
	}
	intrinsics := *conf.Intrinsics
	cm := &CameraModel{PinholeCameraIntrinsics: &intrinsics}
	if err := cm.SetDistortion(conf.DistortionParameters); err != nil {
		return nil, err
	}
	cm.SetExtrinsic(
		r3.Vector{X: conf.RotationDegrees[0], Y: conf.RotationDegrees[1], Z: conf.RotationDegrees[2]},
		r3.Vector{X: conf.PositionWorld[0], Y: conf.PositionWorld[1], Z: conf.PositionWorld[2]},
		true,
	)
	return cm, nil
}

// NewCameraModelFromJSONFile reads a CameraModelConfig from a JSON file
// and builds the camera it describes.
func NewCameraModelFromJSONFile(jsonPath string) (*CameraModel, error) {
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
	conf := &CameraModelConfig{}
	if err := json.Unmarshal(byteValue, conf); err != nil {
		return nil, errors.Wrap(err, "error parsing JSON string")
	}
	return conf.CameraModel()
}
