// Package detectors - ONNX model inference.
package detectors

import (
	"image"

	"github.com/nvr-ai/verch-scan/inference/providers"
	"github.com/nvr-ai/verch-scan/models/postprocess"
	"github.com/nvr-ai/verch-scan/models/yolov8"
)

// Config represents the configuration for an ONNX detector.
type Config struct {
	// ModelPath specifies the path to the ONNX model file
	ModelPath string `json:"model_path" yaml:"model_path"`

	// Backend execution provider configuration
	Provider providers.Config `json:"provider" yaml:"provider"`

	// InputShape is used when the model declares a dynamic input size.
	InputShape image.Point `json:"input_shape" yaml:"input_shape"`

	// ConfidenceThreshold filters detections below this confidence level
	ConfidenceThreshold float32 `json:"confidence_threshold" yaml:"confidence_threshold"`

	// NMSThreshold controls Non-Maximum Suppression IoU threshold
	NMSThreshold float32 `json:"nms_threshold" yaml:"nms_threshold"`

	// MaxDetections caps the detections returned per image.
	MaxDetections int `json:"max_detections" yaml:"max_detections"`

	// ClassAgnosticNMS suppresses overlapping boxes across classes.
	ClassAgnosticNMS bool `json:"class_agnostic_nms" yaml:"class_agnostic_nms"`

	// ClassNames overrides the labels embedded in the model.
	ClassNames map[int]string `json:"class_names" yaml:"class_names"`
}

// DefaultConfig returns the Ultralytics predictor defaults on the CPU.
func DefaultConfig() Config {
	decode := yolov8.DefaultConfig()
	return Config{
		Provider:            providers.DefaultConfig(),
		InputShape:          image.Pt(decode.InputWidth, decode.InputHeight),
		ConfidenceThreshold: decode.ConfidenceThreshold,
		NMSThreshold:        decode.NMS.IoUThreshold,
		MaxDetections:       decode.NMS.MaxDetections,
		ClassAgnosticNMS:    !decode.NMS.ClassAware,
	}
}

// decodeConfig builds the output decoder settings for a resolved input size.
func (c Config) decodeConfig(input image.Point) yolov8.Config {
	return yolov8.Config{
		InputWidth:          input.X,
		InputHeight:         input.Y,
		ConfidenceThreshold: c.ConfidenceThreshold,
		NMS: postprocess.NMSConfig{
			IoUThreshold:  c.NMSThreshold,
			ClassAware:    !c.ClassAgnosticNMS,
			MaxDetections: c.MaxDetections,
		},
	}
}
