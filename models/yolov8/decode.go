// Package yolov8 - Output decoding for Ultralytics YOLOv8/v11 detection exports.
package yolov8

import (
	"image"

	"github.com/chewxy/math32"
	"github.com/nvr-ai/verch-scan/images"
	"github.com/nvr-ai/verch-scan/models/postprocess"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Config controls decoding of a raw output tensor.
type Config struct {
	// The model input width the boxes are expressed in.
	InputWidth int `json:"input_width" yaml:"input_width"`
	// The model input height the boxes are expressed in.
	InputHeight int `json:"input_height" yaml:"input_height"`
	// Candidates whose best class score is below this are discarded.
	ConfidenceThreshold float32 `json:"confidence_threshold" yaml:"confidence_threshold"`
	// Suppression applied after thresholding.
	NMS postprocess.NMSConfig `json:"nms" yaml:"nms"`
}

// DefaultConfig returns the Ultralytics predictor defaults for a 640x640 export.
func DefaultConfig() Config {
	return Config{
		InputWidth:          640,
		InputHeight:         640,
		ConfidenceThreshold: 0.25,
		NMS:                 postprocess.DefaultNMSConfig(),
	}
}

// Decode converts a [1, 4+nc, N] output tensor into detections in source
// image pixels.
//
// Each of the N anchors carries cx, cy, w, h in model input pixels followed by
// one score per class. The best class is kept if it clears the confidence
// threshold. Boxes are scaled from the model input to the source image,
// clipped to it, and passed through NMS.
//
// Arguments:
//   - output: The flat output buffer.
//   - shape: The output tensor shape.
//   - src: The source image width and height.
//   - cfg: Decoding configuration.
//
// Returns:
//   - []postprocess.Result: The detections, highest score first.
//   - error: If the shape does not describe a detection head or the buffer is too short.
func Decode(output []float32, shape []int64, src image.Point, cfg Config) ([]postprocess.Result, error) {
	rows, anchors, err := headDims(shape)
	if err != nil {
		return nil, err
	}
	if len(output) < rows*anchors {
		return nil, errors.Errorf("output buffer has %d values, shape %v needs %d", len(output), shape, rows*anchors)
	}
	if cfg.InputWidth <= 0 || cfg.InputHeight <= 0 {
		return nil, errors.Errorf("invalid model input size %dx%d", cfg.InputWidth, cfg.InputHeight)
	}

	// Transpose [4+nc, N] into [N, 4+nc] so each anchor is contiguous.
	backing := make([]float32, rows*anchors)
	copy(backing, output[:rows*anchors])
	t := tensor.New(tensor.WithShape(rows, anchors), tensor.WithBacking(backing))
	if err := t.T(); err != nil {
		return nil, errors.Wrap(err, "transpose output")
	}
	if err := t.Transpose(); err != nil {
		return nil, errors.Wrap(err, "materialize transpose")
	}
	data, ok := t.Data().([]float32)
	if !ok {
		return nil, errors.Errorf("unexpected tensor backing %T", t.Data())
	}

	sx := float32(src.X) / float32(cfg.InputWidth)
	sy := float32(src.Y) / float32(cfg.InputHeight)
	w, h := float32(src.X), float32(src.Y)

	candidates := make([]postprocess.Result, 0, 64)
	for a := 0; a < anchors; a++ {
		row := data[a*rows : (a+1)*rows]

		classID, score := argmax(row[4:])
		if score < cfg.ConfidenceThreshold {
			continue
		}

		cx, cy, bw, bh := row[0], row[1], row[2], row[3]
		box := images.Rect{
			X1: (cx - bw/2) * sx,
			Y1: (cy - bh/2) * sy,
			X2: (cx + bw/2) * sx,
			Y2: (cy + bh/2) * sy,
		}.Clip(w, h)

		candidates = append(candidates, postprocess.Result{Box: box, Score: score, Class: classID})
	}

	return postprocess.ApplyGreedyNMS(candidates, cfg.NMS), nil
}

// headDims validates a [1, 4+nc, N] or [4+nc, N] shape.
func headDims(shape []int64) (rows, anchors int, err error) {
	dims := shape
	if len(dims) == 3 {
		if dims[0] != 1 {
			return 0, 0, errors.Errorf("batch size %d not supported, output shape %v", dims[0], shape)
		}
		dims = dims[1:]
	}
	if len(dims) != 2 {
		return 0, 0, errors.Errorf("expected output shape [1, 4+nc, N], got %v", shape)
	}
	if dims[0] < 5 || dims[1] < 1 {
		return 0, 0, errors.Errorf("output shape %v has no class scores or anchors", shape)
	}
	return int(dims[0]), int(dims[1]), nil
}

func argmax(scores []float32) (int, float32) {
	best, bestScore := 0, math32.Inf(-1)
	for i, s := range scores {
		if s > bestScore {
			best, bestScore = i, s
		}
	}
	return best, bestScore
}
