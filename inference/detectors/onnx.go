package detectors

import (
	"context"
	"image"
	"os"
	"sync"
	"time"

	"github.com/nvr-ai/verch-scan/detection"
	"github.com/nvr-ai/verch-scan/inference"
	"github.com/nvr-ai/verch-scan/inference/providers"
	"github.com/nvr-ai/verch-scan/models"
	"github.com/nvr-ai/verch-scan/models/postprocess"
	"github.com/nvr-ai/verch-scan/models/yolov8"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"
)

// ONNXDetector runs an Ultralytics YOLO detection export on ONNX Runtime.
//
// The runtime environment must be initialized with
// providers.InitializeEnvironment before a detector is created.
type ONNXDetector struct {
	session    *ort.DynamicAdvancedSession
	modelPath  string
	inputName  string
	outputName string
	inputShape image.Point
	decode     yolov8.Config
	classes    *models.OutputClassSet
	log        logrus.FieldLogger
	mu         sync.RWMutex
}

// NewONNXDetector loads the model at cfg.ModelPath.
//
// Order of operations:
//  1. Inspect the model inputs and outputs to learn the tensor names and input size.
//  2. Resolve class labels from configuration, model metadata or the builtin table.
//  3. Build session options for the configured execution provider.
//  4. Create the session.
//
// Arguments:
//   - cfg: The detector configuration.
//   - log: The logger.
//
// Returns:
//   - *ONNXDetector: The loaded detector.
//   - error: An error wrapping inference.ErrModelLoad if any step fails.
func NewONNXDetector(cfg Config, log logrus.FieldLogger) (*ONNXDetector, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, errors.Wrapf(inference.ErrModelLoad, "model %q: %v", cfg.ModelPath, err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, errors.Wrapf(inference.ErrModelLoad, "inspect %q: %v", cfg.ModelPath, err)
	}
	if len(inputs) != 1 || len(outputs) < 1 {
		return nil, errors.Wrapf(inference.ErrModelLoad,
			"model %q has %d inputs and %d outputs, expected one image input", cfg.ModelPath, len(inputs), len(outputs))
	}

	inputShape := inputSize(inputs[0].Dimensions, cfg.InputShape)

	embedded, err := readModelNames(cfg.ModelPath)
	if err != nil {
		log.WithError(err).Warn("could not read class names from model metadata")
	}
	classes := resolveClassNames(cfg.ClassNames, embedded)

	options, err := providers.NewSessionOptions(cfg.Provider)
	if err != nil {
		return nil, errors.Wrapf(inference.ErrModelLoad, "session options: %v", err)
	}
	defer options.Destroy()

	session, err := ort.NewDynamicAdvancedSession(
		cfg.ModelPath,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		options,
	)
	if err != nil {
		return nil, errors.Wrapf(inference.ErrModelLoad, "create session for %q: %v", cfg.ModelPath, err)
	}

	d := &ONNXDetector{
		session:    session,
		modelPath:  cfg.ModelPath,
		inputName:  inputs[0].Name,
		outputName: outputs[0].Name,
		inputShape: inputShape,
		decode:     cfg.decodeConfig(inputShape),
		classes:    classes,
		log:        log,
	}

	log.WithFields(logrus.Fields{
		"model":    cfg.ModelPath,
		"input":    inputs[0].Name,
		"output":   outputs[0].Name,
		"size":     inputShape,
		"classes":  classes.Len(),
		"labels":   classes.Style,
		"provider": cfg.Provider.Backend,
	}).Info("model loaded")

	return d, nil
}

// Infer runs the model on img and returns detections in img pixel coordinates.
func (d *ONNXDetector) Infer(ctx context.Context, img image.Image) ([]detection.RawDetection, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.session == nil {
		return nil, errors.Wrap(inference.ErrInferenceFailure, "model not loaded")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w, h := d.inputShape.X, d.inputShape.Y
	buf := make([]float32, 3*w*h)
	if err := inference.PrepareInput(img, w, h, buf); err != nil {
		return nil, errors.Wrapf(inference.ErrInferenceFailure, "prepare input: %v", err)
	}

	input, err := ort.NewTensor(ort.NewShape(1, 3, int64(h), int64(w)), buf)
	if err != nil {
		return nil, errors.Wrapf(inference.ErrInferenceFailure, "create input tensor: %v", err)
	}
	defer input.Destroy()

	start := time.Now()
	outputs := []ort.Value{nil}
	if err := d.session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, errors.Wrapf(inference.ErrInferenceFailure, "run: %v", err)
	}
	defer outputs[0].Destroy()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, errors.Wrapf(inference.ErrInferenceFailure, "output %q is %T, expected float32 tensor", d.outputName, outputs[0])
	}

	bounds := img.Bounds()
	results, err := yolov8.Decode(out.GetData(), out.GetShape(), image.Pt(bounds.Dx(), bounds.Dy()), d.decode)
	if err != nil {
		return nil, errors.Wrapf(inference.ErrInferenceFailure, "decode output: %v", err)
	}

	d.log.WithFields(logrus.Fields{
		"elapsed":    time.Since(start),
		"detections": len(results),
	}).Debug("inference complete")

	return ToRawDetections(results), nil
}

// ClassNames returns the resolved label table.
func (d *ONNXDetector) ClassNames() detection.ClassResolver {
	return d.classes
}

// InputShape returns the model input width and height.
func (d *ONNXDetector) InputShape() image.Point {
	return d.inputShape
}

// Close releases the session. It is safe to call more than once.
func (d *ONNXDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session == nil {
		return nil
	}
	err := d.session.Destroy()
	d.session = nil
	if err != nil {
		return errors.Wrap(err, "error destroying ORT session")
	}
	return nil
}

// ToRawDetections converts decoder results into raw detections.
//
// Arguments:
//   - results: The decoded results.
//
// Returns:
//   - []detection.RawDetection: One detection per result, in the same order.
func ToRawDetections(results []postprocess.Result) []detection.RawDetection {
	out := make([]detection.RawDetection, len(results))
	for i, r := range results {
		out[i] = detection.RawDetection{
			ClassID:    r.Class,
			Confidence: r.Score,
			X1:         r.Box.X1,
			Y1:         r.Box.Y1,
			X2:         r.Box.X2,
			Y2:         r.Box.Y2,
		}
	}
	return out
}

// inputSize reads width and height from a [1, 3, H, W] input shape. Dynamic
// dimensions fall back to the configured shape, then to 640.
func inputSize(dims ort.Shape, fallback image.Point) image.Point {
	size := fallback
	if size.X <= 0 {
		size.X = 640
	}
	if size.Y <= 0 {
		size.Y = 640
	}
	if len(dims) == 4 {
		if dims[3] > 0 {
			size.X = int(dims[3])
		}
		if dims[2] > 0 {
			size.Y = int(dims[2])
		}
	}
	return size
}

// readModelNames returns the labels stored in the model's "names" metadata
// entry, or nil if there is none.
func readModelNames(path string) (map[int]string, error) {
	md, err := ort.GetModelMetadata(path)
	if err != nil {
		return nil, errors.Wrap(err, "read model metadata")
	}
	defer md.Destroy()

	raw, ok, err := md.LookupCustomMetadataMap("names")
	if err != nil {
		return nil, errors.Wrap(err, "lookup names metadata")
	}
	if !ok {
		return nil, nil
	}

	return models.ParseClassNames(raw)
}

// resolveClassNames picks the label table: explicit configuration first, then
// model metadata, then the builtin COCO table.
func resolveClassNames(configured, embedded map[int]string) *models.OutputClassSet {
	if len(configured) > 0 {
		return models.NewClassSet(models.ModelFamilyCustom, configured)
	}
	if len(embedded) > 0 {
		return models.NewClassSet(models.ModelFamilyCustom, embedded)
	}
	return models.YOLOClasses
}
