// Package detection - Normalization of raw model detections into the API response.
package detection

// RawDetection is a single detection as emitted by a model.
//
// Coordinates are absolute pixels in the source image. The model does not
// guarantee X1 <= X2 or Y1 <= Y2, so consumers must check.
type RawDetection struct {
	// ClassID is the index into the model's class table.
	ClassID int
	// Confidence is the model score in [0, 1].
	Confidence float32
	// Corners of the axis-aligned box.
	X1, Y1, X2, Y2 float32
}

// ImageDimensions is the size of a decoded image in pixels.
type ImageDimensions struct {
	Width  int `json:"width"  yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Box is a repaired bounding box with its derived geometry.
type Box struct {
	X1      float32 `json:"x1"`
	Y1      float32 `json:"y1"`
	X2      float32 `json:"x2"`
	Y2      float32 `json:"y2"`
	Width   float32 `json:"width"`
	Height  float32 `json:"height"`
	CenterX float32 `json:"center_x"`
	CenterY float32 `json:"center_y"`
}

// NewBox computes the derived geometry for the given corners.
//
// Arguments:
//   - x1, y1: The top-left corner.
//   - x2, y2: The bottom-right corner.
//
// Returns:
//   - Box: The box with width, height and center filled in.
func NewBox(x1, y1, x2, y2 float32) Box {
	width := x2 - x1
	height := y2 - y1
	return Box{
		X1:      x1,
		Y1:      y1,
		X2:      x2,
		Y2:      y2,
		Width:   width,
		Height:  height,
		CenterX: x1 + width/2,
		CenterY: y1 + height/2,
	}
}

// NormalizedDetection is a detection ready to be served to clients.
type NormalizedDetection struct {
	Class      string  `json:"class"`
	Confidence float32 `json:"confidence"`
	Box        Box     `json:"box"`
}

// ClassResolver maps a model class index to its human-readable label.
type ClassResolver interface {
	// Name returns the label for classID, or an error if the index is unknown.
	Name(classID int) (string, error)
}
