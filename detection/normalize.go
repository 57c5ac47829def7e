package detection

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
)

// maxRepairSize caps the extent synthesized for a zero-length axis, in pixels.
const maxRepairSize float32 = 10

// Normalize turns raw model output into client-facing detections.
//
// Each detection is handled on its own and the input order is preserved. A
// detection whose class is unknown, whose values are not finite, or whose box
// has no area after degenerate-box repair is dropped and reported as a
// Rejection. Boxes are not clamped to the image bounds.
//
// Arguments:
//   - raw: The detections returned by the model.
//   - classes: The model's class table.
//   - dims: The size of the image the detections refer to.
//
// Returns:
//   - []NormalizedDetection: The kept detections, never nil.
//   - []Rejection: The dropped detections with the reason for each.
func Normalize(raw []RawDetection, classes ClassResolver, dims ImageDimensions) ([]NormalizedDetection, []Rejection) {
	kept := make([]NormalizedDetection, 0, len(raw))
	var rejected []Rejection

	for i, r := range raw {
		d, err := normalizeOne(r, classes, dims)
		if err != nil {
			rejected = append(rejected, Rejection{Index: i, Detection: r, Err: err})
			continue
		}
		kept = append(kept, d)
	}

	return kept, rejected
}

func normalizeOne(r RawDetection, classes ClassResolver, dims ImageDimensions) (NormalizedDetection, error) {
	name, err := classes.Name(r.ClassID)
	if err != nil {
		return NormalizedDetection{}, errors.Wrapf(ErrUnknownClass, "class id %d: %v", r.ClassID, err)
	}

	if !finite(r.Confidence, r.X1, r.Y1, r.X2, r.Y2) {
		return NormalizedDetection{}, errors.Wrapf(ErrInvalidCoordinate,
			"(%v, %v), (%v, %v) confidence %v", r.X1, r.Y1, r.X2, r.Y2, r.Confidence)
	}

	x1, x2 := RepairAxis(r.X1, r.X2, dims.Width)
	y1, y2 := RepairAxis(r.Y1, r.Y2, dims.Height)

	box := NewBox(x1, y1, x2, y2)
	if box.Width <= 0 || box.Height <= 0 {
		return NormalizedDetection{}, errors.Wrapf(ErrDegenerateBox,
			"%s box (%v, %v), (%v, %v) has width %v height %v", name, x1, y1, x2, y2, box.Width, box.Height)
	}

	return NormalizedDetection{
		Class:      name,
		Confidence: r.Confidence,
		Box:        box,
	}, nil
}

// RepairAxis widens a zero-length span along one axis.
//
// The model occasionally emits zero-width or zero-height boxes at the image
// edges. The synthesized extent is min(10, extent/10). A span starting at 0 is
// grown forward; any other span is grown backward from its end, floored at 0.
// Spans that already have a length are returned unchanged.
//
// Arguments:
//   - lo: The start coordinate (x1 or y1).
//   - hi: The end coordinate (x2 or y2).
//   - extent: The image size along this axis.
//
// Returns:
//   - float32, float32: The repaired start and end coordinates.
func RepairAxis(lo, hi float32, extent int) (float32, float32) {
	if lo != hi {
		return lo, hi
	}

	size := math32.Min(maxRepairSize, float32(extent)/10)
	if lo == 0 {
		return lo, size
	}

	return math32.Max(0, hi-size), hi
}

func finite(values ...float32) bool {
	for _, v := range values {
		if math32.IsNaN(v) || math32.IsInf(v, 0) {
			return false
		}
	}
	return true
}
