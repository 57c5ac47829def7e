package detection

import "github.com/pkg/errors"

// Per-detection failures. None of these abort a batch; the offending detection
// is dropped and reported as a Rejection.
var (
	// ErrUnknownClass is returned when a class index is not in the class table.
	ErrUnknownClass = errors.New("unknown class")
	// ErrDegenerateBox is returned when a box still has no area after repair.
	ErrDegenerateBox = errors.New("degenerate box")
	// ErrInvalidCoordinate is returned for NaN or infinite coordinates or scores.
	ErrInvalidCoordinate = errors.New("invalid coordinate")
)

// Rejection records a raw detection dropped during normalization.
type Rejection struct {
	// Index is the position of the detection in the raw input.
	Index int
	// Detection is the raw detection as received.
	Detection RawDetection
	// Err wraps one of ErrUnknownClass, ErrDegenerateBox or ErrInvalidCoordinate.
	Err error
}
