package detection

// Response is the body returned by the detect endpoint.
//
// Boxes are always serialized as objects carrying the corners and the derived
// width, height and center. The older bare "bbox" array form is not produced.
type Response struct {
	Detections []NormalizedDetection `json:"detections"`
	ImageSize  *ImageDimensions      `json:"image_size,omitempty"`
}

// FormatOptions controls optional parts of the response.
type FormatOptions struct {
	// IncludeImageSize adds the decoded image dimensions to the response.
	IncludeImageSize bool
}

// NewResponse wraps normalized detections into a response.
//
// Arguments:
//   - detections: The normalized detections. A nil slice is serialized as [].
//   - size: The image dimensions, or nil to omit them.
//
// Returns:
//   - Response: The response ready to be encoded.
func NewResponse(detections []NormalizedDetection, size *ImageDimensions) Response {
	if detections == nil {
		detections = []NormalizedDetection{}
	}
	return Response{Detections: detections, ImageSize: size}
}

// Build normalizes raw detections and formats them in one step.
//
// Arguments:
//   - raw: The detections returned by the model.
//   - classes: The model's class table.
//   - dims: The size of the decoded image.
//   - opts: Formatting options.
//
// Returns:
//   - Response: The response for the client.
//   - []Rejection: The detections that were dropped.
func Build(raw []RawDetection, classes ClassResolver, dims ImageDimensions, opts FormatOptions) (Response, []Rejection) {
	kept, rejected := Normalize(raw, classes, dims)

	var size *ImageDimensions
	if opts.IncludeImageSize {
		size = &ImageDimensions{Width: dims.Width, Height: dims.Height}
	}

	return NewResponse(kept, size), rejected
}
