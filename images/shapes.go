package images

// Rect is a lightweight bounding box in pixel coordinates.
type Rect struct {
	X1, Y1, X2, Y2 float32
}

// Width returns X2 - X1.
func (r Rect) Width() float32 { return r.X2 - r.X1 }

// Height returns Y2 - Y1.
func (r Rect) Height() float32 { return r.Y2 - r.Y1 }

// Area returns the area of r, or 0 when r is empty or inverted.
func (r Rect) Area() float32 {
	w, h := r.Width(), r.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Clip returns r restricted to [0, w] x [0, h].
//
// Arguments:
//   - w: The image width.
//   - h: The image height.
//
// Returns:
//   - Rect: The clipped rectangle. It may have zero width or height.
func (r Rect) Clip(w, h float32) Rect {
	return Rect{
		X1: clamp(r.X1, 0, w),
		Y1: clamp(r.Y1, 0, h),
		X2: clamp(r.X2, 0, w),
		Y2: clamp(r.Y2, 0, h),
	}
}

// CalculateIoU returns the intersection over union of two rectangles.
//
// IoU = area(r ∩ o) / area(r ∪ o). A value of 1 means the rectangles are
// identical and 0 means they do not overlap. Rectangles that only touch along
// an edge have an IoU of 0.
//
// Arguments:
//   - r: The first rectangle.
//   - o: The other rectangle to compare against.
//
// Returns:
//   - float32: A value between 0.0 and 1.0 representing the IoU score.
func CalculateIoU(r, o Rect) float32 {
	// The intersection starts where both rectangles have begun and ends where
	// the first one ends.
	ix1 := max(r.X1, o.X1)
	iy1 := max(r.Y1, o.Y1)
	ix2 := min(r.X2, o.X2)
	iy2 := min(r.Y2, o.Y2)

	interW := ix2 - ix1
	interH := iy2 - iy1
	if interW <= 0 || interH <= 0 {
		return 0.0
	}
	interArea := interW * interH

	// Union(A, B) = Area(A) + Area(B) - Intersection(A, B)
	unionArea := r.Area() + o.Area() - interArea
	if unionArea <= 0 {
		return 0.0
	}

	return interArea / unionArea
}

func clamp(v, lo, hi float32) float32 {
	return min(max(v, lo), hi)
}
