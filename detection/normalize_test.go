package detection

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClasses []string

func (s stubClasses) Name(classID int) (string, error) {
	if classID < 0 || classID >= len(s) {
		return "", fmt.Errorf("class index %d out of range [0, %d)", classID, len(s))
	}
	return s[classID], nil
}

var testClasses = stubClasses{"person", "bicycle", "car"}

func TestRepairAxis(t *testing.T) {
	tests := []struct {
		name   string
		lo, hi float32
		extent int
		wantLo float32
		wantHi float32
	}{
		{name: "non degenerate unchanged", lo: 10, hi: 20, extent: 100, wantLo: 10, wantHi: 20},
		{name: "inverted unchanged", lo: 20, hi: 10, extent: 100, wantLo: 20, wantHi: 10},
		{name: "zero at origin grows forward", lo: 0, hi: 0, extent: 480, wantLo: 0, wantHi: 10},
		{name: "small image uses tenth", lo: 0, hi: 0, extent: 40, wantLo: 0, wantHi: 4},
		{name: "interior grows backward", lo: 50, hi: 50, extent: 40, wantLo: 46, wantHi: 50},
		{name: "backward floored at zero", lo: 3, hi: 3, extent: 640, wantLo: 0, wantHi: 3},
		{name: "right edge", lo: 640, hi: 640, extent: 640, wantLo: 630, wantHi: 640},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi := RepairAxis(tt.lo, tt.hi, tt.extent)
			assert.Equal(t, tt.wantLo, lo)
			assert.Equal(t, tt.wantHi, hi)
		})
	}
}

func TestNormalize(t *testing.T) {
	dims := ImageDimensions{Width: 640, Height: 480}

	t.Run("valid detection passes through", func(t *testing.T) {
		raw := []RawDetection{{ClassID: 0, Confidence: 0.9, X1: 10, Y1: 20, X2: 110, Y2: 220}}

		got, rejected := Normalize(raw, testClasses, dims)

		require.Len(t, got, 1)
		assert.Empty(t, rejected)
		assert.Equal(t, "person", got[0].Class)
		assert.Equal(t, float32(0.9), got[0].Confidence)
		assert.Equal(t, NewBox(10, 20, 110, 220), got[0].Box)
		assert.Equal(t, float32(100), got[0].Box.Width)
		assert.Equal(t, float32(200), got[0].Box.Height)
		assert.Equal(t, float32(60), got[0].Box.CenterX)
		assert.Equal(t, float32(120), got[0].Box.CenterY)
	})

	t.Run("zero height at top edge is repaired", func(t *testing.T) {
		raw := []RawDetection{{ClassID: 2, Confidence: 0.5, X1: 100, Y1: 0, X2: 200, Y2: 0}}

		got, rejected := Normalize(raw, testClasses, dims)

		require.Len(t, got, 1)
		assert.Empty(t, rejected)
		assert.Equal(t, float32(0), got[0].Box.Y1)
		assert.Equal(t, float32(10), got[0].Box.Y2)
	})

	t.Run("zero height in small image", func(t *testing.T) {
		raw := []RawDetection{{ClassID: 1, Confidence: 0.5, X1: 0, Y1: 50, X2: 30, Y2: 50}}

		got, _ := Normalize(raw, testClasses, ImageDimensions{Width: 100, Height: 40})

		require.Len(t, got, 1)
		assert.Equal(t, float32(46), got[0].Box.Y1)
		assert.Equal(t, float32(50), got[0].Box.Y2)
	})

	t.Run("zero width is repaired", func(t *testing.T) {
		raw := []RawDetection{{ClassID: 0, Confidence: 0.7, X1: 300, Y1: 10, X2: 300, Y2: 60}}

		got, _ := Normalize(raw, testClasses, dims)

		require.Len(t, got, 1)
		assert.Equal(t, float32(290), got[0].Box.X1)
		assert.Equal(t, float32(300), got[0].Box.X2)
	})

	t.Run("unrepairable box is dropped", func(t *testing.T) {
		raw := []RawDetection{{ClassID: 0, Confidence: 0.7, X1: -5, Y1: 10, X2: -5, Y2: 60}}

		got, rejected := Normalize(raw, testClasses, dims)

		assert.Empty(t, got)
		require.Len(t, rejected, 1)
		assert.True(t, errors.Is(rejected[0].Err, ErrDegenerateBox))
	})

	t.Run("inverted box is dropped", func(t *testing.T) {
		raw := []RawDetection{{ClassID: 0, Confidence: 0.7, X1: 200, Y1: 10, X2: 100, Y2: 60}}

		got, rejected := Normalize(raw, testClasses, dims)

		assert.Empty(t, got)
		require.Len(t, rejected, 1)
		assert.True(t, errors.Is(rejected[0].Err, ErrDegenerateBox))
	})

	t.Run("unknown class is dropped", func(t *testing.T) {
		raw := []RawDetection{{ClassID: 99, Confidence: 0.7, X1: 1, Y1: 1, X2: 5, Y2: 5}}

		got, rejected := Normalize(raw, testClasses, dims)

		assert.Empty(t, got)
		require.Len(t, rejected, 1)
		assert.True(t, errors.Is(rejected[0].Err, ErrUnknownClass))
		assert.Equal(t, 0, rejected[0].Index)
	})

	t.Run("non finite values are dropped", func(t *testing.T) {
		raw := []RawDetection{
			{ClassID: 0, Confidence: 0.7, X1: math32.NaN(), Y1: 1, X2: 5, Y2: 5},
			{ClassID: 0, Confidence: math32.Inf(1), X1: 1, Y1: 1, X2: 5, Y2: 5},
		}

		got, rejected := Normalize(raw, testClasses, dims)

		assert.Empty(t, got)
		require.Len(t, rejected, 2)
		for _, r := range rejected {
			assert.True(t, errors.Is(r.Err, ErrInvalidCoordinate))
		}
	})

	t.Run("order is preserved and failures are isolated", func(t *testing.T) {
		raw := []RawDetection{
			{ClassID: 2, Confidence: 0.3, X1: 1, Y1: 1, X2: 5, Y2: 5},
			{ClassID: 42, Confidence: 0.9, X1: 1, Y1: 1, X2: 5, Y2: 5},
			{ClassID: 0, Confidence: 0.8, X1: 10, Y1: 10, X2: 50, Y2: 50},
		}

		got, rejected := Normalize(raw, testClasses, dims)

		require.Len(t, got, 2)
		assert.Equal(t, "car", got[0].Class)
		assert.Equal(t, "person", got[1].Class)
		require.Len(t, rejected, 1)
		assert.Equal(t, 1, rejected[0].Index)
	})

	t.Run("empty input yields empty non nil slice", func(t *testing.T) {
		got, rejected := Normalize(nil, testClasses, dims)

		assert.NotNil(t, got)
		assert.Empty(t, got)
		assert.Empty(t, rejected)
	})

	t.Run("boxes outside the image are not clamped", func(t *testing.T) {
		raw := []RawDetection{{ClassID: 0, Confidence: 0.6, X1: -20, Y1: -10, X2: 700, Y2: 500}}

		got, _ := Normalize(raw, testClasses, dims)

		require.Len(t, got, 1)
		assert.Equal(t, float32(-20), got[0].Box.X1)
		assert.Equal(t, float32(700), got[0].Box.X2)
	})
}

func TestBuild(t *testing.T) {
	dims := ImageDimensions{Width: 640, Height: 480}

	t.Run("empty detections serialize as array", func(t *testing.T) {
		resp, _ := Build(nil, testClasses, dims, FormatOptions{})

		body, err := json.Marshal(resp)
		require.NoError(t, err)
		assert.JSONEq(t, `{"detections":[]}`, string(body))
	})

	t.Run("image size included on request", func(t *testing.T) {
		raw := []RawDetection{{ClassID: 0, Confidence: 0.5, X1: 10, Y1: 20, X2: 30, Y2: 60}}

		resp, rejected := Build(raw, testClasses, dims, FormatOptions{IncludeImageSize: true})

		assert.Empty(t, rejected)
		body, err := json.Marshal(resp)
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"detections": [{
				"class": "person",
				"confidence": 0.5,
				"box": {
					"x1": 10, "y1": 20, "x2": 30, "y2": 60,
					"width": 20, "height": 40,
					"center_x": 20, "center_y": 40
				}
			}],
			"image_size": {"width": 640, "height": 480}
		}`, string(body))
	})
}
