package inference

import (
	"image"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// PrepareInput writes img into dst as a planar RGB tensor for the model.
//
// The image is stretched to width x height with Lanczos3 (no letterboxing) and
// each channel is scaled to [0, 1].
//
// Arguments:
//   - img: The image to prepare.
//   - width: The model input width.
//   - height: The model input height.
//   - dst: The destination buffer, at least 3*width*height floats.
//
// Returns:
//   - error: An error if the destination is too small.
func PrepareInput(img image.Image, width, height int, dst []float32) error {
	channelSize := width * height
	if width <= 0 || height <= 0 {
		return errors.Errorf("invalid model input size %dx%d", width, height)
	}
	if len(dst) < channelSize*3 {
		return errors.Errorf("destination tensor only holds %d floats, needs %d (make sure it's the right shape!)",
			len(dst), channelSize*3)
	}
	red := dst[0:channelSize]
	green := dst[channelSize : channelSize*2]
	blue := dst[channelSize*2 : channelSize*3]

	resized := resize.Resize(uint(width), uint(height), img, resize.Lanczos3)
	b := resized.Bounds()

	i := 0
	for y := b.Min.Y; y < b.Min.Y+height; y++ {
		for x := b.Min.X; x < b.Min.X+width; x++ {
			r, g, bl, _ := resized.At(x, y).RGBA()
			red[i] = float32(r>>8) / 255.0
			green[i] = float32(g>>8) / 255.0
			blue[i] = float32(bl>>8) / 255.0
			i++
		}
	}
	return nil
}
