package images

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"sort"
	"sync"

	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/tiff" // register decoder
	_ "golang.org/x/image/webp" // register decoder
)

// ErrInvalidImage is returned when uploaded bytes cannot be decoded as an image.
var ErrInvalidImage = errors.New("invalid image")

// DecodeError describes why a payload could not be decoded.
//
// It matches ErrInvalidImage with errors.Is.
type DecodeError struct {
	// Size is the length of the payload in bytes.
	Size int
	// Err is the underlying decoder error.
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("invalid image (%d bytes): %v", e.Size, e.Err)
}

// Unwrap returns the underlying decoder error.
func (e *DecodeError) Unwrap() error { return e.Err }

// Is reports whether target is ErrInvalidImage.
func (e *DecodeError) Is(target error) bool { return target == ErrInvalidImage }

// Decoder turns encoded image bytes into pixels.
type Decoder interface {
	// Decode decodes data. Failures are returned as *DecodeError.
	Decode(data []byte) (*Image, error)
}

// DefaultMaxPixels is the largest image, in pixels, a decoder accepts unless
// configured otherwise. It matches the Pillow decompression bomb limit.
const DefaultMaxPixels int64 = 89478485

// DecoderOptions configures decoders built by NewDecoder.
type DecoderOptions struct {
	// MaxPixels rejects images whose header declares more pixels than this.
	// Zero or less selects DefaultMaxPixels.
	MaxPixels int64 `json:"max_pixels" yaml:"max_pixels"`
}

func (o DecoderOptions) maxPixels() int64 {
	if o.MaxPixels <= 0 {
		return DefaultMaxPixels
	}
	return o.MaxPixels
}

// StdDecoder decodes JPEG, PNG, GIF, BMP, TIFF and WebP without cgo.
type StdDecoder struct {
	// MaxPixels limits width * height. Zero or less selects DefaultMaxPixels.
	MaxPixels int64
}

// Decode implements Decoder.
//
// The header is read first and images declaring more than MaxPixels pixels
// are rejected before any pixel buffer is allocated.
//
// Arguments:
//   - data: The encoded image.
//
// Returns:
//   - *Image: The decoded image with its format and dimensions.
//   - error: A *DecodeError if the bytes are empty, not an image, too large, or zero-sized.
func (d StdDecoder) Decode(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Err: errors.New("empty payload")}
	}

	_, size, err := DetectFormat(data)
	if err != nil {
		return nil, err
	}
	if err := checkPixels(size, DecoderOptions{MaxPixels: d.MaxPixels}.maxPixels()); err != nil {
		return nil, &DecodeError{Size: len(data), Err: err}
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Size: len(data), Err: err}
	}

	out := newImage(img, ImageFormat(format))
	if out.Width <= 0 || out.Height <= 0 {
		return nil, &DecodeError{Size: len(data), Err: errors.Errorf("zero-sized image %dx%d", out.Width, out.Height)}
	}

	return out, nil
}

// checkPixels rejects sizes above limit pixels.
func checkPixels(size image.Point, limit int64) error {
	if int64(size.X)*int64(size.Y) > limit {
		return errors.Errorf("image %dx%d exceeds %d pixels", size.X, size.Y, limit)
	}
	return nil
}

// DetectFormat reads only the header of data and reports its format and size.
//
// Arguments:
//   - data: The encoded image.
//
// Returns:
//   - ImageFormat: The detected format.
//   - image.Point: The width and height from the header.
//   - error: A *DecodeError if the header is not recognized.
func DetectFormat(data []byte) (ImageFormat, image.Point, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return FormatUnknown, image.Point{}, &DecodeError{Size: len(data), Err: err}
	}
	return ImageFormat(format), image.Pt(cfg.Width, cfg.Height), nil
}

var (
	decodersMu sync.RWMutex
	decoders   = map[string]func(DecoderOptions) Decoder{
		"std": func(opts DecoderOptions) Decoder { return StdDecoder{MaxPixels: opts.maxPixels()} },
	}
)

// RegisterDecoder makes a decoder available to NewDecoder under name.
//
// Arguments:
//   - name: The name used in configuration.
//   - factory: Builds a new decoder from the options given to NewDecoder.
func RegisterDecoder(name string, factory func(DecoderOptions) Decoder) {
	decodersMu.Lock()
	defer decodersMu.Unlock()
	decoders[name] = factory
}

// NewDecoder returns the decoder registered under name. An empty name selects
// the standard decoder.
//
// Arguments:
//   - name: The decoder name, e.g. "std" or "gocv".
//   - opts: Limits applied by the decoder.
//
// Returns:
//   - Decoder: The decoder.
//   - error: If no decoder is registered under name.
func NewDecoder(name string, opts DecoderOptions) (Decoder, error) {
	if name == "" {
		name = "std"
	}

	decodersMu.RLock()
	factory, ok := decoders[name]
	decodersMu.RUnlock()
	if !ok {
		return nil, errors.Errorf("unknown image decoder %q (available: %v)", name, DecoderNames())
	}

	return factory(opts), nil
}

// DecoderNames lists the registered decoders in sorted order.
func DecoderNames() []string {
	decodersMu.RLock()
	defer decodersMu.RUnlock()

	names := make([]string, 0, len(decoders))
	for name := range decoders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
