//go:build gocv

package images

import (
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

func init() {
	RegisterDecoder("gocv", func(opts DecoderOptions) Decoder {
		return MatDecoder{ReadFlag: gocv.IMReadColor, MaxPixels: opts.maxPixels()}
	})
}

// MatDecoder decodes images with OpenCV. It accepts every format the linked
// OpenCV build supports. Requires the gocv build tag.
type MatDecoder struct {
	ReadFlag gocv.IMReadFlag
	// MaxPixels limits width * height for headers the standard library can
	// read. Zero or less selects DefaultMaxPixels.
	MaxPixels int64
}

// Decode implements Decoder.
func (d MatDecoder) Decode(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Err: errors.New("empty payload")}
	}

	format, size, ferr := DetectFormat(data)
	if ferr != nil {
		format = FormatUnknown
	} else if err := checkPixels(size, DecoderOptions{MaxPixels: d.MaxPixels}.maxPixels()); err != nil {
		return nil, &DecodeError{Size: len(data), Err: err}
	}

	mat, err := gocv.IMDecode(data, d.ReadFlag)
	if err != nil {
		return nil, &DecodeError{Size: len(data), Err: err}
	}
	defer mat.Close()

	if mat.Empty() || mat.Cols() <= 0 || mat.Rows() <= 0 {
		return nil, &DecodeError{Size: len(data), Err: errors.New("opencv could not decode payload")}
	}

	img, err := mat.ToImage()
	if err != nil {
		return nil, &DecodeError{Size: len(data), Err: err}
	}

	return newImage(img, format), nil
}
