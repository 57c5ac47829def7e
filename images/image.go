// Package images - Decoding of uploaded images and geometry helpers.
package images

import "image"

// Image is a decoded upload.
type Image struct {
	// The format the bytes were encoded in.
	Format ImageFormat `json:"format" yaml:"format"`
	// The decoded pixels.
	Pixels image.Image `json:"-" yaml:"-"`
	// The width of the image.
	Width int `json:"width" yaml:"width"`
	// The height of the image.
	Height int `json:"height" yaml:"height"`
}

func newImage(img image.Image, format ImageFormat) *Image {
	b := img.Bounds()
	return &Image{
		Format: format,
		Pixels: img,
		Width:  b.Dx(),
		Height: b.Dy(),
	}
}
