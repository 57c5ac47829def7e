package images

import "strings"

// ImageFormat represents supported image formats
type ImageFormat string

// ImageFormat constants
const (
	// FormatJPEG is the JPEG image format.
	FormatJPEG ImageFormat = "jpeg"
	// FormatPNG is the PNG image format.
	FormatPNG ImageFormat = "png"
	// FormatGIF is the GIF image format. Only the first frame is used.
	FormatGIF ImageFormat = "gif"
	// FormatBMP is the BMP image format.
	FormatBMP ImageFormat = "bmp"
	// FormatTIFF is the TIFF image format.
	FormatTIFF ImageFormat = "tiff"
	// FormatWebP is the WebP image format.
	FormatWebP ImageFormat = "webp"
	// FormatUnknown is reported by decoders that cannot tell the container.
	FormatUnknown ImageFormat = "unknown"
)

// extensions maps file extensions to the format they hold.
var extensions = map[string]ImageFormat{
	".jpg":  FormatJPEG,
	".jpeg": FormatJPEG,
	".png":  FormatPNG,
	".gif":  FormatGIF,
	".bmp":  FormatBMP,
	".tif":  FormatTIFF,
	".tiff": FormatTIFF,
	".webp": FormatWebP,
}

// FormatFromExtension returns the format for a file extension such as ".jpg".
//
// Arguments:
//   - ext: The extension, with the leading dot. Case is ignored.
//
// Returns:
//   - ImageFormat: The format for the extension.
//   - bool: false when the extension is not a supported image type.
func FormatFromExtension(ext string) (ImageFormat, bool) {
	f, ok := extensions[strings.ToLower(ext)]
	return f, ok
}
