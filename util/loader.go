// Package util - File helpers for the command line.
package util

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/nvr-ai/verch-scan/images"
	"github.com/pkg/errors"
)

// ImageFile represents an image file.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Data is the raw bytes of the image file.
	Data []byte
	// Format is the format implied by the file extension.
	Format images.ImageFormat
}

// LoadImageFiles reads a single image file, or every image file in a directory.
//
// Directory entries are returned sorted by name. Subdirectories and files
// without a supported image extension are skipped. A single file is read
// regardless of its extension.
//
// Arguments:
//   - path: A file or directory path.
//
// Returns:
//   - []ImageFile: The files with their raw bytes.
//   - error: Error if loading fails.
func LoadImageFiles(path string) ([]ImageFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", path)
	}

	if !info.IsDir() {
		f, err := readImageFile(path)
		if err != nil {
			return nil, err
		}
		return []ImageFile{f}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read dir %s", path)
	}

	var files []ImageFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := images.FormatFromExtension(filepath.Ext(entry.Name())); !ok {
			continue
		}
		f, err := readImageFile(filepath.Join(path, entry.Name()))
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})

	return files, nil
}

func readImageFile(path string) (ImageFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ImageFile{}, errors.Wrapf(err, "read %s", path)
	}
	format, ok := images.FormatFromExtension(filepath.Ext(path))
	if !ok {
		format = images.FormatUnknown
	}
	return ImageFile{Path: path, Data: data, Format: format}, nil
}
