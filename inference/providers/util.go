package providers

import (
	"os"
	"runtime"

	"github.com/pkg/errors"
)

// GetSharedLibPath returns the path to the onnxruntime shared library.
//
// Arguments:
//   - override: An explicit path. Used as-is when not empty.
//
// Returns:
//   - string: The path to the shared library.
//   - error: If no override is given and the platform has no default.
func GetSharedLibPath(override string) (string, error) {
	if override != "" {
		return override, nil
	}

	switch runtime.GOOS {
	case "windows":
		return "./third_party/onnxruntime.dll", nil
	case "darwin":
		return "./third_party/libonnxruntime.dylib", nil
	case "linux":
		if runtime.GOARCH == "arm64" {
			return "./third_party/onnxruntime_arm64.so", nil
		}
		return "./third_party/onnxruntime.so", nil
	}
	return "", errors.Errorf("no onnxruntime library known for %s/%s", runtime.GOOS, runtime.GOARCH)
}

// checkLibrary verifies the shared library exists before handing it to the runtime.
func checkLibrary(path string) error {
	if _, err := os.Stat(path); err != nil {
		return errors.Wrapf(err, "onnxruntime library not found at %s", path)
	}
	return nil
}
