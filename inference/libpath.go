package inference

import (
	"runtime"

	"github.com/pkg/errors"
)

// GetSharedLibPath returns the default onnxruntime shared library path for
// the current platform.
//
// Returns:
//   - string: The path to the shared library.
//   - error: An error if the platform has no bundled library.
func GetSharedLibPath() (string, error) {
	switch runtime.GOOS {
	case "windows":
		if runtime.GOARCH == "amd64" {
			return "./third_party/onnxruntime.dll", nil
		}
	case "darwin":
		return "./third_party/libonnxruntime.1.23.0.dylib", nil
	case "linux":
		if runtime.GOARCH == "arm64" {
			return "./third_party/onnxruntime_arm64.so", nil
		}
		return "./third_party/onnxruntime.so", nil
	}
	return "", errors.Errorf("no onnxruntime library for %s/%s, set ONNXRUNTIME_LIB", runtime.GOOS, runtime.GOARCH)
}
